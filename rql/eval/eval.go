// Package eval compiles query predicates into expr-lang programs and runs
// them against map-shaped rows. The executor uses it for join predicates
// between stage result sets and for filtering JSON-backed ranges, where no
// SQL backend is available to evaluate conditions.
package eval

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/spf13/cast"
	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/rangeql/rangeql/rql"
	"github.com/rangeql/rangeql/rql/ast"
)

// ErrNotEvaluable is returned when a predicate contains a node that has no
// in-memory form, such as a subquery.
var ErrNotEvaluable = errors.NewKind("cannot evaluate %T in memory")

// helpers are injected into every program's environment.
var helpers = map[string]interface{}{
	"like": func(s, pattern interface{}) bool {
		if s == nil || pattern == nil {
			return false
		}
		p := regexp.QuoteMeta(cast.ToString(pattern))
		p = strings.ReplaceAll(p, "%", ".*")
		p = strings.ReplaceAll(p, "_", ".")
		ok, _ := regexp.MatchString("^"+p+"$", cast.ToString(s))
		return ok
	},
	"shl": func(a, b interface{}) int64 { return cast.ToInt64(a) << uint(cast.ToInt64(b)) },
	"shr": func(a, b interface{}) int64 { return cast.ToInt64(a) >> uint(cast.ToInt64(b)) },
	"fld": func(m, k interface{}) interface{} {
		if mm, ok := m.(map[string]interface{}); ok {
			return mm[cast.ToString(k)]
		}
		return nil
	},
}

// Program is a compiled predicate.
type Program struct {
	prog *vm.Program
}

// Compile translates a predicate tree into an executable program. Bound
// parameters are resolved at compile time from params.
func Compile(n rql.Node, params map[string]interface{}) (*Program, error) {
	src, err := render(n, params)
	if err != nil {
		return nil, err
	}
	prog, err := expr.Compile(src, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}
	return &Program{prog: prog}, nil
}

// Bool runs the program against a row and coerces the result to a
// boolean. A nil result is false.
func (p *Program) Bool(row rql.Row) (bool, error) {
	env := make(map[string]interface{}, len(row)+len(helpers))
	for k, v := range helpers {
		env[k] = v
	}
	for k, v := range row {
		env[k] = v
	}
	out, err := expr.Run(p.prog, env)
	if err != nil {
		return false, err
	}
	if out == nil {
		return false, nil
	}
	return cast.ToBool(out), nil
}

// render translates a predicate subtree to expr-lang source. Identifiers
// become the underscore-joined column keys stages emit.
func render(n rql.Node, params map[string]interface{}) (string, error) {
	switch n := n.(type) {
	case *ast.Identifier:
		return ast.AliasOf(n, 0), nil
	case *ast.Literal:
		if n.IsNull() {
			return "nil", nil
		}
		if n.Typ == ast.LiteralString {
			return fmt.Sprintf("%q", n.Value), nil
		}
		return fmt.Sprintf("%v", n.Value), nil
	case *ast.Param:
		v, ok := params[n.ParamName]
		if !ok {
			return "nil", nil
		}
		return render(literalFor(v), params)
	case *ast.ValueList:
		parts := make([]string, len(n.Values))
		for i, v := range n.Values {
			s, err := render(v, params)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	case *ast.UnaryExpr:
		operand, err := render(n.Operand, params)
		if err != nil {
			return "", err
		}
		switch n.Op {
		case ast.OpNot:
			return "!(" + operand + ")", nil
		case ast.OpNeg:
			return "-(" + operand + ")", nil
		case ast.OpIsNull:
			return "(" + operand + " == nil)", nil
		case ast.OpIsNotNull:
			return "(" + operand + " != nil)", nil
		}
	case *ast.BinaryExpr:
		left, err := render(n.Left, params)
		if err != nil {
			return "", err
		}
		right, err := render(n.Right, params)
		if err != nil {
			return "", err
		}
		switch n.Op {
		case ast.OpAnd:
			return "(" + left + " && " + right + ")", nil
		case ast.OpOr:
			return "(" + left + " || " + right + ")", nil
		case ast.OpLike:
			return "like(" + left + ", " + right + ")", nil
		case ast.OpIn:
			return "(" + left + " in " + right + ")", nil
		case ast.OpShiftLeft:
			return "shl(" + left + ", " + right + ")", nil
		case ast.OpShiftRight:
			return "shr(" + left + ", " + right + ")", nil
		case ast.OpArrow:
			return "fld(" + left + ", " + right + ")", nil
		case ast.OpEquals:
			return "(" + left + " == " + right + ")", nil
		case ast.OpNotEquals:
			return "(" + left + " != " + right + ")", nil
		default:
			return "(" + left + " " + n.Op.String() + " " + right + ")", nil
		}
	}
	return "", ErrNotEvaluable.New(n)
}

func literalFor(v interface{}) *ast.Literal {
	switch v := v.(type) {
	case nil:
		return ast.NewNull()
	case string:
		return ast.NewLiteral(v, ast.LiteralString)
	case bool:
		return ast.NewLiteral(v, ast.LiteralBool)
	case float32, float64:
		return ast.NewLiteral(cast.ToFloat64(v), ast.LiteralFloat)
	default:
		return ast.NewLiteral(cast.ToInt64(v), ast.LiteralInt)
	}
}
