package plan

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rangeql/rangeql/rql"
	"github.com/rangeql/rangeql/rql/ast"
)

func ident(rangeName, prop string) *ast.Identifier {
	id := ast.NewIdentifier(rangeName, prop)
	id.Range = ast.NewEntityRange(rangeName, rangeName)
	return id
}

func TestCrossJoin(t *testing.T) {
	require := require.New(t)

	left := []rql.Row{{"a": 1}, {"a": 2}}
	right := []rql.Row{{"b": "x"}, {"b": "y"}}

	out := crossJoin(left, right)
	require.Len(out, 4)
	require.Equal(rql.Row{"a": 1, "b": "x"}, out[0])
	require.Equal(rql.Row{"a": 2, "b": "y"}, out[3])

	require.Empty(crossJoin(left, nil))
	require.Empty(crossJoin(nil, right))
}

func TestLeftJoin(t *testing.T) {
	require := require.New(t)

	left := []rql.Row{
		{"u_id": int64(1), "u_name": "ada"},
		{"u_id": int64(2), "u_name": "bob"},
	}
	right := []rql.Row{
		{"j_user": int64(1), "j_kind": "click"},
		{"j_user": int64(1), "j_kind": "view"},
		{"j_user": int64(9), "j_kind": "click"},
	}

	cond := ast.NewEquals(ident("j", "user"), ident("u", "id"))
	out, err := leftJoin(left, right, cond, nil)
	require.NoError(err)
	require.Len(out, 3)

	// ada matches twice, bob survives unmatched without right columns.
	require.Equal("click", out[0]["j_kind"])
	require.Equal("view", out[1]["j_kind"])
	require.Equal(rql.Row{"u_id": int64(2), "u_name": "bob"}, out[2])
}

func TestJoinStrategy(t *testing.T) {
	require := require.New(t)

	s := &Stage{Kind: StageJSON}
	require.Equal(JoinCross, s.JoinStrategy())

	s.Join = ast.True()
	require.Equal(JoinLeft, s.JoinStrategy())
}
