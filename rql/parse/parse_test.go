package parse

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rangeql/rangeql/rql"
	"github.com/rangeql/rangeql/rql/ast"
)

func parseQuery(t *testing.T, query string) *ast.Query {
	t.Helper()
	q, err := Parse(rql.NewEmptyContext(), query)
	require.NoError(t, err)
	return q
}

func TestParseFullScript(t *testing.T) {
	require := require.New(t)

	q := parseQuery(t, `
		range of u is app.users;
		range of p is posts via p.author == u.id;
		@final_keys
		retrieve(u.name, count(p.id))
		unique
		where u.age > :min
		sort by u.name desc
		window 2 using window_size 10;
	`)

	require.Len(q.Ranges, 2)
	require.Equal("u", q.Ranges[0].RangeName)
	require.Equal(ast.SourceEntity, q.Ranges[0].Source)
	require.Equal("app.users", q.Ranges[0].Entity)
	require.Nil(q.Ranges[0].Join)

	require.Equal("p", q.Ranges[1].RangeName)
	require.Equal("posts", q.Ranges[1].Entity)
	join, ok := q.Ranges[1].Join.(*ast.BinaryExpr)
	require.True(ok)
	require.Equal(ast.OpEquals, join.Op)

	require.True(q.HasDirective("final_keys"))
	require.True(q.Unique)

	require.Len(q.Projections, 2)
	require.IsType(&ast.Identifier{}, q.Projections[0])
	agg, ok := q.Projections[1].(*ast.Aggregate)
	require.True(ok)
	require.Equal(ast.AggCount, agg.Fn)

	where, ok := q.Where.(*ast.BinaryExpr)
	require.True(ok)
	require.Equal(ast.OpGreater, where.Op)
	require.IsType(&ast.Param{}, where.Right)

	require.Len(q.Sort, 1)
	require.True(q.Sort[0].Desc)

	require.True(q.Paged())
	require.Equal(int64(2), q.Window.(*ast.Literal).Value)
	require.Equal(int64(10), q.WindowSize.(*ast.Literal).Value)
}

func TestParseRangeSources(t *testing.T) {
	require := require.New(t)

	q := parseQuery(t, `
		range of j is json events;
		range of t is (range of u is users; retrieve(u.id));
		range of u is users;
		retrieve(u.id);
	`)

	require.Len(q.Ranges, 3)
	require.Equal(ast.SourceJSON, q.Ranges[0].Source)
	require.Equal("events", q.Ranges[0].JSONName)

	require.Equal(ast.SourceQuery, q.Ranges[1].Source)
	require.NotNil(q.Ranges[1].Query)
	require.Len(q.Ranges[1].Query.Ranges, 1)
	require.Equal("users", q.Ranges[1].Query.Ranges[0].Entity)
}

func TestParseDuplicateRange(t *testing.T) {
	require := require.New(t)

	_, err := Parse(rql.NewEmptyContext(), `
		range of u is users;
		range of u is posts;
		retrieve(u.id);
	`)
	require.Error(err)
	require.True(rql.ErrDuplicateRange.Is(err))
}

func TestParsePrecedence(t *testing.T) {
	require := require.New(t)

	q := parseQuery(t, "range of u is users; retrieve(u.a + u.b * u.c);")

	add, ok := q.Projections[0].(*ast.BinaryExpr)
	require.True(ok)
	require.Equal(ast.OpAdd, add.Op)
	mul, ok := add.Right.(*ast.BinaryExpr)
	require.True(ok)
	require.Equal(ast.OpMul, mul.Op)
}

func TestParseBooleanPrecedence(t *testing.T) {
	require := require.New(t)

	q := parseQuery(t, `
		range of u is users;
		retrieve(u.id) where u.a == 1 and not u.b == 2 or u.c == 3;
	`)

	or, ok := q.Where.(*ast.BinaryExpr)
	require.True(ok)
	require.Equal(ast.OpOr, or.Op)

	and, ok := or.Left.(*ast.BinaryExpr)
	require.True(ok)
	require.Equal(ast.OpAnd, and.Op)

	not, ok := and.Right.(*ast.UnaryExpr)
	require.True(ok)
	require.Equal(ast.OpNot, not.Op)
}

func TestParseComparisonForms(t *testing.T) {
	require := require.New(t)

	q := parseQuery(t, `
		range of u is users;
		retrieve(u.id)
		where u.a = 1 and u.b in (1, 2, :three) and u.name like 'a%' and u.gone == null;
	`)

	conds := ast.SplitConjunction(q.Where)
	require.Len(conds, 4)

	eq := conds[0].(*ast.BinaryExpr)
	require.Equal(ast.OpEquals, eq.Op)

	in := conds[1].(*ast.BinaryExpr)
	require.Equal(ast.OpIn, in.Op)
	list, ok := in.Right.(*ast.ValueList)
	require.True(ok)
	require.Len(list.Values, 3)
	require.IsType(&ast.Param{}, list.Values[2])

	like := conds[2].(*ast.BinaryExpr)
	require.Equal(ast.OpLike, like.Op)

	null := conds[3].(*ast.BinaryExpr)
	require.Equal(ast.OpEquals, null.Op)
	require.True(null.Right.(*ast.Literal).IsNull())
}

func TestParseAggregates(t *testing.T) {
	require := require.New(t)

	q := parseQuery(t, `
		range of p is posts;
		retrieve(sum unique(p.amount if p.public), any(p.flag), count(1));
	`)

	sum := q.Projections[0].(*ast.Aggregate)
	require.Equal(ast.AggSum, sum.Fn)
	require.True(sum.Unique)
	require.NotNil(sum.Filter)

	any := q.Projections[1].(*ast.Aggregate)
	require.Equal(ast.AggAny, any.Fn)
	require.False(any.Unique)
	require.Nil(any.Filter)

	count := q.Projections[2].(*ast.Aggregate)
	require.Equal(ast.AggCount, count.Fn)
	require.IsType(&ast.Literal{}, count.Target)
}

func TestParseExists(t *testing.T) {
	require := require.New(t)

	q := parseQuery(t, `
		range of u is users;
		range of p is posts via p.author == u.id;
		retrieve(u.id) where exists(p);
	`)

	sub, ok := q.Where.(*ast.Subquery)
	require.True(ok)
	require.Equal(ast.SubExists, sub.SubKind)
	require.Empty(sub.Ranges)
	id, ok := sub.Projection.(*ast.Identifier)
	require.True(ok)
	require.Equal("p", id.Part)
}

func TestParseArrow(t *testing.T) {
	require := require.New(t)

	q := parseQuery(t, "range of j is json events; retrieve(j.payload -> 'kind');")

	arrow, ok := q.Projections[0].(*ast.BinaryExpr)
	require.True(ok)
	require.Equal(ast.OpArrow, arrow.Op)
	require.Equal("kind", arrow.Right.(*ast.Literal).Value)
}

func TestParseErrors(t *testing.T) {
	testCases := []struct {
		name  string
		query string
	}{
		{"missing retrieve parens", "range of u is users; retrieve u.id;"},
		{"missing semicolon after range", "range of u is users retrieve(u.id);"},
		{"dangling operator", "range of u is users; retrieve(u.id) where u.a ==;"},
		{"trailing garbage", "range of u is users; retrieve(u.id); retrieve(u.id);"},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			_, err := Parse(rql.NewEmptyContext(), tt.query)
			require.Error(err)
			require.True(rql.ErrUnexpectedToken.Is(err))
		})
	}
}
