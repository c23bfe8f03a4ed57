package ast

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rangeql/rangeql/rql"
)

func TestReplaceChildKeepsParents(t *testing.T) {
	require := require.New(t)

	u := NewEntityRange("u", "users")
	left := NewIdentifier("u", "age")
	left.Range = u
	old := NewLiteral(int64(1), LiteralInt)
	cmp := NewBinary(OpGreater, left, old)

	q := NewQuery()
	require.NoError(q.AddRange(u))
	q.SetWhere(cmp)
	require.Equal(rql.Node(q), cmp.Parent())

	replacement := NewParam("min")
	require.NoError(Replace(old, replacement))
	require.Equal(rql.Node(replacement), cmp.Right)
	require.Equal(rql.Node(cmp), replacement.Parent())
}

func TestReplaceRootFails(t *testing.T) {
	require := require.New(t)

	lit := NewLiteral(int64(1), LiteralInt)
	err := Replace(lit, NewNull())
	require.Error(err)
	require.True(rql.ErrChildNotFound.Is(err))
}

func TestReplaceChildUnknownNode(t *testing.T) {
	require := require.New(t)

	cmp := NewEquals(NewLiteral(int64(1), LiteralInt), NewLiteral(int64(2), LiteralInt))
	err := cmp.ReplaceChild(NewNull(), NewNull())
	require.Error(err)
	require.True(rql.ErrChildNotFound.Is(err))
}

func TestSplitAndJoinConjunction(t *testing.T) {
	require := require.New(t)

	a := NewEquals(NewLiteral(int64(1), LiteralInt), NewLiteral(int64(1), LiteralInt))
	b := NewEquals(NewLiteral(int64(2), LiteralInt), NewLiteral(int64(2), LiteralInt))
	c := NewEquals(NewLiteral(int64(3), LiteralInt), NewLiteral(int64(3), LiteralInt))

	joined := JoinAnd(a, nil, b, c)
	split := SplitConjunction(joined)
	require.Equal([]rql.Node{a, b, c}, split)

	require.Nil(JoinAnd(nil, nil))
	require.Equal(rql.Node(a), JoinAnd(a))
	require.Nil(SplitConjunction(nil))
}

func TestCloneQueryIndependence(t *testing.T) {
	require := require.New(t)

	u := NewEntityRange("u", "users")
	p := NewEntityRange("p", "posts")
	pa := NewIdentifier("p", "author")
	pa.Range = p
	uid := NewIdentifier("u", "id")
	uid.Range = u
	p.WithJoin(NewEquals(pa, uid))

	q := NewQuery()
	require.NoError(q.AddRange(u))
	require.NoError(q.AddRange(p))
	name := NewIdentifier("u", "name")
	name.Range = u
	q.AddProjection(name)

	clone := CloneQuery(q)
	require.Len(clone.Ranges, 2)
	require.NotSame(q.Ranges[0], clone.Ranges[0])

	// Identifier bindings are remapped onto the cloned ranges.
	cloneJoin := clone.Ranges[1].Join.(*BinaryExpr)
	require.Same(clone.Ranges[1], cloneJoin.Left.(*Identifier).Range)
	require.Same(clone.Ranges[0], cloneJoin.Right.(*Identifier).Range)

	// Mutating the clone leaves the original alone.
	clone.Ranges[1].Required = true
	clone.Projections[0].(*Identifier).Next.Part = "email"
	require.False(q.Ranges[1].Required)
	require.Equal("name", q.Projections[0].(*Identifier).Next.Part)
}

func TestCloneExprKeepsBindings(t *testing.T) {
	require := require.New(t)

	u := NewEntityRange("u", "users")
	id := NewIdentifier("u", "age")
	id.Range = u
	cond := NewBinary(OpGreater, id, NewLiteral(int64(3), LiteralInt))

	clone := CloneExpr(cond).(*BinaryExpr)
	require.NotSame(cond, clone)
	// Expression clones keep pointing at the original ranges.
	require.Same(u, clone.Left.(*Identifier).Range)
}

func TestAliasOf(t *testing.T) {
	require := require.New(t)

	u := NewEntityRange("u", "users")
	id := NewIdentifier("u", "address", "city")
	id.Range = u
	require.Equal("u_address_city", AliasOf(id, 0))

	agg := NewAggregate(AggSum, id)
	require.Equal("sum_u_address_city", AliasOf(agg, 0))

	win := NewWindow(agg)
	require.Equal("sum_u_address_city", AliasOf(win, 0))

	require.Equal("col_3", AliasOf(NewLiteral(int64(1), LiteralInt), 3))
}

func TestRecordRefsAndAggregateOnly(t *testing.T) {
	require := require.New(t)

	u := NewEntityRange("u", "users")
	p := NewEntityRange("p", "posts")
	pa := NewIdentifier("p", "author")
	pa.Range = p
	uid := NewIdentifier("u", "id")
	uid.Range = u
	p.WithJoin(NewEquals(pa, uid))

	q := NewQuery()
	require.NoError(q.AddRange(u))
	require.NoError(q.AddRange(p))

	uname := NewIdentifier("u", "name")
	uname.Range = u
	q.AddProjection(uname)

	amount := NewIdentifier("p", "amount")
	amount.Range = p
	q.AddProjection(NewAggregate(AggSum, amount))

	RecordRefs(q)

	require.True(p.AggregateOnly())
	require.False(u.AggregateOnly())

	// A plain WHERE use takes the range out of aggregate-only.
	flag := NewIdentifier("p", "public")
	flag.Range = p
	q.SetWhere(NewEquals(flag, NewLiteral(true, LiteralBool)))
	RecordRefs(q)
	require.False(p.AggregateOnly())
}

func TestQueryRangeOps(t *testing.T) {
	require := require.New(t)

	q := NewQuery()
	u := NewEntityRange("u", "users")
	require.NoError(q.AddRange(u))

	err := q.AddRange(NewEntityRange("u", "posts"))
	require.Error(err)
	require.True(rql.ErrDuplicateRange.Is(err))

	require.Same(u, q.Range("u"))
	require.Nil(q.Range("missing"))

	q.RemoveRange(u)
	require.Empty(q.Ranges)
}
