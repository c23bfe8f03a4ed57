package sqlgen

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rangeql/rangeql/memory"
	"github.com/rangeql/rangeql/rql"
	"github.com/rangeql/rangeql/rql/analyzer"
	"github.com/rangeql/rangeql/rql/ast"
	"github.com/rangeql/rangeql/rql/parse"
)

func testMetadata() *memory.Metadata {
	md := memory.NewMetadata()

	md.AddEntity("users").
		WithKey("id").
		WithColumn("id", rql.Column{Name: "id", Type: rql.Int64}).
		WithColumn("name", rql.Column{Name: "name", Type: rql.Text, Nullable: true}).
		WithColumn("age", rql.Column{Name: "age", Type: rql.Int64, Nullable: true}).
		WithColumn("email", rql.Column{Name: "email", Type: rql.Text, Nullable: true})

	md.AddEntity("posts").
		WithKey("id").
		WithColumn("id", rql.Column{Name: "id", Type: rql.Int64}).
		WithColumn("author", rql.Column{Name: "author", Type: rql.Int64}).
		WithColumn("title", rql.Column{Name: "title", Type: rql.Text, Nullable: true}).
		WithColumn("amount", rql.Column{Name: "amount", Type: rql.Float64, Nullable: true}).
		WithColumn("public", rql.Column{Name: "public", Type: rql.Boolean, Nullable: true}).
		WithManyToOne("author", rql.Relationship{Target: "users", Required: true})

	md.AddEntity("tags").
		WithKey("id").
		WithColumn("id", rql.Column{Name: "id", Type: rql.Int64}).
		WithColumn("post", rql.Column{Name: "post", Type: rql.Int64}).
		WithColumn("label", rql.Column{Name: "label", Type: rql.Text, Nullable: true})

	return md
}

func analyzed(t *testing.T, md rql.Metadata, query string) *ast.Query {
	t.Helper()
	q, err := parse.Parse(rql.NewEmptyContext(), query)
	require.NoError(t, err)
	q, err = analyzer.NewDefault(md).Analyze(rql.NewEmptyContext(), q)
	require.NoError(t, err)
	return q
}

func generate(t *testing.T, md rql.Metadata, query string, params map[string]interface{}) (string, []interface{}) {
	t.Helper()
	sql, args, err := NewGenerator(md).Generate(analyzed(t, md, query), params)
	require.NoError(t, err)
	return sql, args
}

func TestGenerateBasic(t *testing.T) {
	require := require.New(t)

	sql, args := generate(t, testMetadata(), `
		range of u is users;
		retrieve(u.name) where u.age > 1 sort by u.name desc;
	`, nil)

	require.Equal(
		"SELECT `u`.`name` AS `u_name` FROM `users` `u`"+
			" WHERE (`u`.`age` > ?) ORDER BY `u_name` DESC",
		sql)
	require.Equal([]interface{}{int64(1)}, args)
}

func TestGenerateSortByUnselectedExpr(t *testing.T) {
	require := require.New(t)

	sql, _ := generate(t, testMetadata(),
		"range of u is users; retrieve(u.name) sort by u.age;", nil)
	require.Equal(
		"SELECT `u`.`name` AS `u_name` FROM `users` `u` ORDER BY `u`.`age`",
		sql)
}

func TestGenerateParams(t *testing.T) {
	require := require.New(t)
	md := testMetadata()

	sql, args := generate(t, md,
		"range of u is users; retrieve(u.id) where u.age > :min;",
		map[string]interface{}{"min": 21})
	require.Equal(
		"SELECT `u`.`id` AS `u_id` FROM `users` `u` WHERE (`u`.`age` > ?)",
		sql)
	require.Equal([]interface{}{21}, args)

	_, _, err := NewGenerator(md).Generate(
		analyzed(t, md, "range of u is users; retrieve(u.id) where u.age > :min;"), nil)
	require.Error(err)
	require.True(ErrUnboundParam.Is(err))
}

func TestGenerateInnerJoin(t *testing.T) {
	require := require.New(t)

	sql, args := generate(t, testMetadata(), `
		range of u is users;
		range of p is posts via p.author == u.id;
		retrieve(u.name, p.title);
	`, nil)

	require.Equal(
		"SELECT `u`.`name` AS `u_name`, `p`.`title` AS `p_title`,"+
			" `p`.`author` AS `p_author`, `u`.`id` AS `u_id`"+
			" FROM `users` `u` INNER JOIN `posts` `p` ON (`p`.`author` = `u`.`id`)",
		sql)
	require.Empty(args)
}

func TestGenerateLeftJoinAndNullCheck(t *testing.T) {
	require := require.New(t)

	sql, args := generate(t, testMetadata(), `
		range of u is users;
		range of p is posts via p.author == u.id;
		retrieve(u.name, p.title) where p.title == null;
	`, nil)

	require.Equal(
		"SELECT `u`.`name` AS `u_name`, `p`.`title` AS `p_title`,"+
			" `p`.`author` AS `p_author`, `u`.`id` AS `u_id`"+
			" FROM `users` `u` LEFT JOIN `posts` `p` ON (`p`.`author` = `u`.`id`)"+
			" WHERE `p`.`title` IS NULL",
		sql)
	require.Empty(args)
}

func TestGenerateInAndLike(t *testing.T) {
	require := require.New(t)

	sql, args := generate(t, testMetadata(), `
		range of u is users;
		retrieve(u.id) where u.name in ('a', :x) and u.email like 'b%';
	`, map[string]interface{}{"x": "c"})

	require.Equal(
		"SELECT `u`.`id` AS `u_id` FROM `users` `u`"+
			" WHERE ((`u`.`name` IN (?, ?)) AND (`u`.`email` LIKE ?))",
		sql)
	require.Equal([]interface{}{"a", "c", "b%"}, args)
}

func TestGenerateDistinct(t *testing.T) {
	require := require.New(t)

	sql, _ := generate(t, testMetadata(),
		"range of u is users; retrieve(u.name) unique;", nil)
	require.Equal(
		"SELECT DISTINCT `u`.`name` AS `u_name` FROM `users` `u`",
		sql)
}

func TestGenerateWholeRange(t *testing.T) {
	require := require.New(t)

	sql, _ := generate(t, testMetadata(),
		"range of u is users; retrieve(u);", nil)
	require.Equal(
		"SELECT `u`.`age` AS `u_age`, `u`.`email` AS `u_email`,"+
			" `u`.`id` AS `u_id`, `u`.`name` AS `u_name` FROM `users` `u`",
		sql)
}

func TestGenerateExists(t *testing.T) {
	require := require.New(t)

	sql, args := generate(t, testMetadata(), `
		range of p is posts;
		range of t is tags via t.post == p.id;
		retrieve(p.title) where p.amount > 1;
	`, nil)

	require.Equal(
		"SELECT `p`.`title` AS `p_title` FROM `posts` `p`"+
			" WHERE ((`p`.`amount` > ?)"+
			" AND EXISTS (SELECT 1 FROM `tags` `t` WHERE (`t`.`post` = `p`.`id`)))",
		sql)
	require.Equal([]interface{}{int64(1)}, args)
}

func TestGenerateScalarAggregate(t *testing.T) {
	require := require.New(t)

	sql, args := generate(t, testMetadata(), `
		range of u is users;
		range of p is posts via p.author == u.id;
		retrieve(u.name, sum(p.amount));
	`, nil)

	require.Equal(
		"SELECT `u`.`name` AS `u_name`,"+
			" (SELECT SUM(`p`.`amount`) FROM `posts` `p`"+
			" WHERE (`p`.`author` = `u`.`id`)) AS `sum_p_amount`"+
			" FROM `users` `u`",
		sql)
	require.Empty(args)
}

func TestGenerateClonedScalarAggregate(t *testing.T) {
	require := require.New(t)

	// The aggregate's range is also projected, so the subquery runs over
	// a key-correlated copy instead of stealing the range.
	sql, args := generate(t, testMetadata(), `
		range of p is posts;
		retrieve(p.title, sum(p.amount if p.public == true));
	`, nil)

	require.Equal(
		"SELECT `p`.`title` AS `p_title`,"+
			" (SELECT SUM(`p_s`.`amount`) FROM `posts` `p_s`"+
			" WHERE ((`p_s`.`id` = `p`.`id`) AND (`p_s`.`public` = ?))) AS `sum_p_s_amount`"+
			" FROM `posts` `p`",
		sql)
	require.Equal([]interface{}{true}, args)
}

func TestGenerateWindowAggregate(t *testing.T) {
	require := require.New(t)

	sql, _ := generate(t, testMetadata(),
		"range of u is users; retrieve(u.name, count(u.id));", nil)
	require.Equal(
		"SELECT `u`.`name` AS `u_name`, COUNT(`u`.`id`) OVER () AS `count_u_id`"+
			" FROM `users` `u`",
		sql)
}

func TestGenerateCountStar(t *testing.T) {
	require := require.New(t)

	sql, _ := generate(t, testMetadata(),
		"range of p is posts; retrieve(count(1));", nil)
	require.Equal(
		"SELECT COUNT(*) OVER () AS `count_col_0` FROM `posts` `p`",
		sql)
}

func TestGenerateAnyAggregate(t *testing.T) {
	require := require.New(t)

	sql, args := generate(t, testMetadata(),
		"range of p is posts; retrieve(any(p.public == true));", nil)
	require.Equal(
		"SELECT MAX(CASE WHEN (`p`.`public` = ?) THEN 1 ELSE 0 END) OVER ()"+
			" AS `any_col_0` FROM `posts` `p`",
		sql)
	require.Equal([]interface{}{true}, args)
}

func TestGenerateWindowFallback(t *testing.T) {
	require := require.New(t)
	md := testMetadata()

	gen := NewGenerator(md)
	gen.WindowFunctions = false

	q := analyzed(t, md, `
		range of u is users;
		retrieve(u.name, count(u.id)) where u.age > :min;
	`)
	sql, args, err := gen.Generate(q, map[string]interface{}{"min": 21})
	require.NoError(err)

	require.Equal(
		"SELECT `u`.`name` AS `u_name`,"+
			" (SELECT COUNT(`u_w`.`id`) FROM `users` `u_w`"+
			" WHERE (`u_w`.`age` > ?)) AS `count_u_id`"+
			" FROM `users` `u` WHERE (`u`.`age` > ?)",
		sql)
	require.Equal([]interface{}{21, 21}, args)
}

func TestGenerateWindowFallbackInWhere(t *testing.T) {
	require := require.New(t)
	md := testMetadata()

	gen := NewGenerator(md)
	gen.WindowFunctions = false

	// The fallback re-renders the outer WHERE inside the subquery. The
	// conjunct holding the aggregate itself must not come along, it would
	// expand forever.
	q := analyzed(t, md, `
		range of u is users;
		retrieve(u.name) where u.age > 1 and count(u.id) > 0;
	`)
	sql, args, err := gen.Generate(q, nil)
	require.NoError(err)

	require.Equal(
		"SELECT `u`.`name` AS `u_name` FROM `users` `u`"+
			" WHERE ((`u`.`age` > ?)"+
			" AND ((SELECT COUNT(`u_w`.`id`) FROM `users` `u_w`"+
			" WHERE (`u_w`.`age` > ?)) > ?))",
		sql)
	require.Equal([]interface{}{int64(1), int64(1), int64(0)}, args)
}

func TestGenerateTempTable(t *testing.T) {
	require := require.New(t)
	md := testMetadata()

	inner := ast.NewQuery()
	temp := ast.NewQueryRange("t", inner)
	temp.Required = true
	temp.TempTable = "rql_tmp_t_0000"
	temp.Shape = []rql.ColumnDef{
		{Name: "author", Type: rql.Int64},
		{Name: "total", Type: rql.Float64},
	}

	q := ast.NewQuery()
	require.NoError(q.AddRange(temp))
	id := ast.NewIdentifier("t", "total")
	id.Range = temp
	q.AddProjection(id)

	sql, _, err := NewGenerator(md).Generate(q, nil)
	require.NoError(err)
	require.Equal(
		"SELECT `t`.`total` AS `t_total` FROM `rql_tmp_t_0000` `t`",
		sql)

	// A whole-range leaf over a materialized range expands its shape.
	leaf := ast.NewIdentifier("t")
	leaf.Range = temp
	q.Projections = nil
	q.AddProjection(leaf)
	sql, _, err = NewGenerator(md).Generate(q, nil)
	require.NoError(err)
	require.Equal(
		"SELECT `t`.`author` AS `t_author`, `t`.`total` AS `t_total`"+
			" FROM `rql_tmp_t_0000` `t`",
		sql)

	temp.TempTable = ""
	_, _, err = NewGenerator(md).Generate(q, nil)
	require.Error(err)
	require.True(ErrNotRenderable.Is(err))
}

func TestGenerateJSONRangeFails(t *testing.T) {
	require := require.New(t)

	j := ast.NewJSONRange("j", "events")
	q := ast.NewQuery()
	require.NoError(q.AddRange(j))
	id := ast.NewIdentifier("j", "kind")
	id.Range = j
	q.AddProjection(id)

	_, _, err := NewGenerator(testMetadata()).Generate(q, nil)
	require.Error(err)
	require.True(ErrNotRenderable.Is(err))
}
