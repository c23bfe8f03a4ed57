package rangeql

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rangeql/rangeql/memory"
	"github.com/rangeql/rangeql/rql"
	"github.com/rangeql/rangeql/rql/plan"
)

func testMetadata() *memory.Metadata {
	md := memory.NewMetadata()

	md.AddEntity("users").
		WithKey("id").
		WithColumn("id", rql.Column{Name: "id", Type: rql.Int64}).
		WithColumn("name", rql.Column{Name: "name", Type: rql.Text, Nullable: true}).
		WithColumn("age", rql.Column{Name: "age", Type: rql.Int64, Nullable: true})

	md.AddEntity("posts").
		WithKey("id").
		WithColumn("id", rql.Column{Name: "id", Type: rql.Int64}).
		WithColumn("author", rql.Column{Name: "author", Type: rql.Int64}).
		WithColumn("title", rql.Column{Name: "title", Type: rql.Text, Nullable: true}).
		WithManyToOne("author", rql.Relationship{Target: "users", Required: true})

	return md
}

func TestEngineQuery(t *testing.T) {
	require := require.New(t)

	backend := memory.NewBackend()
	backend.Fix(
		"SELECT `u`.`name` AS `u_name` FROM `users` `u` WHERE (`u`.`age` > ?)",
		[]rql.Row{{"u_name": "ada"}},
	)

	e := NewDefault(testMetadata(), backend, memory.NewJSONSource())
	rows, err := e.Query(rql.NewEmptyContext(),
		"range of u is users; retrieve(u.name) where u.age > :min;",
		map[string]interface{}{"min": 21})
	require.NoError(err)
	require.Equal([]rql.Row{{"u_name": "ada"}}, rows)

	stmts := backend.Statements()
	require.Len(stmts, 1)
	require.Equal([]interface{}{21}, stmts[0].Args)
}

func TestEngineQueryWithJSON(t *testing.T) {
	require := require.New(t)

	backend := memory.NewBackend()
	backend.Fix(
		"SELECT `u`.`name` AS `u_name`, `u`.`id` AS `u_id` FROM `users` `u`",
		[]rql.Row{
			{"u_name": "ada", "u_id": int64(1)},
			{"u_name": "bob", "u_id": int64(2)},
		},
	)

	source := memory.NewJSONSource()
	source.Add("events", []rql.Row{
		{"kind": "click", "user": int64(1)},
	})

	e := NewDefault(testMetadata(), backend, source)
	rows, err := e.Query(rql.NewEmptyContext(), `
		range of u is users;
		range of j is json events;
		retrieve(u.name, j.kind) where j.user == u.id;
	`, nil)
	require.NoError(err)
	require.ElementsMatch([]rql.Row{
		{"u_name": "ada", "j_kind": "click"},
		{"u_name": "bob"},
	}, rows)
}

func TestEnginePlan(t *testing.T) {
	require := require.New(t)

	e := NewDefault(testMetadata(), memory.NewBackend(), memory.NewJSONSource())
	p, err := e.Plan(rql.NewEmptyContext(), `
		range of t is (range of p is posts; retrieve(p.author));
		range of u is users via u.id == t.author;
		retrieve(u.name);
	`)
	require.NoError(err)
	require.Len(p.Stages, 2)
	require.Equal(plan.StageTemp, p.Stages[0].Kind)
	require.Equal(plan.StageSQL, p.Stages[1].Kind)
}

func TestEngineAnalyze(t *testing.T) {
	require := require.New(t)

	e := NewDefault(testMetadata(), memory.NewBackend(), memory.NewJSONSource())
	q, err := e.Analyze(rql.NewEmptyContext(), `
		range of u is users;
		range of p is posts via p.author == u.id;
		retrieve(u.name, p.title);
	`)
	require.NoError(err)
	require.True(q.Range("p").Required)
}

func TestEngineParseError(t *testing.T) {
	require := require.New(t)

	e := NewDefault(testMetadata(), memory.NewBackend(), memory.NewJSONSource())
	_, err := e.Query(rql.NewEmptyContext(), "retrieve u.name;", nil)
	require.Error(err)
	require.True(rql.ErrUnexpectedToken.Is(err))
}

func TestEngineConfigNamespace(t *testing.T) {
	require := require.New(t)

	md := memory.NewMetadata()
	md.AddEntity("app.users").
		WithKey("id").
		WithColumn("id", rql.Column{Name: "id", Type: rql.Int64}).
		WithColumn("name", rql.Column{Name: "name", Type: rql.Text, Nullable: true})

	backend := memory.NewBackend()
	backend.Fix(
		"SELECT `u`.`name` AS `u_name` FROM `app.users` `u`",
		[]rql.Row{{"u_name": "ada"}},
	)

	e := New(md, backend, memory.NewJSONSource(), &Config{
		Namespace:       "app",
		WindowFunctions: true,
	})
	rows, err := e.Query(rql.NewEmptyContext(),
		"range of u is users; retrieve(u.name);", nil)
	require.NoError(err)
	require.Equal([]rql.Row{{"u_name": "ada"}}, rows)
}
