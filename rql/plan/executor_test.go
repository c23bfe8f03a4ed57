package plan_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rangeql/rangeql/memory"
	"github.com/rangeql/rangeql/rql"
	"github.com/rangeql/rangeql/rql/analyzer"
	"github.com/rangeql/rangeql/rql/decomposer"
	"github.com/rangeql/rangeql/rql/parse"
	"github.com/rangeql/rangeql/rql/plan"
	"github.com/rangeql/rangeql/rql/sqlgen"
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
		WithColumn("title", rql.Column{Name: "title", Type: rql.Text, Nullable: true})

	return md
}

func planned(t *testing.T, md rql.Metadata, query string) *plan.ExecutionPlan {
	t.Helper()
	q, err := parse.Parse(rql.NewEmptyContext(), query)
	require.NoError(t, err)
	q, err = analyzer.NewDefault(md).Analyze(rql.NewEmptyContext(), q)
	require.NoError(t, err)
	p, err := decomposer.New(md).Decompose(rql.NewEmptyContext(), q)
	require.NoError(t, err)
	return p
}

func newExecutor(md rql.Metadata, backend rql.Backend, source rql.JSONSource) *plan.Executor {
	return plan.NewExecutor(backend, source, sqlgen.NewGenerator(md))
}

func TestExecuteSingleStage(t *testing.T) {
	require := require.New(t)
	md := testMetadata()

	backend := memory.NewBackend()
	backend.Fix(
		"SELECT `u`.`name` AS `u_name` FROM `users` `u` WHERE (`u`.`age` > ?)",
		[]rql.Row{{"u_name": "ada"}, {"u_name": "bob"}},
	)

	p := planned(t, md, "range of u is users; retrieve(u.name) where u.age > 1;")
	rows, err := newExecutor(md, backend, memory.NewJSONSource()).
		Execute(rql.NewEmptyContext(), p, nil)
	require.NoError(err)
	require.Equal([]rql.Row{{"u_name": "ada"}, {"u_name": "bob"}}, rows)

	// No temporary stages means no transaction scope.
	begun, committed, rolledBack := backend.TxCounts()
	require.Zero(begun)
	require.Zero(committed)
	require.Zero(rolledBack)
}

func TestExecuteStageFailure(t *testing.T) {
	require := require.New(t)
	md := testMetadata()

	p := planned(t, md, "range of u is users; retrieve(u.name);")
	_, err := newExecutor(md, memory.NewBackend(), memory.NewJSONSource()).
		Execute(rql.NewEmptyContext(), p, nil)
	require.Error(err)
	require.True(rql.ErrStageFailed.Is(err))
	require.Contains(err.Error(), "main")
}

func TestExecuteEmptyPlan(t *testing.T) {
	require := require.New(t)
	md := testMetadata()

	_, err := newExecutor(md, memory.NewBackend(), memory.NewJSONSource()).
		Execute(rql.NewEmptyContext(), &plan.ExecutionPlan{}, nil)
	require.Error(err)
	require.True(rql.ErrEmptyPlan.Is(err))
}

func TestExecuteTempStages(t *testing.T) {
	require := require.New(t)
	md := testMetadata()

	backend := memory.NewBackend()
	backend.OnExecute = func(query string, args []interface{}) ([]rql.Row, error) {
		if strings.Contains(query, "FROM `posts`") {
			return []rql.Row{{"p_author": int64(7)}}, nil
		}
		return []rql.Row{{"u_name": "ada", "t_author": int64(7), "u_id": int64(7)}}, nil
	}

	q, err := parse.Parse(rql.NewEmptyContext(), `
		range of t is (range of p is posts; retrieve(p.author));
		range of u is users via u.id == t.author;
		retrieve(u.name, t.author);
	`)
	require.NoError(err)
	q, err = analyzer.NewDefault(md).Analyze(rql.NewEmptyContext(), q)
	require.NoError(err)
	p, err := decomposer.New(md).Decompose(rql.NewEmptyContext(), q)
	require.NoError(err)

	rows, err := newExecutor(md, backend, memory.NewJSONSource()).
		Execute(rql.NewEmptyContext(), p, nil)
	require.NoError(err)
	require.Equal([]rql.Row{{"u_name": "ada", "t_author": int64(7)}}, rows)

	// The materialized rows carry the exposed column names.
	table := q.Range("t").TempTable
	require.NotEmpty(table)
	require.Equal([]rql.Row{{"author": int64(7)}}, backend.TempRows(table))

	begun, committed, rolledBack := backend.TxCounts()
	require.Equal(1, begun)
	require.Equal(1, committed)
	require.Zero(rolledBack)
}

func TestExecuteTempFailureRollsBack(t *testing.T) {
	require := require.New(t)
	md := testMetadata()

	backend := memory.NewBackend()
	backend.OnExecute = func(query string, args []interface{}) ([]rql.Row, error) {
		return nil, memory.ErrNoFixture.New(query)
	}

	p := planned(t, md, `
		range of t is (range of p is posts; retrieve(p.author));
		range of u is users via u.id == t.author;
		retrieve(u.name, t.author);
	`)
	_, err := newExecutor(md, backend, memory.NewJSONSource()).
		Execute(rql.NewEmptyContext(), p, nil)
	require.Error(err)
	require.True(rql.ErrStageFailed.Is(err))

	begun, committed, rolledBack := backend.TxCounts()
	require.Equal(1, begun)
	require.Zero(committed)
	require.Equal(1, rolledBack)
}

func TestExecuteJSONCross(t *testing.T) {
	require := require.New(t)
	md := testMetadata()

	backend := memory.NewBackend()
	backend.Fix(
		"SELECT `u`.`name` AS `u_name` FROM `users` `u`",
		[]rql.Row{{"u_name": "ada"}},
	)

	source := memory.NewJSONSource()
	source.Add("events", []rql.Row{
		{"kind": "click"},
		{"kind": "view"},
	})

	p := planned(t, md, `
		range of u is users;
		range of j is json events;
		retrieve(u.name, j.kind) where j.kind == 'click';
	`)
	rows, err := newExecutor(md, backend, source).
		Execute(rql.NewEmptyContext(), p, nil)
	require.NoError(err)
	require.Equal([]rql.Row{{"u_name": "ada", "j_kind": "click"}}, rows)
}

func TestExecuteJSONLeftJoin(t *testing.T) {
	require := require.New(t)
	md := testMetadata()

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
		{"kind": "view", "user": int64(9)},
	})

	p := planned(t, md, `
		range of u is users;
		range of j is json events;
		retrieve(u.name, j.kind) where j.user == u.id;
	`)
	rows, err := newExecutor(md, backend, source).
		Execute(rql.NewEmptyContext(), p, nil)
	require.NoError(err)

	// ada matches a document, bob survives without one.
	require.ElementsMatch([]rql.Row{
		{"u_name": "ada", "j_kind": "click"},
		{"u_name": "bob"},
	}, rows)
}

func TestExecuteJSONOnlyQuery(t *testing.T) {
	require := require.New(t)
	md := testMetadata()

	source := memory.NewJSONSource()
	source.Add("events", []rql.Row{
		{"kind": "click"},
		{"kind": "view"},
	})

	// No relational range anywhere, the backend must stay silent.
	backend := memory.NewBackend()
	p := planned(t, md, "range of j is json events; retrieve(j.kind);")
	rows, err := newExecutor(md, backend, source).
		Execute(rql.NewEmptyContext(), p, nil)
	require.NoError(err)
	require.Equal([]rql.Row{{"j_kind": "click"}, {"j_kind": "view"}}, rows)
	require.Empty(backend.Statements())

	// Stage-local filters still apply.
	p = planned(t, md, "range of j is json events; retrieve(j.kind) where j.kind == 'view';")
	rows, err = newExecutor(md, backend, source).
		Execute(rql.NewEmptyContext(), p, nil)
	require.NoError(err)
	require.Equal([]rql.Row{{"j_kind": "view"}}, rows)
}

func TestExecuteUnknownJSONSource(t *testing.T) {
	require := require.New(t)
	md := testMetadata()

	backend := memory.NewBackend()
	backend.Fix(
		"SELECT `u`.`name` AS `u_name` FROM `users` `u`",
		[]rql.Row{{"u_name": "ada"}},
	)

	p := planned(t, md, `
		range of u is users;
		range of j is json missing;
		retrieve(u.name, j.kind);
	`)
	_, err := newExecutor(md, backend, memory.NewJSONSource()).
		Execute(rql.NewEmptyContext(), p, nil)
	require.Error(err)
	require.True(rql.ErrStageFailed.Is(err))
	require.Contains(err.Error(), "json:j")
}

func TestExecutePagedStage(t *testing.T) {
	require := require.New(t)
	md := testMetadata()

	backend := memory.NewBackend()
	backend.Fix(
		"SELECT `u`.`name` AS `u_name` FROM `users` `u` WHERE (`u`.`id` IN (?, ?))",
		[]rql.Row{{"u_name": "ada"}},
	)

	p := planned(t, md, `
		range of u is users;
		@final_keys
		retrieve(u.name) where u.id in (1, 2, 3)
		window 0 using window_size 2;
	`)
	rows, err := newExecutor(md, backend, memory.NewJSONSource()).
		Execute(rql.NewEmptyContext(), p, nil)
	require.NoError(err)
	require.Equal([]rql.Row{{"u_name": "ada"}}, rows)

	stmts := backend.Statements()
	require.Len(stmts, 1)
	require.Equal([]interface{}{int64(1), int64(2)}, stmts[0].Args)
}

func TestExecutePagedKeysRefetched(t *testing.T) {
	require := require.New(t)
	md := testMetadata()

	keyRows := []rql.Row{{"u_id": int64(1)}, {"u_id": int64(2)}}
	backend := memory.NewBackend()
	backend.OnExecute = func(query string, args []interface{}) ([]rql.Row, error) {
		if strings.Contains(query, "DISTINCT") {
			return keyRows, nil
		}
		return []rql.Row{{"u_name": "ada"}}, nil
	}
	exec := newExecutor(md, backend, memory.NewJSONSource())

	const query = `
		range of u is users;
		retrieve(u.name) where u.age > 0 window 0 using window_size 2;
	`
	p := planned(t, md, query)
	_, err := exec.Execute(rql.NewEmptyContext(), p, nil)
	require.NoError(err)

	// The data changed underneath, the next run of the same statement must
	// page over the new key list, not a remembered one.
	keyRows = []rql.Row{{"u_id": int64(7)}}
	p = planned(t, md, query)
	_, err = exec.Execute(rql.NewEmptyContext(), p, nil)
	require.NoError(err)

	stmts := backend.Statements()
	require.Len(stmts, 4)
	require.Contains(stmts[2].Query, "DISTINCT")
	require.Equal([]interface{}{int64(0), int64(7)}, stmts[3].Args)
}
