package plan

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rangeql/rangeql/rql"
)

func TestStagePostProcessor(t *testing.T) {
	require := require.New(t)

	// A stage without a post-processor passes its rows through.
	s := &Stage{Kind: StageSQL}
	rows, err := s.postProcess(rql.NewEmptyContext(), []rql.Row{{"a": 1}})
	require.NoError(err)
	require.Equal([]rql.Row{{"a": 1}}, rows)

	s.Post = RenameColumns(map[string]string{"a": "b"})
	rows, err = s.postProcess(rql.NewEmptyContext(), []rql.Row{{"a": 1, "x": 2}})
	require.NoError(err)
	require.Equal([]rql.Row{{"b": 1}}, rows)
}
