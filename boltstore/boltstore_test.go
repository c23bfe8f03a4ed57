package boltstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rangeql/rangeql/rql"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "events.db"), 0600)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestStorePutAndRows(t *testing.T) {
	require := require.New(t)
	s := openStore(t)

	require.NoError(s.Put("events", rql.Row{"kind": "click", "user": float64(1)}))
	require.NoError(s.Put("events", rql.Row{"kind": "view", "user": float64(2)}))

	rows, err := s.JSONRows(rql.NewEmptyContext(), "events")
	require.NoError(err)
	require.Len(rows, 2)

	// Sequence keys keep insertion order.
	require.Equal("click", rows[0]["kind"])
	require.Equal("view", rows[1]["kind"])
	require.Equal(float64(2), rows[1]["user"])
}

func TestStoreSourcesAreIsolated(t *testing.T) {
	require := require.New(t)
	s := openStore(t)

	require.NoError(s.Put("clicks", rql.Row{"n": float64(1)}))
	require.NoError(s.Put("views", rql.Row{"n": float64(2)}))

	rows, err := s.JSONRows(rql.NewEmptyContext(), "clicks")
	require.NoError(err)
	require.Len(rows, 1)
	require.Equal(float64(1), rows[0]["n"])
}

func TestStoreUnknownSource(t *testing.T) {
	require := require.New(t)
	s := openStore(t)

	_, err := s.JSONRows(rql.NewEmptyContext(), "missing")
	require.Error(err)
	require.True(ErrSourceNotFound.Is(err))
}
