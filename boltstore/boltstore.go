// Package boltstore serves JSON-backed ranges from a BoltDB file. Each
// source is one bucket, each document one JSON-encoded value under an
// arbitrary key.
package boltstore

import (
	"encoding/json"
	"os"
	"time"

	"github.com/boltdb/bolt"
	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/rangeql/rangeql/rql"
)

// ErrSourceNotFound is returned when no bucket exists for a source.
var ErrSourceNotFound = errors.NewKind("JSON source %q not found in store")

// Store is a BoltDB-backed rql.JSONSource.
type Store struct {
	db *bolt.DB
}

var _ rql.JSONSource = (*Store)(nil)

// Open opens or creates the store at path.
func Open(path string, mode os.FileMode) (*Store, error) {
	db, err := bolt.Open(path, mode, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Put appends a document to a source, creating the source as needed. The
// key is the bucket's next sequence number, iteration order is insertion
// order.
func (s *Store) Put(source string, doc rql.Row) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(source))
		if err != nil {
			return err
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(itob(seq), raw)
	})
}

// JSONRows implements rql.JSONSource.
func (s *Store) JSONRows(ctx *rql.Context, source string) ([]rql.Row, error) {
	var rows []rql.Row
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(source))
		if b == nil {
			return ErrSourceNotFound.New(source)
		}
		return b.ForEach(func(_, v []byte) error {
			var row rql.Row
			if err := json.Unmarshal(v, &row); err != nil {
				return err
			}
			rows = append(rows, row)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}
