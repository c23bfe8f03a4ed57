package memory

import (
	"encoding/json"

	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/rangeql/rangeql/rql"
)

// ErrUnknownSource is returned when a query names a JSON source that was
// never registered.
var ErrUnknownSource = errors.NewKind("unknown JSON source: %s")

// JSONSource serves registered document sets as flat rows.
type JSONSource struct {
	sources map[string][]rql.Row
}

var _ rql.JSONSource = (*JSONSource)(nil)

// NewJSONSource returns an empty source registry.
func NewJSONSource() *JSONSource {
	return &JSONSource{sources: map[string][]rql.Row{}}
}

// Add registers the rows of a named source.
func (s *JSONSource) Add(name string, rows []rql.Row) {
	s.sources[name] = rows
}

// AddDocument registers a source from an encoded JSON array of objects.
func (s *JSONSource) AddDocument(name string, doc []byte) error {
	var rows []rql.Row
	if err := json.Unmarshal(doc, &rows); err != nil {
		return err
	}
	s.sources[name] = rows
	return nil
}

// JSONRows implements rql.JSONSource.
func (s *JSONSource) JSONRows(ctx *rql.Context, source string) ([]rql.Row, error) {
	rows, ok := s.sources[source]
	if !ok {
		return nil, ErrUnknownSource.New(source)
	}
	return rows, nil
}
