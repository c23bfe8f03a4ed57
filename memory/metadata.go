// Package memory provides in-memory implementations of the engine's
// storage interfaces: a metadata store built by hand, a scripted SQL
// backend and a document source. They back the test suites and small
// embedded uses, nothing here is safe for concurrent mutation.
package memory

import (
	"github.com/rangeql/rangeql/rql"
)

// Entity is one mapped entity under construction. All With* methods
// return the entity for chaining.
type Entity struct {
	name      string
	table     string
	columns   map[string]rql.Column
	keys      []string
	oneToOne  map[string]rql.Relationship
	manyToOne map[string]rql.Relationship
	oneToMany map[string]rql.Relationship
}

// WithTable sets the physical table name. It defaults to the entity name.
func (e *Entity) WithTable(table string) *Entity {
	e.table = table
	return e
}

// WithColumn maps a property to a column.
func (e *Entity) WithColumn(property string, col rql.Column) *Entity {
	e.columns[property] = col
	return e
}

// WithKey declares the identifier properties, in order.
func (e *Entity) WithKey(properties ...string) *Entity {
	e.keys = append(e.keys, properties...)
	return e
}

// WithOneToOne declares a one-to-one relationship on a property.
func (e *Entity) WithOneToOne(property string, rel rql.Relationship) *Entity {
	rel.Property = property
	e.oneToOne[property] = rel
	return e
}

// WithManyToOne declares a many-to-one relationship on a property.
func (e *Entity) WithManyToOne(property string, rel rql.Relationship) *Entity {
	rel.Property = property
	e.manyToOne[property] = rel
	return e
}

// WithOneToMany declares a one-to-many relationship on a property.
func (e *Entity) WithOneToMany(property string, rel rql.Relationship) *Entity {
	rel.Property = property
	e.oneToMany[property] = rel
	return e
}

// Metadata is a hand-built metadata store.
type Metadata struct {
	entities map[string]*Entity
}

var _ rql.Metadata = (*Metadata)(nil)

// NewMetadata returns an empty metadata store.
func NewMetadata() *Metadata {
	return &Metadata{entities: map[string]*Entity{}}
}

// AddEntity registers an entity and returns it for configuration.
func (m *Metadata) AddEntity(name string) *Entity {
	e := &Entity{
		name:      name,
		table:     name,
		columns:   map[string]rql.Column{},
		oneToOne:  map[string]rql.Relationship{},
		manyToOne: map[string]rql.Relationship{},
		oneToMany: map[string]rql.Relationship{},
	}
	m.entities[name] = e
	return e
}

// Exists implements rql.Metadata.
func (m *Metadata) Exists(entity string) bool {
	_, ok := m.entities[entity]
	return ok
}

// ColumnMap implements rql.Metadata.
func (m *Metadata) ColumnMap(entity string) (map[string]rql.Column, error) {
	e, err := m.entity(entity)
	if err != nil {
		return nil, err
	}
	return e.columns, nil
}

// IdentifierKeys implements rql.Metadata.
func (m *Metadata) IdentifierKeys(entity string) ([]string, error) {
	e, err := m.entity(entity)
	if err != nil {
		return nil, err
	}
	return e.keys, nil
}

// TableName implements rql.Metadata.
func (m *Metadata) TableName(entity string) (string, error) {
	e, err := m.entity(entity)
	if err != nil {
		return "", err
	}
	return e.table, nil
}

// OneToOneDependencies implements rql.Metadata.
func (m *Metadata) OneToOneDependencies(entity string) (map[string]rql.Relationship, error) {
	e, err := m.entity(entity)
	if err != nil {
		return nil, err
	}
	return e.oneToOne, nil
}

// ManyToOneDependencies implements rql.Metadata.
func (m *Metadata) ManyToOneDependencies(entity string) (map[string]rql.Relationship, error) {
	e, err := m.entity(entity)
	if err != nil {
		return nil, err
	}
	return e.manyToOne, nil
}

// OneToManyDependencies implements rql.Metadata.
func (m *Metadata) OneToManyDependencies(entity string) (map[string]rql.Relationship, error) {
	e, err := m.entity(entity)
	if err != nil {
		return nil, err
	}
	return e.oneToMany, nil
}

func (m *Metadata) entity(name string) (*Entity, error) {
	e, ok := m.entities[name]
	if !ok {
		return nil, rql.ErrEntityNotFound.New(name)
	}
	return e, nil
}
