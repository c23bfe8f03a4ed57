package rql

// ColumnType is the static type of a mapped column, used to infer the
// column definitions of materialized temporary tables.
type ColumnType int

const (
	// Text is the generic fallback type.
	Text ColumnType = iota
	Int64
	Float64
	Boolean
	Timestamp
)

func (t ColumnType) String() string {
	switch t {
	case Int64:
		return "BIGINT"
	case Float64:
		return "DOUBLE"
	case Boolean:
		return "BOOLEAN"
	case Timestamp:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

// Column describes one mapped column of an entity.
type Column struct {
	// Name is the physical column name.
	Name string
	// Type is the declared column type.
	Type ColumnType
	// Nullable reports whether the column admits NULL. Join strengthening
	// reads it to decide whether a WHERE reference implies row presence.
	Nullable bool
}

// Relationship describes a declared relationship between two entities.
type Relationship struct {
	// Target is the entity on the other side.
	Target string
	// Property is the owning side property.
	Property string
	// Inverse is the property on the target side, empty for unidirectional
	// relationships.
	Inverse string
	// Required reports whether the relationship is declared mandatory.
	// Required relationships let the optimizer strengthen LEFT joins to
	// INNER.
	Required bool
}

// Metadata is the entity metadata store the engine compiles against. The
// optimizer and decomposer only ever read it.
type Metadata interface {
	// Exists reports whether an entity with the given name is mapped.
	Exists(entity string) bool
	// ColumnMap returns the property to column mapping of an entity.
	ColumnMap(entity string) (map[string]Column, error)
	// IdentifierKeys returns the properties forming the entity's primary
	// identifier, in declaration order.
	IdentifierKeys(entity string) ([]string, error)
	// TableName returns the physical table the entity is mapped to.
	TableName(entity string) (string, error)
	// OneToOneDependencies returns the one-to-one relationships of the
	// entity keyed by property name.
	OneToOneDependencies(entity string) (map[string]Relationship, error)
	// ManyToOneDependencies returns the many-to-one relationships of the
	// entity keyed by property name.
	ManyToOneDependencies(entity string) (map[string]Relationship, error)
	// OneToManyDependencies returns the one-to-many relationships of the
	// entity keyed by property name.
	OneToManyDependencies(entity string) (map[string]Relationship, error)
}
