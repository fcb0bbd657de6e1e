package streambox

import "github.com/google/uuid"

// IDGenerator produces identifiers for new records.
type IDGenerator interface {
	New() (uuid.UUID, error)
}

// UUIDv7Generator generates time-ordered UUID v7 values.
type UUIDv7Generator struct{}

// New implements IDGenerator.
func (UUIDv7Generator) New() (uuid.UUID, error) {
	return uuid.NewV7()
}

// IDGeneratorFunc adapts a function to IDGenerator.
type IDGeneratorFunc func() (uuid.UUID, error)

// New implements IDGenerator.
func (fn IDGeneratorFunc) New() (uuid.UUID, error) {
	return fn()
}
