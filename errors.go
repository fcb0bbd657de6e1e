package streambox

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrInvalidBatchSize indicates that the requested batch size is not positive.
	ErrInvalidBatchSize = errors.New("streambox batch size must be positive")
	// ErrNilBatch indicates that a store returned a nil batch.
	ErrNilBatch = errors.New("streambox batch is nil")
	// ErrNilStore is returned when a component is built without a Store.
	ErrNilStore = errors.New("streambox store is nil")
	// ErrIDRequired is returned when a record has no id.
	ErrIDRequired = errors.New("streambox record id is required")
	// ErrTypeRequired is returned when a record has an empty type discriminator.
	ErrTypeRequired = errors.New("streambox record type is required")
	// ErrInvalidStatus is returned when a record carries an unknown status.
	ErrInvalidStatus = errors.New("streambox record status is invalid")
	// ErrCreatedAtRequired is returned when a record has no creation time.
	ErrCreatedAtRequired = errors.New("streambox record creation time is required")
	// ErrDuplicateRecord is returned by Store.Save when the id already exists.
	ErrDuplicateRecord = errors.New("streambox record already exists")
	// ErrRecordNotFound is returned by Store.Finish for an unknown id.
	ErrRecordNotFound = errors.New("streambox record not found")
	// ErrDuplicateBox is returned when two boxes with the same name are registered.
	ErrDuplicateBox = errors.New("streambox box name already registered")
	// ErrNoProjection is returned by ProjectionMux for a type without a route.
	ErrNoProjection = errors.New("streambox projection is not registered")
	// ErrHandlerPanic wraps a panic raised while handling a record.
	ErrHandlerPanic = errors.New("streambox handler panic")
	// ErrTickPanic wraps a panic raised outside record handling during a tick.
	ErrTickPanic = errors.New("streambox tick panic")
)

// DeserializationError reports an inbound message that could not be decoded into a record.
// The store is not touched when it is returned.
type DeserializationError struct {
	Err error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("streambox: malformed inbound record: %v", e.Err)
}

func (e *DeserializationError) Unwrap() error {
	return e.Err
}

// UnknownEventTypeError reports a discriminator missing from the Registry.
type UnknownEventTypeError struct {
	Type string
}

func (e *UnknownEventTypeError) Error() string {
	return fmt.Sprintf("streambox: unknown event type %q", e.Type)
}

// PayloadDeserializationError reports a payload that does not match the registered shape.
type PayloadDeserializationError struct {
	Type string
	Err  error
}

func (e *PayloadDeserializationError) Error() string {
	return fmt.Sprintf("streambox: decode payload of type %q: %v", e.Type, e.Err)
}

func (e *PayloadDeserializationError) Unwrap() error {
	return e.Err
}

// HandlerError reports a failure of the box strategy (projection or sender).
type HandlerError struct {
	Box      string
	RecordID uuid.UUID
	Err      error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("streambox: box %q record %s: %v", e.Box, e.RecordID, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// ConfigParseError reports an interval or limit that cannot be used.
type ConfigParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ConfigParseError) Error() string {
	return fmt.Sprintf("streambox: invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ConfigParseError) Unwrap() error {
	return e.Err
}
