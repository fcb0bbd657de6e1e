package streambox

import (
	"time"

	"github.com/google/uuid"
)

// Record is a single unit of work stored in a box.
//
// The JSON form is the envelope exchanged with brokers: an outbox sends it as the
// message body and an inbox decodes it in AddFromConsumer.
type Record struct {
	ID        uuid.UUID `json:"id"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	// Type is the discriminator resolved through the Registry.
	Type string `json:"type"`
	// Payload is the serialized event envelope.
	Payload string `json:"payload"`
}

// Pending reports whether the record still awaits processing.
func (r Record) Pending() bool {
	return r.Status == StatusPending
}

// Validate checks the fields a store requires before persisting the record.
func (r Record) Validate() error {
	return ValidateRecord(r)
}

// ValidateRecord checks that a record is complete enough to be saved.
func ValidateRecord(r Record) error {
	if r.ID == uuid.Nil {
		return ErrIDRequired
	}
	if r.Type == "" {
		return ErrTypeRequired
	}
	if !r.Status.Valid() {
		return ErrInvalidStatus
	}
	if r.CreatedAt.IsZero() {
		return ErrCreatedAtRequired
	}

	return nil
}
