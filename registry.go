package streambox

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Shape decodes a payload into the typed envelope registered for a discriminator.
type Shape struct {
	decode func(codec Codec, payload []byte) (Message, error)
}

// Decode parses payload into the registered envelope type and returns it as a Message.
func (s Shape) Decode(codec Codec, payload string) (Message, error) {
	if codec == nil {
		codec = JSONCodec{}
	}

	return s.decode(codec, []byte(payload))
}

// RegistryEntry binds a discriminator to a payload shape. Use Register to build one.
type RegistryEntry struct {
	discriminator string
	shape         Shape
}

// Register creates a registry entry decoding payloads into Envelope[T].
func Register[T any](discriminator string) RegistryEntry {
	return RegistryEntry{
		discriminator: discriminator,
		shape: Shape{decode: func(codec Codec, payload []byte) (Message, error) {
			var env Envelope[T]
			if err := codec.Unmarshal(payload, &env); err != nil {
				return Message{}, err
			}

			return Message{ID: env.ID, Type: env.Type, Payload: env.Payload}, nil
		}},
	}
}

// Registry maps discriminators to payload shapes. It is immutable after construction.
type Registry struct {
	shapes map[string]Shape
}

// NewRegistry builds a registry, rejecting empty and duplicate discriminators.
func NewRegistry(entries ...RegistryEntry) (*Registry, error) {
	shapes := make(map[string]Shape, len(entries))
	for _, entry := range entries {
		if entry.discriminator == "" {
			return nil, fmt.Errorf("streambox registry: %w", ErrTypeRequired)
		}
		if _, ok := shapes[entry.discriminator]; ok {
			return nil, fmt.Errorf("streambox registry: duplicate type %q", entry.discriminator)
		}
		shapes[entry.discriminator] = entry.shape
	}

	return &Registry{shapes: shapes}, nil
}

// MustNewRegistry is like NewRegistry but panics on error.
func MustNewRegistry(entries ...RegistryEntry) *Registry {
	registry, err := NewRegistry(entries...)
	if err != nil {
		panic(err)
	}

	return registry
}

// Resolve returns the shape registered for discriminator.
func (r *Registry) Resolve(discriminator string) (Shape, bool) {
	shape, ok := r.shapes[discriminator]

	return shape, ok
}

// Types returns the registered discriminators in sorted order.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.shapes))
	for discriminator := range r.shapes {
		types = append(types, discriminator)
	}
	sort.Strings(types)

	return types
}

// ProjectionMux routes messages to typed callbacks by discriminator.
type ProjectionMux struct {
	routes map[string]ProjectionFunc
}

// NewProjectionMux returns an empty mux.
func NewProjectionMux() *ProjectionMux {
	return &ProjectionMux{routes: make(map[string]ProjectionFunc)}
}

// HandleType routes messages of the given discriminator to fn. The registry entry for
// the same discriminator must decode into T.
func HandleType[T any](mux *ProjectionMux, discriminator string, fn func(ctx context.Context, id uuid.UUID, event T) error) {
	mux.routes[discriminator] = func(ctx context.Context, msg Message) error {
		event, ok := msg.Payload.(T)
		if !ok {
			return fmt.Errorf("streambox projection: type %q carries %T", discriminator, msg.Payload)
		}

		return fn(ctx, msg.ID, event)
	}
}

// Project implements Projection.
func (m *ProjectionMux) Project(ctx context.Context, msg Message) error {
	route, ok := m.routes[msg.Type]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoProjection, msg.Type)
	}

	return route(ctx, msg)
}
