package domain

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Decoder turns a dispatched AnyEvent into one variant E of a domain's
// closed Events enum.
type Decoder[E any] func(AnyEvent) (E, error)

// Registry maps (namespace, type) pairs to decoders, giving Go a closed
// sum type over an open set of Data implementations. Go has no tagged
// unions and no generic methods on non-generic types, so dispatch is done
// with free functions registered against a combined-type key, the same
// shape as a plugin registry keyed by name.
type Registry[E any] struct {
	mu       sync.RWMutex
	decoders map[string]Decoder[E]
}

// NewRegistry returns an empty registry for the enum type E.
func NewRegistry[E any]() *Registry[E] {
	return &Registry[E]{decoders: make(map[string]Decoder[E])}
}

// Register binds a decoder to a (namespace, type) pair. Registering the
// same pair twice replaces the previous decoder.
func (r *Registry[E]) Register(namespace, typ string, fn Decoder[E]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[namespace+"."+typ] = fn
}

// Decode dispatches raw to the decoder registered for its identity. It
// returns ErrUnknownVariant if no decoder is registered for that identity.
func (r *Registry[E]) Decode(raw AnyEvent) (E, error) {
	key := raw.Namespace + "." + raw.Type
	r.mu.RLock()
	fn, ok := r.decoders[key]
	r.mu.RUnlock()
	if !ok {
		var zero E
		return zero, fmt.Errorf("%w: %s", ErrUnknownVariant, key)
	}
	return fn(raw)
}

// Identities reports every (namespace, type) pair currently registered, in
// no particular order.
func (r *Registry[E]) Identities() []Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Identity, 0, len(r.decoders))
	for key := range r.decoders {
		for i := 0; i < len(key); i++ {
			if key[i] == '.' {
				out = append(out, Identity{Namespace: key[:i], Type: key[i+1:]})
				break
			}
		}
	}
	return out
}

// Identity is a single (namespace, type) pair, independent of any payload
// type.
type Identity struct {
	Namespace string
	Type      string
}

func (id Identity) String() string { return id.Namespace + "." + id.Type }

// RegisterVariant is the common case of Registry.Register: D supplies its
// own identity, so the caller only provides how to lift a decoded
// Event[D] into the enum type E.
func RegisterVariant[E any, D Data](r *Registry[E], wrap func(Event[D]) E) {
	var zero D
	r.Register(zero.EventNamespace(), zero.EventType(), func(raw AnyEvent) (E, error) {
		var data D
		if err := json.Unmarshal(raw.Payload, &data); err != nil {
			var e E
			return e, &CorruptErr{ID: raw.ID.String(), Cause: err}
		}
		return wrap(Event[D]{ID: raw.ID, Data: data, Context: raw.Context}), nil
	})
}
