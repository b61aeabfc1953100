// Package domain holds the event-sourcing core's data model and port
// interfaces: the event envelope and identity (C1), and the contracts the
// store, cache, broker, and watermark adapters (C2-C4, C6) must satisfy.
// Nothing in this package talks to a database or a broker; infrastructure
// packages provide the adapters.
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Data is implemented by every event payload variant. Both accessors are
// pure and must not depend on the receiver's field values: the identity is
// statically attached to the type, not to an instance of it.
type Data interface {
	EventNamespace() string
	EventType() string
}

// CombinedType renders a payload's identity as "namespace.type", the
// legacy wire form and the broker subject/queue-name building block.
func CombinedType(d Data) string {
	return d.EventNamespace() + "." + d.EventType()
}

// Context carries the creation time of an event plus two opaque,
// caller-defined fields. Neither Action nor Subject has documented
// semantics in the core; they are carried through encode/decode unchanged.
type Context struct {
	Time    time.Time       `json:"time"`
	Action  *string         `json:"action"`
	Subject json.RawMessage `json:"subject,omitempty"`
}

// Event wraps a typed payload with an id and a context. D is one variant of
// a domain's closed Events enum (see Registry).
type Event[D Data] struct {
	ID      uuid.UUID
	Data    D
	Context Context
}

// NewEvent builds an event from an explicit id, context, and payload.
func NewEvent[D Data](id uuid.UUID, ctx Context, data D) Event[D] {
	return Event[D]{ID: id, Data: data, Context: ctx}
}

// FromData builds an event with a fresh v4 UUID and the current UTC time.
func FromData[D Data](data D) Event[D] {
	return Event[D]{ID: uuid.New(), Data: data, Context: Context{Time: time.Now().UTC()}}
}

// wireEnvelope is the JSON shape of {id, data, context}; Data is left raw
// so MarshalJSON/UnmarshalJSON can inject/extract the redundant identity
// fields without knowing the payload type ahead of time.
type wireEnvelope struct {
	ID      uuid.UUID       `json:"id"`
	Data    json.RawMessage `json:"data"`
	Context Context         `json:"context"`
}

// MarshalJSON flattens the payload and stamps it with event_namespace,
// event_type, and the legacy combined "type" field, per §6 of the wire
// format contract. All three are always emitted on encode.
func (e Event[D]) MarshalJSON() ([]byte, error) {
	payload, err := json.Marshal(e.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("marshal event payload: payload must encode to a JSON object: %w", err)
	}
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}

	ns, typ := e.Data.EventNamespace(), e.Data.EventType()
	nsJSON, err := json.Marshal(ns)
	if err != nil {
		return nil, err
	}
	typJSON, err := json.Marshal(typ)
	if err != nil {
		return nil, err
	}
	combinedJSON, err := json.Marshal(ns + "." + typ)
	if err != nil {
		return nil, err
	}
	fields["event_namespace"] = nsJSON
	fields["event_type"] = typJSON
	fields["type"] = combinedJSON

	dataBytes, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}

	return json.Marshal(wireEnvelope{ID: e.ID, Data: dataBytes, Context: e.Context})
}

// UnmarshalJSON accepts either the modern event_namespace/event_type pair
// or the legacy combined "type" field (modern wins if both are present),
// then parses the remaining fields into D. It fails with ErrMalformedIdentity
// when neither form is present, and with ErrUnknownVariant when the decoded
// identity does not match D's own static identity.
func (e *Event[D]) UnmarshalJSON(b []byte) error {
	var wire wireEnvelope
	if err := json.Unmarshal(b, &wire); err != nil {
		return fmt.Errorf("unmarshal event envelope: %w", err)
	}

	ns, typ, err := ExtractIdentity(wire.Data)
	if err != nil {
		return err
	}

	var data D
	if err := json.Unmarshal(wire.Data, &data); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if data.EventNamespace() != ns || data.EventType() != typ {
		return fmt.Errorf("%w: decoded identity %s.%s does not match payload identity %s.%s",
			ErrUnknownVariant, ns, typ, data.EventNamespace(), data.EventType())
	}

	e.ID = wire.ID
	e.Data = data
	e.Context = wire.Context
	return nil
}

// ExtractIdentity pulls (namespace, type) out of a raw "data" JSON object,
// preferring the modern event_namespace/event_type pair and falling back to
// splitting the legacy "type" field on its first dot.
func ExtractIdentity(dataJSON []byte) (namespace, typ string, err error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(dataJSON, &m); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrMalformedIdentity, err)
	}

	if nsRaw, ok := m["event_namespace"]; ok {
		if typRaw, ok2 := m["event_type"]; ok2 {
			var ns, t string
			if err := json.Unmarshal(nsRaw, &ns); err == nil {
				if err := json.Unmarshal(typRaw, &t); err == nil && ns != "" && t != "" {
					return ns, t, nil
				}
			}
		}
	}

	if legacyRaw, ok := m["type"]; ok {
		var legacy string
		if err := json.Unmarshal(legacyRaw, &legacy); err == nil {
			if idx := strings.IndexByte(legacy, '.'); idx > 0 && idx < len(legacy)-1 {
				return legacy[:idx], legacy[idx+1:], nil
			}
		}
	}

	return "", "", ErrMalformedIdentity
}

// RawRecord is the byte-exact form of a persisted event: the full
// {id, data, context} envelope plus the identity and time extracted for
// indexing. Store.ReadEventsSince returns these uninterpreted so the replay
// handler (C7) can republish the original payload byte-for-byte.
type RawRecord struct {
	ID        string
	Namespace string
	Type      string
	Time      time.Time
	Envelope  []byte
}

// AnyEvent is a parsed-but-not-dispatched event: identity plus raw payload
// JSON. Store.Read and Store.LastEvent return these; a Registry dispatches
// them into a closed Events enum.
type AnyEvent struct {
	ID        uuid.UUID
	Namespace string
	Type      string
	Context   Context
	Payload   json.RawMessage
}

// Encode renders an Event[D] to its RawRecord form for Store.Save.
func Encode[D Data](e Event[D]) (RawRecord, error) {
	envelope, err := json.Marshal(e)
	if err != nil {
		return RawRecord{}, fmt.Errorf("encode event: %w", err)
	}
	return RawRecord{
		ID:        e.ID.String(),
		Namespace: e.Data.EventNamespace(),
		Type:      e.Data.EventType(),
		Time:      e.Context.Time,
		Envelope:  envelope,
	}, nil
}
