package domain_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/akeemphilbert/eventcore/pkg/eventlog/domain"
)

type widgetCreated struct {
	WidgetID string `json:"widget_id"`
	Name     string `json:"name"`
}

func (widgetCreated) EventNamespace() string { return "inventory" }
func (widgetCreated) EventType() string      { return "WidgetCreated" }

func TestEventRoundTrip(t *testing.T) {
	t.Parallel()

	ev := domain.FromData(widgetCreated{WidgetID: "w-1", Name: "Sprocket"})

	encoded, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded domain.Event[widgetCreated]
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded.ID != ev.ID {
		t.Errorf("id: got %v, want %v", decoded.ID, ev.ID)
	}
	if decoded.Data != ev.Data {
		t.Errorf("data: got %+v, want %+v", decoded.Data, ev.Data)
	}
}

func TestEventMarshalStampsIdentity(t *testing.T) {
	t.Parallel()

	ev := domain.FromData(widgetCreated{WidgetID: "w-1", Name: "Sprocket"})
	encoded, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var wire struct {
		Data struct {
			Namespace string `json:"event_namespace"`
			Type      string `json:"event_type"`
			Combined  string `json:"type"`
		} `json:"data"`
	}
	if err := json.Unmarshal(encoded, &wire); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}

	if wire.Data.Namespace != "inventory" || wire.Data.Type != "WidgetCreated" {
		t.Errorf("identity fields: got %+v", wire.Data)
	}
	if wire.Data.Combined != "inventory.WidgetCreated" {
		t.Errorf("combined type: got %q", wire.Data.Combined)
	}
}

func TestExtractIdentityLegacyForm(t *testing.T) {
	t.Parallel()

	ns, typ, err := domain.ExtractIdentity([]byte(`{"type":"inventory.WidgetCreated","widget_id":"w-1"}`))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if ns != "inventory" || typ != "WidgetCreated" {
		t.Errorf("got (%q, %q)", ns, typ)
	}
}

func TestExtractIdentityModernWinsOverLegacy(t *testing.T) {
	t.Parallel()

	ns, typ, err := domain.ExtractIdentity([]byte(
		`{"event_namespace":"inventory","event_type":"WidgetCreated","type":"stale.Mismatch"}`))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if ns != "inventory" || typ != "WidgetCreated" {
		t.Errorf("got (%q, %q)", ns, typ)
	}
}

func TestExtractIdentityMalformed(t *testing.T) {
	t.Parallel()

	_, _, err := domain.ExtractIdentity([]byte(`{"widget_id":"w-1"}`))
	if !errors.Is(err, domain.ErrMalformedIdentity) {
		t.Errorf("got %v, want ErrMalformedIdentity", err)
	}
}

func TestEventUnmarshalUnknownVariant(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"id":"` + uuid.New().String() + `","data":{"event_namespace":"inventory","event_type":"WidgetRenamed","widget_id":"w-1","name":"x"},"context":{"time":"` + time.Now().UTC().Format(time.RFC3339) + `","action":null}}`)

	var decoded domain.Event[widgetCreated]
	err := json.Unmarshal(raw, &decoded)
	if !errors.Is(err, domain.ErrUnknownVariant) {
		t.Errorf("got %v, want ErrUnknownVariant", err)
	}
}

func TestEncodeProducesRawRecord(t *testing.T) {
	t.Parallel()

	ev := domain.FromData(widgetCreated{WidgetID: "w-1", Name: "Sprocket"})
	rec, err := domain.Encode(ev)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if rec.ID != ev.ID.String() {
		t.Errorf("rec.ID: got %q, want %q", rec.ID, ev.ID.String())
	}
	if rec.Namespace != "inventory" || rec.Type != "WidgetCreated" {
		t.Errorf("rec identity: got (%q, %q)", rec.Namespace, rec.Type)
	}
	if !rec.Time.Equal(ev.Context.Time) {
		t.Errorf("rec.Time: got %v, want %v", rec.Time, ev.Context.Time)
	}
	if len(rec.Envelope) == 0 {
		t.Error("expected non-empty envelope")
	}
}
