package catalog

import "github.com/akeemphilbert/eventcore/pkg/eventlog/domain"

// Event is the closed set of catalog events: exactly one field is set per
// decoded value, mirroring a Rust enum the way a registry-dispatched Go
// type can.
type Event struct {
	Added  *domain.Event[ItemAdded]
	Priced *domain.Event[PriceChanged]
}

// NewRegistry returns a registry dispatching both catalog event variants.
func NewRegistry() *domain.Registry[Event] {
	r := domain.NewRegistry[Event]()
	domain.RegisterVariant(r, func(e domain.Event[ItemAdded]) Event {
		return Event{Added: &e}
	})
	domain.RegisterVariant(r, func(e domain.Event[PriceChanged]) Event {
		return Event{Priced: &e}
	})
	return r
}
