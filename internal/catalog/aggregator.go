package catalog

import "github.com/akeemphilbert/eventcore/pkg/eventlog/domain"

// ItemSummary is the current projected state of one catalog item.
type ItemSummary struct {
	ItemID string `json:"item_id"`
	Name   string `json:"name"`
	Price  int    `json:"price"`
	Exists bool   `json:"exists"`
}

// ItemQuery selects the events backing one item's ItemSummary.
type ItemQuery struct {
	ItemID string
}

func (q ItemQuery) SQL() string  { return "json_extract(data, '$.data.item_id') = ?" }
func (q ItemQuery) Args() []any { return []any{q.ItemID} }

// ItemAggregator folds ItemAdded/PriceChanged events into an ItemSummary.
// It carries no state of its own: Default/Query/ApplyEvent are pure
// functions, so one ItemAggregator value serves every item.
type ItemAggregator struct{}

func (ItemAggregator) Default() ItemSummary { return ItemSummary{} }

func (ItemAggregator) Query(args ItemQuery) domain.Query { return args }

func (ItemAggregator) ApplyEvent(acc ItemSummary, event Event) ItemSummary {
	switch {
	case event.Added != nil:
		data := event.Added.Data
		acc.ItemID = data.ItemID
		acc.Name = data.Name
		acc.Price = data.Price
		acc.Exists = true
	case event.Priced != nil:
		acc.Price = event.Priced.Data.Price
	}
	return acc
}
