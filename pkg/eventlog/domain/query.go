package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Query is a store-agnostic predicate over events: a parameterized SQL
// fragment plus its bind arguments. Store implementations wrap it in the
// subquery form described in §4 (filter on id in (SELECT id FROM events
// WHERE <predicate>), then return the matching rows in time order) so a
// predicate over one column never constrains which columns come back.
type Query interface {
	SQL() string
	Args() []any
}

// Fingerprint derives a cache key from a query: a query with the same SQL
// and arguments always fingerprints to the same value, so the cache can be
// shared across process restarts and across aggregator instances.
func Fingerprint(q Query) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%v:[%s]", q.Args(), q.SQL())))
	return hex.EncodeToString(sum[:])
}

// RawQuery is a Query built directly from a SQL fragment and its
// arguments, for callers that don't want a dedicated query type per
// aggregation.
type RawQuery struct {
	Fragment string
	Binds    []any
}

func (q RawQuery) SQL() string   { return q.Fragment }
func (q RawQuery) Args() []any   { return q.Binds }
