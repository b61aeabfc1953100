package domain_test

import (
	"testing"

	"github.com/akeemphilbert/eventcore/pkg/eventlog/domain"
)

func TestFingerprintIsStableAndDiscriminating(t *testing.T) {
	t.Parallel()

	a := domain.RawQuery{Fragment: "widget_id = ?", Binds: []any{"w-1"}}
	b := domain.RawQuery{Fragment: "widget_id = ?", Binds: []any{"w-1"}}
	c := domain.RawQuery{Fragment: "widget_id = ?", Binds: []any{"w-2"}}

	fa, fb, fc := domain.Fingerprint(a), domain.Fingerprint(b), domain.Fingerprint(c)

	if fa != fb {
		t.Errorf("same query fingerprinted differently: %q vs %q", fa, fb)
	}
	if fa == fc {
		t.Errorf("different queries fingerprinted the same: %q", fa)
	}
}
