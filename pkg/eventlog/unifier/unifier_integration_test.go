//go:build integration

package unifier

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&unifierEventRow{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedEvent(t *testing.T, db *gorm.DB, namespace string, when time.Time) unifierEventRow {
	t.Helper()
	row := unifierEventRow{
		ID:         uuid.NewString(),
		Namespace:  namespace,
		Type:       "Seeded",
		LegacyType: namespace + ".Seeded",
		Time:       when,
		Data:       `{"data":{}}`,
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("seed event: %v", err)
	}
	return row
}

func TestUnifyMergesDistinctEventsAcrossSources(t *testing.T) {
	ctx := context.Background()
	sourceA := openTestDB(t)
	sourceB := openTestDB(t)
	dest := openTestDB(t)

	seedEvent(t, sourceA, "catalog", time.Now().Add(-time.Hour))
	seedEvent(t, sourceB, "catalog", time.Now())
	seedEvent(t, sourceB, "other-namespace", time.Now())

	inserted, err := Unify(ctx, []*gorm.DB{sourceA, sourceB}, dest, "catalog", false)
	if err != nil {
		t.Fatalf("unify: %v", err)
	}
	if inserted != 2 {
		t.Fatalf("expected 2 inserted, got %d", inserted)
	}

	var count int64
	dest.Model(&unifierEventRow{}).Count(&count)
	if count != 2 {
		t.Fatalf("expected 2 rows in destination, got %d", count)
	}
}

func TestUnifyFailsOnDuplicateIDAcrossSources(t *testing.T) {
	ctx := context.Background()
	sourceA := openTestDB(t)
	sourceB := openTestDB(t)
	dest := openTestDB(t)

	shared := seedEvent(t, sourceA, "catalog", time.Now())
	if err := sourceB.Create(&unifierEventRow{
		ID: shared.ID, Namespace: "catalog", Type: "Seeded", LegacyType: "catalog.Seeded",
		Time: time.Now(), Data: `{"data":{}}`,
	}).Error; err != nil {
		t.Fatalf("seed duplicate: %v", err)
	}

	_, err := Unify(ctx, []*gorm.DB{sourceA, sourceB}, dest, "catalog", false)
	if err == nil {
		t.Fatalf("expected error on duplicate event id across sources")
	}
}

func TestUnifyTruncatesDestinationWhenRequested(t *testing.T) {
	ctx := context.Background()
	source := openTestDB(t)
	dest := openTestDB(t)

	seedEvent(t, dest, "catalog", time.Now().Add(-2*time.Hour))
	seedEvent(t, source, "catalog", time.Now())

	inserted, err := Unify(ctx, []*gorm.DB{source}, dest, "catalog", true)
	if err != nil {
		t.Fatalf("unify: %v", err)
	}
	if inserted != 1 {
		t.Fatalf("expected 1 inserted, got %d", inserted)
	}

	var count int64
	dest.Model(&unifierEventRow{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected destination truncated to just the new row, got %d", count)
	}
}
