// Package unifier merges the event logs of several domain databases that
// share a namespace into one destination log, the Go counterpart of the
// original unify CLI: collect per source, deduplicate by event id, and
// insert everything into the destination inside a single transaction.
package unifier

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/akeemphilbert/eventcore/pkg/eventlog/domain"
)

// unifierEventRow mirrors the events table shape written by
// infrastructure.GormStore, duplicated here so this package can operate
// directly on a *gorm.DB without importing the store adapter.
type unifierEventRow struct {
	ID         string    `gorm:"primaryKey"`
	Namespace  string    `gorm:"index"`
	Type       string    `gorm:"index"`
	LegacyType string    `gorm:"index"`
	Time       time.Time `gorm:"index"`
	Data       string    `gorm:"type:text"`
}

func (unifierEventRow) TableName() string { return "events" }

func collect(ctx context.Context, source *gorm.DB, namespace string) ([]unifierEventRow, error) {
	var rows []unifierEventRow
	err := source.WithContext(ctx).
		Where("namespace = ?", namespace).
		Order("time ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: collect events for namespace %s: %v", domain.ErrTransient, namespace, err)
	}
	return rows, nil
}

// Unify reads every source database's events for namespace, deduplicates
// them by event id, and writes the result into dest's events table inside
// one transaction, optionally truncating it first. It returns the number
// of rows inserted.
//
// Event ids are required to be globally unique across all merged logs: if
// the deduplicated set is smaller than the total collected, that
// invariant has been violated and Unify fails rather than silently
// dropping events.
func Unify(ctx context.Context, sources []*gorm.DB, dest *gorm.DB, namespace string, truncateDest bool) (int, error) {
	var total int
	merged := make(map[string]unifierEventRow)

	for _, source := range sources {
		rows, err := collect(ctx, source, namespace)
		if err != nil {
			return 0, err
		}
		total += len(rows)
		for _, row := range rows {
			merged[row.ID] = row
		}
	}

	if len(merged) != total {
		return 0, fmt.Errorf("%w: unique event count %d does not match collected total %d for namespace %s",
			domain.ErrCorrupt, len(merged), total, namespace)
	}

	inserted := 0
	err := dest.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if truncateDest {
			if err := tx.Exec("DELETE FROM events").Error; err != nil {
				return fmt.Errorf("truncate destination events table: %w", err)
			}
		}

		for _, row := range merged {
			result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
			if result.Error != nil {
				return fmt.Errorf("insert event %s: %w", row.ID, result.Error)
			}
			inserted += int(result.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: unify namespace %s: %v", domain.ErrTransient, namespace, err)
	}

	return inserted, nil
}
