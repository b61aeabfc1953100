package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/akeemphilbert/eventcore/pkg/eventlog/domain"
)

// watermarkRecord is the last_handled_event_log table row, keyed by the
// (consumer domain, event namespace, event type) triple.
type watermarkRecord struct {
	Domain    string `gorm:"primaryKey"`
	Namespace string `gorm:"primaryKey"`
	Type      string `gorm:"primaryKey"`
	EventID   string
	Time      time.Time
}

func (watermarkRecord) TableName() string { return "last_handled_event_log" }

// GormWatermarkStore persists per-consumer watermarks (C6) on the same
// *gorm.DB as GormStore and GormCache.
type GormWatermarkStore struct {
	db *gorm.DB
}

// NewGormWatermarkStore opens the last_handled_event_log table, migrating
// it idempotently.
func NewGormWatermarkStore(db *gorm.DB) (*GormWatermarkStore, error) {
	if err := db.AutoMigrate(&watermarkRecord{}); err != nil {
		return nil, fmt.Errorf("%w: migrate last_handled_event_log table: %v", domain.ErrFatal, err)
	}
	return &GormWatermarkStore{db: db}, nil
}

func (w *GormWatermarkStore) Get(ctx context.Context, consumerDomain, namespace, typ string) (domain.Watermark, bool, error) {
	var row watermarkRecord
	err := w.db.WithContext(ctx).
		Where("domain = ? AND namespace = ? AND type = ?", consumerDomain, namespace, typ).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Watermark{}, false, nil
	}
	if err != nil {
		return domain.Watermark{}, false, fmt.Errorf("%w: get watermark %s/%s.%s: %v",
			domain.ErrTransient, consumerDomain, namespace, typ, err)
	}

	id, err := uuid.Parse(row.EventID)
	if err != nil {
		return domain.Watermark{}, false, fmt.Errorf("%w: watermark event id %q: %v", domain.ErrCorrupt, row.EventID, err)
	}
	return domain.Watermark{EventID: id, Time: row.Time}, true, nil
}

func (w *GormWatermarkStore) Set(ctx context.Context, consumerDomain, namespace, typ string, wm domain.Watermark) error {
	row := watermarkRecord{
		Domain:    consumerDomain,
		Namespace: namespace,
		Type:      typ,
		EventID:   wm.EventID.String(),
		Time:      wm.Time,
	}
	err := w.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "domain"}, {Name: "namespace"}, {Name: "type"}},
		DoUpdates: clause.AssignmentColumns([]string{"event_id", "time"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("%w: set watermark %s/%s.%s: %v", domain.ErrTransient, consumerDomain, namespace, typ, err)
	}
	return nil
}
