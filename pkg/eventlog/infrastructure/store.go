package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/akeemphilbert/eventcore/pkg/eventlog/domain"
)

// eventRecord is the events table row. Data holds the full {id, data,
// context} envelope exactly as encoded, so a later scan can republish it
// byte-for-byte; Namespace/Type/LegacyType/Time are denormalized out of it
// so they can be indexed and queried without a JSON path expression, which
// keeps the same schema working unmodified on both sqlite and postgres.
type eventRecord struct {
	ID         string    `gorm:"primaryKey"`
	Namespace  string    `gorm:"index:idx_events_identity,priority:1"`
	Type       string    `gorm:"index:idx_events_identity,priority:2"`
	LegacyType string    `gorm:"index"`
	Time       time.Time `gorm:"index"`
	Data       string    `gorm:"type:text"`
}

func (eventRecord) TableName() string { return "events" }

// GormStore is the durable append-only event log (C2), backed by GORM
// with the sqlite or postgres dialector.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the events table, creating or migrating its schema
// idempotently.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&eventRecord{}); err != nil {
		return nil, fmt.Errorf("%w: migrate events table: %v", domain.ErrFatal, err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Save(ctx context.Context, rec domain.RawRecord) (domain.Outcome, error) {
	row := eventRecord{
		ID:         rec.ID,
		Namespace:  rec.Namespace,
		Type:       rec.Type,
		LegacyType: rec.Namespace + "." + rec.Type,
		Time:       rec.Time,
		Data:       string(rec.Envelope),
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if result.Error != nil {
		return domain.AlreadyPresent, fmt.Errorf("%w: save event %s: %v", domain.ErrTransient, rec.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.AlreadyPresent, nil
	}
	return domain.Saved, nil
}

func (s *GormStore) Read(ctx context.Context, q domain.Query, since *time.Time) ([]domain.AnyEvent, error) {
	sub := s.db.WithContext(ctx).Table("events").Select("id").Where(q.SQL(), q.Args()...)

	tx := s.db.WithContext(ctx).Table("(?) AS matched", sub).
		Joins("JOIN events e ON e.id = matched.id")
	if since != nil {
		tx = tx.Where("e.time >= ?", *since)
	}

	var rows []eventRecord
	if err := tx.Select("e.*").Order("e.time ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: read events: %v", domain.ErrTransient, err)
	}
	return toAnyEvents(rows)
}

func (s *GormStore) LastEvent(ctx context.Context, namespace, typ string) (domain.AnyEvent, bool, error) {
	var row eventRecord
	err := s.db.WithContext(ctx).
		Where("namespace = ? AND type = ?", namespace, typ).
		Order("time DESC").
		Limit(1).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.AnyEvent{}, false, nil
	}
	if err != nil {
		return domain.AnyEvent{}, false, fmt.Errorf("%w: last event %s.%s: %v", domain.ErrTransient, namespace, typ, err)
	}

	events, err := toAnyEvents([]eventRecord{row})
	if err != nil {
		return domain.AnyEvent{}, false, err
	}
	return events[0], true, nil
}

func (s *GormStore) ReadEventsSince(ctx context.Context, namespace, typ string, since time.Time) ([]domain.RawRecord, error) {
	var rows []eventRecord
	err := s.db.WithContext(ctx).
		Where("namespace = ? AND type = ? AND time >= ?", namespace, typ, since).
		Order("time ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: read events since: %v", domain.ErrTransient, err)
	}

	out := make([]domain.RawRecord, len(rows))
	for i, row := range rows {
		out[i] = domain.RawRecord{
			ID:        row.ID,
			Namespace: row.Namespace,
			Type:      row.Type,
			Time:      row.Time,
			Envelope:  []byte(row.Data),
		}
	}
	return out, nil
}

func (s *GormStore) EventExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&eventRecord{}).Where("id = ?", id.String()).Count(&count).Error; err != nil {
		return false, fmt.Errorf("%w: event exists %s: %v", domain.ErrTransient, id, err)
	}
	return count > 0, nil
}

// storedEnvelope mirrors the {id, data, context} shape domain.Event[D]
// marshals to, without knowing the payload type: Data is left raw so it
// can be handed to a domain.Registry for dispatch.
type storedEnvelope struct {
	ID      uuid.UUID       `json:"id"`
	Data    json.RawMessage `json:"data"`
	Context domain.Context  `json:"context"`
}

func toAnyEvents(rows []eventRecord) ([]domain.AnyEvent, error) {
	out := make([]domain.AnyEvent, len(rows))
	for i, row := range rows {
		var wire storedEnvelope
		if err := json.Unmarshal([]byte(row.Data), &wire); err != nil {
			return nil, &domain.CorruptErr{ID: row.ID, Cause: err}
		}

		out[i] = domain.AnyEvent{
			ID:        wire.ID,
			Namespace: row.Namespace,
			Type:      row.Type,
			Context:   wire.Context,
			Payload:   wire.Data,
		}
	}
	return out, nil
}
