package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"landledger/core"
	"landledger/observability"
)

// StoredEvent is the archived form of one journal record. The bounded journal
// only retains a recent window; the archive keeps everything.
type StoredEvent struct {
	Sequence   uint64    `gorm:"primaryKey;autoIncrement:false" json:"sequence"`
	Type       string    `gorm:"index;size:64" json:"type"`
	Attributes string    `json:"attributes"`
	ArchivedAt time.Time `gorm:"index" json:"archivedAt"`
}

// TableName keeps the table name stable across gorm naming strategies.
func (StoredEvent) TableName() string { return "events" }

// Config selects the archive backend.
type Config struct {
	// Driver is "sqlite" or "postgres".
	Driver string
	DSN    string
}

// Archive persists journal events into a relational store and serves
// historical queries the in-memory journal can no longer answer.
type Archive struct {
	db  *gorm.DB
	log *slog.Logger
}

// Open connects to the configured backend and migrates the schema.
func Open(cfg Config, logger *slog.Logger) (*Archive, error) {
	if logger == nil {
		logger = slog.Default()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = "sqlite"
	}
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("archive: unsupported driver %q", cfg.Driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", driver, err)
	}
	if err := db.AutoMigrate(&StoredEvent{}); err != nil {
		return nil, fmt.Errorf("archive: migrate: %w", err)
	}
	return &Archive{db: db, log: logger.With("component", "archive")}, nil
}

// Close releases the underlying connection pool.
func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// LastSequence returns the highest archived sequence, or zero when empty.
func (a *Archive) LastSequence() (uint64, error) {
	var last StoredEvent
	err := a.db.Order("sequence DESC").First(&last).Error
	if err == gorm.ErrRecordNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("archive: last sequence: %w", err)
	}
	return last.Sequence, nil
}

// Store writes one journal record. Replayed sequences are ignored so the
// follower can resume from an overlapping cursor.
func (a *Archive) Store(record core.EventRecord) error {
	if record.Event == nil {
		return nil
	}
	attrs := "{}"
	if len(record.Event.Attributes) > 0 {
		encoded, err := json.Marshal(record.Event.Attributes)
		if err != nil {
			return fmt.Errorf("archive: encode attributes: %w", err)
		}
		attrs = string(encoded)
	}
	stored := StoredEvent{
		Sequence:   record.Sequence,
		Type:       record.Event.Type,
		Attributes: attrs,
		ArchivedAt: time.Now().UTC(),
	}
	err := a.db.Clauses().Where("sequence = ?", stored.Sequence).
		FirstOrCreate(&StoredEvent{}, stored).Error
	if err != nil {
		observability.Archive().RecordError()
		return fmt.Errorf("archive: store event %d: %w", record.Sequence, err)
	}
	observability.Archive().RecordStored(stored.Type)
	return nil
}

// Follow subscribes to the journal and persists every event until the
// context is cancelled. It resumes after the highest sequence already in the
// archive. The journal drops live records for a slow subscriber, so whenever
// a received sequence leaves a gap the follower replays the missing records
// from the journal window before storing it.
func (a *Archive) Follow(ctx context.Context, journal *core.Journal) error {
	cursor, err := a.LastSequence()
	if err != nil {
		return err
	}
	updates, cancel, backlog := journal.Subscribe(ctx, cursor)
	defer cancel()

	last := cursor
	for _, record := range backlog {
		if err := a.Store(record); err != nil {
			a.log.Error("archive write failed", "sequence", record.Sequence, "error", err)
			continue
		}
		if record.Sequence > last {
			last = record.Sequence
		}
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case record, ok := <-updates:
			if !ok {
				return nil
			}
			if record.Sequence > last+1 {
				last = a.backfill(journal, last, record.Sequence)
			}
			if err := a.Store(record); err != nil {
				a.log.Error("archive write failed", "sequence", record.Sequence, "error", err)
				continue
			}
			if record.Sequence > last {
				last = record.Sequence
			}
		}
	}
}

// backfill replays journal records in the open interval (cursor, next) that
// never reached the subscriber channel. It returns the highest sequence
// stored. Records already evicted from the journal window are gone; the gap
// is logged and skipped so the follower can keep up with the live stream.
func (a *Archive) backfill(journal *core.Journal, cursor, next uint64) uint64 {
	for cursor+1 < next {
		missed := journal.EventsSince(cursor, int(next-cursor-1))
		advanced := cursor
		for _, record := range missed {
			if record.Sequence >= next {
				break
			}
			if err := a.Store(record); err != nil {
				a.log.Error("archive write failed", "sequence", record.Sequence, "error", err)
				return advanced
			}
			advanced = record.Sequence
		}
		if advanced == cursor {
			a.log.Warn("journal records evicted before archiving", "after", cursor, "next", next)
			return next - 1
		}
		cursor = advanced
	}
	return cursor
}

// Query filters archived events. AssetID matches the assetId attribute
// embedded in the stored attribute JSON.
type Query struct {
	Type    string
	AssetID uint64
	After   uint64
	Limit   int
	Before  uint64
}

// Events returns archived events matching the query, oldest first.
func (a *Archive) Events(query Query) ([]StoredEvent, error) {
	limit := query.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	tx := a.db.Order("sequence ASC").Limit(limit)
	if query.Type != "" {
		tx = tx.Where("type = ?", query.Type)
	}
	if query.AssetID > 0 {
		tx = tx.Where("attributes LIKE ?", fmt.Sprintf(`%%"assetId":"%d"%%`, query.AssetID))
	}
	if query.After > 0 {
		tx = tx.Where("sequence > ?", query.After)
	}
	if query.Before > 0 {
		tx = tx.Where("sequence < ?", query.Before)
	}
	var out []StoredEvent
	if err := tx.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("archive: query events: %w", err)
	}
	return out, nil
}

// Count reports how many events of the given type are archived. An empty
// type counts everything.
func (a *Archive) Count(eventType string) (int64, error) {
	tx := a.db.Model(&StoredEvent{})
	if eventType != "" {
		tx = tx.Where("type = ?", eventType)
	}
	var count int64
	if err := tx.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("archive: count events: %w", err)
	}
	return count, nil
}
