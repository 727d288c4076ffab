package audit

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketRuns = []byte("runs")
	bucketMeta = []byte("meta")
	keyLatest  = []byte("latest")
)

// Checkpoint persists run summaries in a bbolt file so the latest report and
// its digest survive restarts. Row data stays in the CSV/Parquet artefacts;
// only the summary lives here.
type Checkpoint struct {
	db *bolt.DB
}

type checkpointEntry struct {
	RunID       string    `json:"runId"`
	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt"`
	Anomalies   []Anomaly `json:"anomalies,omitempty"`
	CSVPath     string    `json:"csvPath"`
	ParquetPath string    `json:"parquetPath"`
	Digest      string    `json:"digest"`
	Assets      int       `json:"assets"`
}

// OpenCheckpoint opens (or creates) the checkpoint database at path.
func OpenCheckpoint(path string) (*Checkpoint, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("audit: open checkpoint %q: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketRuns); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketMeta)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: init checkpoint: %w", err)
	}
	return &Checkpoint{db: db}, nil
}

// Close releases the underlying database.
func (c *Checkpoint) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// SaveLatest records the report summary under its run id and marks it as the
// latest run.
func (c *Checkpoint) SaveLatest(report *Report) error {
	if c == nil || c.db == nil || report == nil {
		return nil
	}
	entry := checkpointEntry{
		RunID:       report.RunID,
		StartedAt:   report.StartedAt,
		CompletedAt: report.CompletedAt,
		Anomalies:   report.Anomalies,
		CSVPath:     report.CSVPath,
		ParquetPath: report.ParquetPath,
		Digest:      report.Digest,
		Assets:      len(report.Rows),
	}
	encoded, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("audit: encode checkpoint: %w", err)
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketRuns).Put([]byte(report.RunID), encoded); err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(keyLatest, encoded)
	})
}

// LoadLatest restores the most recent run summary, if one was recorded.
func (c *Checkpoint) LoadLatest() (*Report, bool, error) {
	if c == nil || c.db == nil {
		return nil, false, nil
	}
	var raw []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(bucketMeta).Get(keyLatest)
		if value != nil {
			raw = append([]byte(nil), value...)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("audit: read checkpoint: %w", err)
	}
	if raw == nil {
		return nil, false, nil
	}
	var entry checkpointEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false, fmt.Errorf("audit: decode checkpoint: %w", err)
	}
	return &Report{
		RunID:       entry.RunID,
		StartedAt:   entry.StartedAt,
		CompletedAt: entry.CompletedAt,
		Anomalies:   entry.Anomalies,
		CSVPath:     entry.CSVPath,
		ParquetPath: entry.ParquetPath,
		Digest:      entry.Digest,
	}, true, nil
}
