package archive

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"landledger/core"
	"landledger/core/types"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "events.db")
	archive, err := Open(Config{Driver: "sqlite", DSN: dsn}, nil)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	t.Cleanup(func() { _ = archive.Close() })
	return archive
}

func record(seq uint64, eventType string, attrs map[string]string) core.EventRecord {
	return core.EventRecord{
		Sequence: seq,
		Event:    &types.Event{Type: eventType, Attributes: attrs},
	}
}

func TestStoreAndQuery(t *testing.T) {
	archive := openTestArchive(t)

	events := []core.EventRecord{
		record(1, "assets.registered", map[string]string{"assetId": "1"}),
		record(2, "assets.minted", map[string]string{"assetId": "1", "amount": "100"}),
		record(3, "market.listed", map[string]string{"listingId": "1"}),
		record(4, "assets.registered", map[string]string{"assetId": "10"}),
	}
	for _, evt := range events {
		if err := archive.Store(evt); err != nil {
			t.Fatalf("store: %v", err)
		}
	}

	last, err := archive.LastSequence()
	if err != nil {
		t.Fatalf("last sequence: %v", err)
	}
	if last != 4 {
		t.Fatalf("expected last sequence 4, got %d", last)
	}

	stored, err := archive.Events(Query{Type: "assets.minted"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(stored) != 1 || stored[0].Sequence != 2 {
		t.Fatalf("unexpected result: %+v", stored)
	}

	stored, err = archive.Events(Query{After: 1})
	if err != nil {
		t.Fatalf("query after: %v", err)
	}
	if len(stored) != 3 {
		t.Fatalf("expected three events after cursor, got %d", len(stored))
	}

	// The asset filter must not match asset 10 when asking for asset 1.
	stored, err = archive.Events(Query{AssetID: 1})
	if err != nil {
		t.Fatalf("query by asset: %v", err)
	}
	if len(stored) != 2 || stored[0].Sequence != 1 || stored[1].Sequence != 2 {
		t.Fatalf("unexpected asset filter result: %+v", stored)
	}

	count, err := archive.Count("")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 4 {
		t.Fatalf("expected count 4, got %d", count)
	}
}

func TestStoreIgnoresReplayedSequences(t *testing.T) {
	archive := openTestArchive(t)

	original := record(5, "revenue.deposited", map[string]string{"amount": "100"})
	if err := archive.Store(original); err != nil {
		t.Fatalf("store: %v", err)
	}
	replay := record(5, "revenue.deposited", map[string]string{"amount": "999"})
	if err := archive.Store(replay); err != nil {
		t.Fatalf("replay store: %v", err)
	}

	stored, err := archive.Events(Query{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected one stored event, got %d", len(stored))
	}
	if stored[0].Attributes == `{"amount":"999"}` {
		t.Fatal("replay must not overwrite the original event")
	}
}

func TestBackfillReplaysJournalWindow(t *testing.T) {
	archive := openTestArchive(t)
	journal := core.NewJournal()

	var records []core.EventRecord
	for i := 0; i < 5; i++ {
		records = append(records, journal.Append(&types.Event{
			Type:       "assets.minted",
			Attributes: map[string]string{"amount": fmt.Sprintf("%d", i+1)},
		}))
	}
	if err := archive.Store(records[0]); err != nil {
		t.Fatalf("store: %v", err)
	}

	// Records 2-4 were dropped before record 5 arrived.
	cursor := archive.backfill(journal, 1, 5)
	if cursor != 4 {
		t.Fatalf("expected cursor 4, got %d", cursor)
	}
	stored, err := archive.Events(Query{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(stored) != 4 {
		t.Fatalf("expected four stored events, got %d", len(stored))
	}
	for i, evt := range stored {
		if evt.Sequence != uint64(i+1) {
			t.Fatalf("expected contiguous sequences, got %+v", stored)
		}
	}
}

func TestFollowRecoversDroppedRecords(t *testing.T) {
	archive := openTestArchive(t)
	journal := core.NewJournal()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = archive.Follow(ctx, journal)
	}()

	// A burst well past the subscriber channel capacity forces drops.
	total := uint64(400)
	for i := uint64(0); i < total; i++ {
		journal.Append(&types.Event{Type: "bank.transferred"})
	}

	// Later records let the follower spot the gap and refill it; keep
	// nudging until the archive has caught up with the journal head.
	deadline := time.Now().Add(10 * time.Second)
	for {
		last, err := archive.LastSequence()
		if err != nil {
			t.Fatalf("last sequence: %v", err)
		}
		if last >= total {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("archive stalled at sequence %d of %d", last, total)
		}
		journal.Append(&types.Event{Type: "bank.transferred"})
		total++
		time.Sleep(5 * time.Millisecond)
	}

	count, err := archive.Count("")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count < int64(400) {
		t.Fatalf("expected at least 400 archived events, got %d", count)
	}
	stored, err := archive.Events(Query{Limit: 1000, Before: 401})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(stored) != 400 {
		t.Fatalf("expected the first 400 sequences archived, got %d", len(stored))
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("follower did not stop")
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "oracle", DSN: "x"}, nil); err == nil {
		t.Fatal("expected unknown driver to fail")
	}
}
