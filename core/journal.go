package core

import (
	"context"
	"sync"

	"landledger/core/types"
)

// journalBacklog bounds the in-memory event window. Older events remain
// available through the archive.
const journalBacklog = 4096

// EventRecord is one committed event with its journal sequence number.
// Sequences start at 1 and increase by one per event, so clients can resume a
// stream from any cursor.
type EventRecord struct {
	Sequence uint64       `json:"sequence"`
	Event    *types.Event `json:"event"`
}

// Journal collects every event emitted by the engines during command
// execution and fans them out to subscribers (websocket streams, the archive
// writer, metrics).
type Journal struct {
	mu      sync.Mutex
	records []EventRecord
	nextSeq uint64
	nextSub int
	subs    map[int]chan EventRecord
}

// NewJournal creates an empty journal.
func NewJournal() *Journal {
	return &Journal{
		nextSeq: 1,
		subs:    make(map[int]chan EventRecord),
	}
}

// Append records the event and notifies subscribers. Slow subscribers are
// skipped rather than blocking the committing command.
func (j *Journal) Append(evt *types.Event) EventRecord {
	if j == nil || evt == nil {
		return EventRecord{}
	}
	j.mu.Lock()
	record := EventRecord{Sequence: j.nextSeq, Event: evt.Clone()}
	j.nextSeq++
	j.records = append(j.records, record)
	if len(j.records) > journalBacklog {
		j.records = j.records[len(j.records)-journalBacklog:]
	}
	subs := make([]chan EventRecord, 0, len(j.subs))
	for _, ch := range j.subs {
		subs = append(subs, ch)
	}
	j.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- record:
		default:
		}
	}
	return record
}

// EventsSince returns up to limit records with a sequence strictly greater
// than the cursor. A zero cursor reads from the oldest retained record; a
// non-positive limit applies a default page size.
func (j *Journal) EventsSince(cursor uint64, limit int) []EventRecord {
	if j == nil {
		return nil
	}
	if limit <= 0 {
		limit = 100
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]EventRecord, 0, limit)
	for _, record := range j.records {
		if record.Sequence <= cursor {
			continue
		}
		out = append(out, record)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// Subscribe registers a live event channel and returns the retained backlog
// after the cursor. The cancel function must be called when the consumer is
// done; the channel is closed when the supplied context ends.
func (j *Journal) Subscribe(ctx context.Context, cursor uint64) (<-chan EventRecord, func(), []EventRecord) {
	if j == nil {
		ch := make(chan EventRecord)
		close(ch)
		return ch, func() {}, nil
	}
	ch := make(chan EventRecord, 128)
	j.mu.Lock()
	id := j.nextSub
	j.nextSub++
	j.subs[id] = ch
	backlog := make([]EventRecord, 0)
	for _, record := range j.records {
		if record.Sequence > cursor {
			backlog = append(backlog, record)
		}
	}
	j.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			j.mu.Lock()
			delete(j.subs, id)
			j.mu.Unlock()
			close(ch)
		})
	}
	if ctx != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}
	return ch, cancel, backlog
}
