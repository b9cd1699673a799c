package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"socialtree/core/events"
	"socialtree/core/types"
	"socialtree/observability/metrics"
)

const eventHistoryLimit = 2048

// EventRecord is one committed ledger event as seen by stream consumers. The
// cursor is a decimal sequence number; replay resumes strictly after it.
type EventRecord struct {
	Sequence   uint64            `json:"sequence"`
	Cursor     string            `json:"cursor"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	Timestamp  int64             `json:"timestamp"`
}

func cloneEventRecord(record EventRecord) EventRecord {
	cloned := record
	if record.Attributes != nil {
		attrs := make(map[string]string, len(record.Attributes))
		for k, v := range record.Attributes {
			attrs[k] = v
		}
		cloned.Attributes = attrs
	}
	return cloned
}

// EventFeed buffers events emitted during a mutator and publishes them only
// once the state overlay commits, so subscribers never observe effects of a
// reverted transaction. It keeps a bounded history for cursor-based replay.
type EventFeed struct {
	mu      sync.Mutex
	pending []EventRecord
	buffer  bool

	seq     uint64
	history []EventRecord
	subs    map[uint64]chan EventRecord
	nextID  uint64
	nowFn   func() int64
}

// NewEventFeed constructs an empty feed.
func NewEventFeed() *EventFeed {
	return &EventFeed{
		subs:  make(map[uint64]chan EventRecord),
		nowFn: func() int64 { return time.Now().Unix() },
	}
}

type rawEvent interface {
	Event() *types.Event
}

// Emit implements events.Emitter. Events emitted outside a transaction are
// published immediately.
func (f *EventFeed) Emit(evt events.Event) {
	if f == nil || evt == nil {
		return
	}
	record := EventRecord{Type: evt.EventType()}
	if raw, ok := evt.(rawEvent); ok {
		if payload := raw.Event(); payload != nil {
			record.Attributes = payload.Attributes
		}
	}
	f.mu.Lock()
	record.Timestamp = f.nowFn()
	if f.buffer {
		f.pending = append(f.pending, record)
		f.mu.Unlock()
		return
	}
	sequenced, subscribers := f.publishLocked(record)
	f.mu.Unlock()
	deliver(subscribers, sequenced)
}

func (f *EventFeed) begin() {
	f.mu.Lock()
	f.buffer = true
	f.pending = f.pending[:0]
	f.mu.Unlock()
}

func (f *EventFeed) revert() {
	f.mu.Lock()
	f.buffer = false
	f.pending = f.pending[:0]
	f.mu.Unlock()
}

func (f *EventFeed) commit() {
	f.mu.Lock()
	committed := make([]EventRecord, len(f.pending))
	copy(committed, f.pending)
	f.buffer = false
	f.pending = f.pending[:0]
	f.mu.Unlock()

	for _, record := range committed {
		metrics.Commission().RecordEvent(record.Type)
		f.mu.Lock()
		sequenced, subscribers := f.publishLocked(record)
		f.mu.Unlock()
		deliver(subscribers, sequenced)
	}
}

// publishLocked assigns a sequence, appends to history and snapshots the
// subscriber channels. Caller holds f.mu.
func (f *EventFeed) publishLocked(record EventRecord) (EventRecord, []chan EventRecord) {
	f.seq++
	record.Sequence = f.seq
	record.Cursor = strconv.FormatUint(record.Sequence, 10)
	f.history = append(f.history, cloneEventRecord(record))
	if len(f.history) > eventHistoryLimit {
		excess := len(f.history) - eventHistoryLimit
		trimmed := make([]EventRecord, eventHistoryLimit)
		copy(trimmed, f.history[excess:])
		f.history = trimmed
	}
	subscribers := make([]chan EventRecord, 0, len(f.subs))
	for _, ch := range f.subs {
		subscribers = append(subscribers, ch)
	}
	return record, subscribers
}

func deliver(subscribers []chan EventRecord, record EventRecord) {
	for _, ch := range subscribers {
		select {
		case ch <- record:
		default:
		}
	}
}

// Subscribe registers a consumer for committed events occurring strictly
// after the supplied cursor. It returns the live channel, a cancel function
// and the replayable backlog.
func (f *EventFeed) Subscribe(ctx context.Context, cursor string) (<-chan EventRecord, func(), []EventRecord, error) {
	if f == nil {
		return nil, nil, nil, fmt.Errorf("event feed not initialised")
	}
	updates := make(chan EventRecord, 32)

	var since uint64
	if trimmed := strings.TrimSpace(cursor); trimmed != "" {
		parsed, err := strconv.ParseUint(trimmed, 10, 64)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("invalid cursor %q", cursor)
		}
		since = parsed
	}

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = updates
	history := make([]EventRecord, len(f.history))
	copy(history, f.history)
	f.mu.Unlock()

	backlog := make([]EventRecord, 0, len(history))
	for _, entry := range history {
		if entry.Sequence > since {
			backlog = append(backlog, cloneEventRecord(entry))
		}
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			sub, ok := f.subs[id]
			if ok {
				delete(f.subs, id)
				close(sub)
			}
			f.mu.Unlock()
		})
	}

	if ctx != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}

	return updates, cancel, backlog, nil
}
