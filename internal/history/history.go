// Package history keeps the capped translation history, newest first,
// persisted as a whole through the store on every mutation.
package history

import (
	"context"
	"sync"
	"time"

	"github.com/tripglot/translator-worker/internal/store"
)

// Origin identifies which flow produced a history item.
type Origin string

const (
	OriginCamera Origin = "camera"
	OriginVoice  Origin = "voice"
)

// Item is a single remembered translation.
type Item struct {
	SourceText  string `json:"sourceText"`
	TargetText  string `json:"targetText"`
	TimestampMs int64  `json:"timestampMs"`
	Origin      Origin `json:"origin"`
}

// Log is the capped, de-duplicated history list.
type Log struct {
	mu    sync.Mutex
	items []Item
	max   int
	store store.Store
}

// NewLog loads any persisted history from the store. A decode failure
// starts fresh rather than blocking startup.
func NewLog(ctx context.Context, st store.Store, max int) (*Log, error) {
	if max < 1 {
		max = 50
	}
	l := &Log{max: max, store: st}

	var persisted []Item
	found, err := st.Get(ctx, store.KeyHistory, &persisted)
	if err != nil {
		return l, err
	}
	if found {
		if len(persisted) > max {
			persisted = persisted[:max]
		}
		l.items = persisted
	}
	return l, nil
}

// Add prepends an item, dropping any existing entry with the same
// (source, target) pair, and persists the whole list.
func (l *Log) Add(ctx context.Context, item Item) error {
	if item.TimestampMs == 0 {
		item.TimestampMs = time.Now().UnixMilli()
	}

	l.mu.Lock()
	kept := l.items[:0]
	for _, existing := range l.items {
		if existing.SourceText == item.SourceText && existing.TargetText == item.TargetText {
			continue
		}
		kept = append(kept, existing)
	}
	l.items = append([]Item{item}, kept...)
	if len(l.items) > l.max {
		l.items = l.items[:l.max]
	}
	snapshot := make([]Item, len(l.items))
	copy(snapshot, l.items)
	l.mu.Unlock()

	return l.store.Set(ctx, store.KeyHistory, snapshot)
}

// Items returns a copy of the history, newest first.
func (l *Log) Items() []Item {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Item, len(l.items))
	copy(out, l.items)
	return out
}

// Len returns the current number of history items.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// Clear empties the history and removes the persisted copy.
func (l *Log) Clear(ctx context.Context) error {
	l.mu.Lock()
	l.items = nil
	l.mu.Unlock()
	return l.store.Delete(ctx, store.KeyHistory)
}
