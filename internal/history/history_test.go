package history

import (
	"context"
	"fmt"
	"testing"

	"github.com/tripglot/translator-worker/internal/store"
)

func TestLog_AddPrependsNewestFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l, err := NewLog(ctx, store.NewMemoryStore(), 50)
	if err != nil {
		t.Fatalf("NewLog: %v", err)
	}

	l.Add(ctx, Item{SourceText: "駅", TargetText: "Station", Origin: OriginCamera})
	l.Add(ctx, Item{SourceText: "出口", TargetText: "Exit", Origin: OriginCamera})

	items := l.Items()
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	if items[0].SourceText != "出口" {
		t.Errorf("newest first violated: %q", items[0].SourceText)
	}
	if items[0].TimestampMs == 0 {
		t.Error("timestamp should be filled in")
	}
}

func TestLog_DeduplicatesSamePair(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l, err := NewLog(ctx, store.NewMemoryStore(), 50)
	if err != nil {
		t.Fatalf("NewLog: %v", err)
	}

	l.Add(ctx, Item{SourceText: "駅", TargetText: "Station"})
	l.Add(ctx, Item{SourceText: "出口", TargetText: "Exit"})
	l.Add(ctx, Item{SourceText: "駅", TargetText: "Station"})

	items := l.Items()
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2 (duplicate collapsed)", len(items))
	}
	if items[0].SourceText != "駅" {
		t.Errorf("re-added item should move to front, got %q", items[0].SourceText)
	}

	// Same source with a different translation is a distinct entry.
	l.Add(ctx, Item{SourceText: "駅", TargetText: "Train station"})
	if l.Len() != 3 {
		t.Errorf("len = %d, want 3", l.Len())
	}
}

func TestLog_CapsLength(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l, err := NewLog(ctx, store.NewMemoryStore(), 5)
	if err != nil {
		t.Fatalf("NewLog: %v", err)
	}

	for i := 0; i < 8; i++ {
		l.Add(ctx, Item{SourceText: fmt.Sprintf("s-%d", i), TargetText: fmt.Sprintf("t-%d", i)})
	}

	items := l.Items()
	if len(items) != 5 {
		t.Fatalf("len = %d, want 5", len(items))
	}
	if items[0].SourceText != "s-7" || items[4].SourceText != "s-3" {
		t.Errorf("wrong window kept: first=%q last=%q", items[0].SourceText, items[4].SourceText)
	}
}

func TestLog_PersistsAcrossInstances(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := store.NewMemoryStore()

	first, err := NewLog(ctx, st, 50)
	if err != nil {
		t.Fatalf("NewLog: %v", err)
	}
	first.Add(ctx, Item{SourceText: "こんにちは", TargetText: "Hello", Origin: OriginVoice})

	second, err := NewLog(ctx, st, 50)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	items := second.Items()
	if len(items) != 1 || items[0].Origin != OriginVoice {
		t.Errorf("reloaded items = %+v", items)
	}
}

func TestLog_ClearRemovesPersistedCopy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := store.NewMemoryStore()

	l, err := NewLog(ctx, st, 50)
	if err != nil {
		t.Fatalf("NewLog: %v", err)
	}
	l.Add(ctx, Item{SourceText: "駅", TargetText: "Station"})
	if err := l.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	if l.Len() != 0 {
		t.Errorf("len = %d after clear", l.Len())
	}
	var persisted []Item
	found, _ := st.Get(ctx, store.KeyHistory, &persisted)
	if found {
		t.Error("persisted history should be deleted")
	}
}
