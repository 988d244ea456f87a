package store

import (
	"context"
	"testing"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := NewMemoryStore()

	type prefs struct {
		DarkMode bool   `json:"darkMode"`
		Theme    string `json:"theme"`
	}

	if err := st.Set(ctx, KeyDarkMode, prefs{DarkMode: true, Theme: "night"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var got prefs
	found, err := st.Get(ctx, KeyDarkMode, &got)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found {
		t.Fatal("key should exist")
	}
	if !got.DarkMode || got.Theme != "night" {
		t.Errorf("got %+v", got)
	}
}

func TestMemoryStore_MissingKey(t *testing.T) {
	t.Parallel()

	var into string
	found, err := NewMemoryStore().Get(context.Background(), "absent", &into)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found {
		t.Error("missing key reported as found")
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := NewMemoryStore()

	st.Set(ctx, "k", "v")
	if st.Len() != 1 {
		t.Fatalf("Len = %d", st.Len())
	}
	if err := st.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if st.Len() != 0 {
		t.Errorf("Len = %d after delete", st.Len())
	}

	// Deleting an absent key is a no-op.
	if err := st.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete absent: %v", err)
	}
}

func TestMemoryStore_TypeMismatchReportsFound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := NewMemoryStore()
	st.Set(ctx, "k", "a string")

	var into int
	found, err := st.Get(ctx, "k", &into)
	if !found {
		t.Error("key exists, found should be true")
	}
	if err == nil {
		t.Error("expected decode error")
	}
}
