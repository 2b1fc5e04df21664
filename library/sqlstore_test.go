package library

import (
	"path/filepath"
	"reflect"
	"testing"
)

func tempSQLStore(t *testing.T) *SQLStore {
	t.Helper()
	store, err := NewSQLStore(filepath.Join(t.TempDir(), "library.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLStoreRoundTrip(t *testing.T) {
	store := tempSQLStore(t)
	want := fixtureState()
	saveAll(t, store, want)

	got, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("loaded state differs:\ngot  %+v\nwant %+v", got, want)
	}
}

func TestSQLStoreFreshIsEmpty(t *testing.T) {
	state, err := tempSQLStore(t).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(state.Books) != 0 || len(state.Accounts) != 0 || len(state.Users) != 0 {
		t.Fatalf("fresh store must be empty, got %d/%d/%d", len(state.Books), len(state.Accounts), len(state.Users))
	}
}

// Each save is a snapshot rewrite: rows removed from the in-memory
// state must not survive in the database.
func TestSQLStoreSaveReplacesSnapshot(t *testing.T) {
	store := tempSQLStore(t)
	state := fixtureState()
	saveAll(t, store, state)

	delete(state.Books, "b2")
	delete(state.Accounts, "201")
	delete(state.Users, "201")
	saveAll(t, store, state)

	got, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(got, state) {
		t.Errorf("snapshot not replaced:\ngot  %+v\nwant %+v", got, state)
	}
}

func TestSQLStoreReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.db")
	store, err := NewSQLStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	want := fixtureState()
	saveAll(t, store, want)
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Reopening runs migrations again; they must be idempotent.
	store2, err := NewSQLStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store2.Close()
	got, err := store2.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("data lost across reopen:\ngot  %+v\nwant %+v", got, want)
	}
}
