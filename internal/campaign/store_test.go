package campaign

import (
	"testing"
	"time"
)

func TestStoreCreateAndGet(t *testing.T) {
	store := NewStore(testDeps(&fakeGenerator{}, &fakeClassifier{}, &fakeSender{}), time.Minute)
	defer store.Stop()

	p := store.Create()
	if p.ID() == "" {
		t.Fatal("expected a session ID")
	}

	got, ok := store.Get(p.ID())
	if !ok || got != p {
		t.Fatal("created session not retrievable")
	}
	if _, ok := store.Get("missing"); ok {
		t.Error("unexpected hit for unknown ID")
	}
	if store.Len() != 1 {
		t.Errorf("Len = %d", store.Len())
	}
}

func TestStoreSweepEvictsIdleSessions(t *testing.T) {
	store := NewStore(testDeps(&fakeGenerator{}, &fakeClassifier{}, &fakeSender{}), 20*time.Millisecond)
	defer store.Stop()

	stale := store.Create()
	fresh := store.Create()

	time.Sleep(40 * time.Millisecond)
	// Activity on a session refreshes its TTL.
	if err := fresh.SelectPersona("students"); err != nil {
		t.Fatal(err)
	}

	if n := store.Sweep(); n != 1 {
		t.Fatalf("Sweep evicted %d sessions, want 1", n)
	}
	if _, ok := store.Get(stale.ID()); ok {
		t.Error("stale session survived the sweep")
	}
	if _, ok := store.Get(fresh.ID()); !ok {
		t.Error("active session was evicted")
	}
}
