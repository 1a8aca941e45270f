package session

import (
	"testing"
	"time"
)

func TestBoltStoreSetsAndExpiresTokens(t *testing.T) {
	dir := t.TempDir()
	opts := normalizeOptions(Options{
		TokenTTL:        1 * time.Second,
		CleanupInterval: 1 * time.Second,
	})

	storeRaw, err := openBolt(dir+"/tokens.db", opts)
	if err != nil {
		t.Fatalf("openBolt: %v", err)
	}
	store := storeRaw.(*boltStore)
	defer store.Close()

	if _, found, err := store.Token("fireeye"); err != nil || found {
		t.Fatalf("expected no token, found=%v err=%v", found, err)
	}

	if err := store.SetToken("fireeye", "tok-1"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}

	tok, found, err := store.Token("fireeye")
	if err != nil || !found || tok != "tok-1" {
		t.Fatalf("expected cached token, got %q found=%v err=%v", tok, found, err)
	}

	// Fast-forward cleanup cadence and trigger expiry.
	store.lastCleanup.Store(time.Now().Add(-2 * time.Second).Unix())
	time.Sleep(1100 * time.Millisecond)

	if _, found, err = store.Token("fireeye"); err != nil {
		t.Fatalf("Token after expiry: %v", err)
	}
	if found {
		t.Fatalf("expected token to expire and be removed")
	}
}

func TestBoltStoreReplacesAndClears(t *testing.T) {
	store, err := NewStore("bbolt", t.TempDir()+"/tokens.db", Options{})
	if err != nil {
		t.Fatalf("NewStore bbolt: %v", err)
	}
	defer store.Close()

	_ = store.SetToken("fireeye", "old")
	_ = store.SetToken("fireeye", "new")
	if tok, _, _ := store.Token("fireeye"); tok != "new" {
		t.Fatalf("expected replaced token, got %q", tok)
	}

	if err := store.ClearToken("fireeye"); err != nil {
		t.Fatalf("ClearToken: %v", err)
	}
	if _, found, _ := store.Token("fireeye"); found {
		t.Fatalf("expected token cleared")
	}
}

func TestBoltStoreScopesBySession(t *testing.T) {
	path := t.TempDir() + "/tokens.db"
	a, err := openBolt(path, normalizeOptions(Options{Session: "alice"}))
	if err != nil {
		t.Fatalf("openBolt: %v", err)
	}
	if err := a.SetToken("fireeye", "alice-token"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	a.Close()

	b, err := openBolt(path, normalizeOptions(Options{Session: "bob"}))
	if err != nil {
		t.Fatalf("openBolt: %v", err)
	}
	defer b.Close()
	if _, found, _ := b.Token("fireeye"); found {
		t.Fatalf("session bob must not see alice's token")
	}
}

func TestNewStoreDefaultsToMemory(t *testing.T) {
	store, err := NewStore("", "", Options{})
	if err != nil {
		t.Fatalf("NewStore memory: %v", err)
	}
	if err := store.SetToken("fireeye", "x"); err != nil {
		t.Fatalf("memory store SetToken: %v", err)
	}
	if tok, found, _ := store.Token("fireeye"); !found || tok != "x" {
		t.Fatalf("memory store lost token")
	}

	if _, err := NewStore("redis", "", Options{}); err == nil {
		t.Fatalf("expected unsupported store type error")
	}
}
