package cache

import (
	"testing"
	"time"
)

func TestGetSet(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	c.Set("k", []byte("payload"), 200, "application/json", time.Minute)

	payload, status, contentType, ok := c.Get("k")
	if !ok {
		t.Fatal("expected hit")
	}
	if string(payload) != "payload" || status != 200 || contentType != "application/json" {
		t.Errorf("got (%q, %d, %q)", payload, status, contentType)
	}

	if _, _, _, ok := c.Get("missing"); ok {
		t.Error("expected miss for unknown key")
	}
}

func TestExpiry(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	c.Set("k", []byte("v"), 200, "text/plain", 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	if _, _, _, ok := c.Get("k"); ok {
		t.Error("expired entry should miss")
	}
}

func TestSweepRemovesExpired(t *testing.T) {
	c := New(time.Hour) // sweep loop never fires during the test
	defer c.Close()

	c.Set("stale", []byte("v"), 200, "", -time.Second)
	c.Set("fresh", []byte("v"), 200, "", time.Hour)

	removed := c.sweep(time.Now())
	if removed != 1 {
		t.Errorf("sweep removed %d, want 1", removed)
	}

	stats := c.Stats()
	if stats.Entries != 1 {
		t.Errorf("Entries = %d, want 1", stats.Entries)
	}
	if stats.Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", stats.Evictions)
	}
}

func TestStatsAccounting(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	c.Set("a", []byte("12345"), 200, "", time.Minute)
	c.Get("a")
	c.Get("a")
	c.Get("missing")

	stats := c.Stats()
	if stats.Hits != 2 {
		t.Errorf("Hits = %d, want 2", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("Misses = %d, want 1", stats.Misses)
	}
	if stats.Sets != 1 {
		t.Errorf("Sets = %d, want 1", stats.Sets)
	}
	if stats.Bytes != 5 {
		t.Errorf("Bytes = %d, want 5", stats.Bytes)
	}
}

func TestSetReplacesBytes(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	c.Set("k", []byte("12345678"), 200, "", time.Minute)
	c.Set("k", []byte("12"), 200, "", time.Minute)

	stats := c.Stats()
	if stats.Bytes != 2 {
		t.Errorf("Bytes = %d, want 2 after replacement", stats.Bytes)
	}
	if stats.Entries != 1 {
		t.Errorf("Entries = %d, want 1", stats.Entries)
	}
}

func TestClearPattern(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	c.Set("GET /v1/feedback/schema", []byte("a"), 200, "", time.Minute)
	c.Set("GET /v1/config/models", []byte("b"), 200, "", time.Minute)

	removed := c.Clear("schema")
	if removed != 1 {
		t.Errorf("Clear removed %d, want 1", removed)
	}
	if _, _, _, ok := c.Get("GET /v1/config/models"); !ok {
		t.Error("unmatched entry should survive")
	}
}

func TestClearAllResetsCounters(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	c.Set("a", []byte("x"), 200, "", time.Minute)
	c.Get("a")
	c.Clear("")

	stats := c.Stats()
	if stats.Entries != 0 || stats.Bytes != 0 || stats.Hits != 0 || stats.Sets != 0 {
		t.Errorf("stats not reset: %+v", stats)
	}
}

func TestStoredPayloadIsCopied(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	payload := []byte("original")
	c.Set("k", payload, 200, "", time.Minute)
	payload[0] = 'X'

	got, _, _, _ := c.Get("k")
	if string(got) != "original" {
		t.Errorf("stored payload mutated: %q", got)
	}
}
