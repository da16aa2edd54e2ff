package cache

import (
	"testing"
	"time"
)

func TestLRUEvictsOldest(t *testing.T) {
	c := NewLRUCache[string](2, 0)
	c.Set("a", "1")
	c.Set("b", "2")
	if _, ok := c.Get("a"); !ok { // a becomes most recent
		t.Fatal("expected a")
	}
	c.Set("c", "3")
	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	if c.Size() != 2 {
		t.Fatalf("size = %d", c.Size())
	}
}

func TestLRUNoTTLNeverExpires(t *testing.T) {
	c := NewLRUCache[int](4, 0)
	now := time.Now()
	c.now = func() time.Time { return now }
	c.Set("k", 7)
	c.now = func() time.Time { return now.Add(1000 * time.Hour) }
	if v, ok := c.Get("k"); !ok || v != 7 {
		t.Fatalf("entry without ttl expired: %v %v", v, ok)
	}
	if n := c.CleanExpired(); n != 0 {
		t.Fatalf("cleaned %d entries", n)
	}
}

func TestLRUTTLExpiry(t *testing.T) {
	c := NewLRUCache[int](4, time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }
	c.Set("a", 1)
	c.Set("b", 2)
	c.now = func() time.Time { return now.Add(2 * time.Minute) }
	if _, ok := c.Get("a"); ok {
		t.Fatal("a should be expired")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("expected 1 cleaned (b), got %d", n)
	}
	if c.Size() != 0 {
		t.Fatalf("size = %d", c.Size())
	}
}

func TestManagerSweepAndStop(t *testing.T) {
	c := NewLRUCache[int](4, time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }
	c.Set("a", 1)
	c.now = func() time.Time { return now.Add(time.Hour) }

	m := NewManager(nil)
	m.Register(c)
	if n := m.Sweep(); n != 1 {
		t.Fatalf("sweep removed %d", n)
	}
	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop() // idempotent
}
