package sessioncache

import (
	"bytes"
	"testing"
)

func TestPutGetRoundTrip(t *testing.T) {
	c := New(4)
	c.Put([]byte("key"), []byte("value"))
	got, ok := c.Get([]byte("key"))
	if !ok || !bytes.Equal(got, []byte("value")) {
		t.Fatalf("Get: got %q ok=%v", got, ok)
	}
	if _, ok := c.Get([]byte("missing")); ok {
		t.Fatalf("a never-stored key must miss")
	}
}

func TestPutOverwritesExistingKey(t *testing.T) {
	c := New(4)
	c.Put([]byte("key"), []byte("old"))
	c.Put([]byte("key"), []byte("new"))
	if c.Len() != 1 {
		t.Fatalf("overwriting must not grow the cache: len=%d", c.Len())
	}
	got, ok := c.Get([]byte("key"))
	if !ok || !bytes.Equal(got, []byte("new")) {
		t.Fatalf("Get after overwrite: got %q ok=%v", got, ok)
	}
}

func TestEvictionAtCapacityDropsOldest(t *testing.T) {
	c := New(2)
	c.Put([]byte("a"), []byte("1"))
	c.Put([]byte("b"), []byte("2"))
	c.Put([]byte("c"), []byte("3"))
	if c.Len() != 2 {
		t.Fatalf("cache must hold at most its capacity: len=%d", c.Len())
	}
	if _, ok := c.Get([]byte("a")); ok {
		t.Fatalf("the least recently used entry must have been evicted")
	}
	if _, ok := c.Get([]byte("b")); !ok {
		t.Fatalf("entry b should have survived")
	}
	if _, ok := c.Get([]byte("c")); !ok {
		t.Fatalf("entry c should have survived")
	}
}

func TestGetRefreshesRecency(t *testing.T) {
	c := New(2)
	c.Put([]byte("a"), []byte("1"))
	c.Put([]byte("b"), []byte("2"))
	if _, ok := c.Get([]byte("a")); !ok {
		t.Fatalf("entry a should be present")
	}
	c.Put([]byte("c"), []byte("3"))
	if _, ok := c.Get([]byte("a")); !ok {
		t.Fatalf("a read must protect an entry from eviction")
	}
	if _, ok := c.Get([]byte("b")); ok {
		t.Fatalf("the unread entry must be the one evicted")
	}
}

func TestNonPositiveCapacityFallsBackToDefault(t *testing.T) {
	c := New(0)
	c.Put([]byte("key"), []byte("value"))
	if got, ok := c.Get([]byte("key")); !ok || !bytes.Equal(got, []byte("value")) {
		t.Fatalf("a default-capacity cache must still store entries: got %q ok=%v", got, ok)
	}
}

func TestMutatingStoredSliceDoesNotAffectCache(t *testing.T) {
	c := New(2)
	value := []byte("value")
	c.Put([]byte("key"), value)
	value[0] = 'X'
	got, _ := c.Get([]byte("key"))
	if !bytes.Equal(got, []byte("value")) {
		t.Fatalf("the cache must hold its own copy, got %q", got)
	}
	got[0] = 'Y'
	again, _ := c.Get([]byte("key"))
	if !bytes.Equal(again, []byte("value")) {
		t.Fatalf("a returned value must be a copy, got %q", again)
	}
}
