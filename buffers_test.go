package tlscore

import (
	"bytes"
	"testing"
)

func TestChunkQueueAppendLimitedCopyShortCount(t *testing.T) {
	q := NewLimitedChunkQueue(65536)
	first := bytes.Repeat([]byte{0xaa}, 65536)
	if n := q.AppendLimitedCopy(first); n != len(first) {
		t.Fatalf("first write: got %d, want %d", n, len(first))
	}
	second := bytes.Repeat([]byte{0xbb}, 16384)
	if n := q.AppendLimitedCopy(second); n != 0 {
		t.Fatalf("second write over the limit: got %d, want 0", n)
	}
	if q.Len() != 65536 {
		t.Fatalf("queue length: got %d, want 65536", q.Len())
	}
}

func TestChunkQueueSetLimitDoesNotDropExisting(t *testing.T) {
	q := NewLimitedChunkQueue(-1)
	q.Append(bytes.Repeat([]byte{1}, 100))
	q.SetLimit(10)
	if q.Len() != 100 {
		t.Fatalf("shrinking the limit dropped buffered bytes: len=%d", q.Len())
	}
	if n := q.AppendLimitedCopy([]byte{2, 3, 4}); n != 0 {
		t.Fatalf("admission under a now-exceeded limit: got %d, want 0", n)
	}
}

func TestChunkQueueReadDrainsInOrder(t *testing.T) {
	q := NewChunkQueue()
	q.Append([]byte("hello "))
	q.Append([]byte("world"))
	buf := make([]byte, 8)
	n, _ := q.Read(buf)
	if got := string(buf[:n]); got != "hello wo" {
		t.Fatalf("first read: got %q", got)
	}
	n, _ = q.Read(buf)
	if got := string(buf[:n]); got != "rld" {
		t.Fatalf("second read: got %q", got)
	}
	if !q.IsEmpty() {
		t.Fatalf("queue should be empty after draining everything")
	}
}

func TestChunkQueueWriteTo(t *testing.T) {
	q := NewChunkQueue()
	q.Append([]byte("abc"))
	q.Append([]byte("def"))
	var out bytes.Buffer
	n, err := q.WriteTo(&out)
	if err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if n != 6 || out.String() != "abcdef" {
		t.Fatalf("WriteTo: got n=%d out=%q", n, out.String())
	}
	if !q.IsEmpty() {
		t.Fatalf("queue should be drained after WriteTo")
	}
}
