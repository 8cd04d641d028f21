package tlscore

import "io"

// ChunkQueue is the ordered byte-blob queue behind the three buffers
// CommonState needs (pre-handshake plaintext, encoded records pending
// write, decrypted plaintext pending read), each with its own limit
// policy.

// ChunkQueue is an ordered sequence of byte blobs with an optional
// soft total-byte limit.
type ChunkQueue struct {
	chunks [][]byte
	limit  int // -1 means unbounded
}

// NewChunkQueue returns an empty queue with no limit.
func NewChunkQueue() *ChunkQueue {
	return &ChunkQueue{limit: -1}
}

// NewLimitedChunkQueue returns an empty queue bounded to limit bytes.
func NewLimitedChunkQueue(limit int) *ChunkQueue {
	return &ChunkQueue{limit: limit}
}

// SetLimit changes the queue's limit. Shrinking the limit below the
// current fill does not drop any already-queued data; it only affects
// future admission via AppendLimitedCopy.
func (q *ChunkQueue) SetLimit(limit int) {
	q.limit = limit
}

// Limit returns the current limit, or -1 if unbounded.
func (q *ChunkQueue) Limit() int { return q.limit }

// Len returns the total number of buffered bytes across all chunks.
func (q *ChunkQueue) Len() int {
	total := 0
	for _, c := range q.chunks {
		total += len(c)
	}
	return total
}

// IsEmpty reports whether the queue holds no bytes.
func (q *ChunkQueue) IsEmpty() bool { return len(q.chunks) == 0 }

// Append adds buf as a new chunk unconditionally, ignoring the limit.
// Used where the limit is advisory — a single outgoing TLS record is
// never split merely because it would push the queue over its
// limit.
func (q *ChunkQueue) Append(buf []byte) {
	if len(buf) == 0 {
		return
	}
	cp := make([]byte, len(buf))
	copy(cp, buf)
	q.chunks = append(q.chunks, cp)
}

// ApplyLimit returns how many of n additional bytes would fit under
// the queue's current limit and fill, without consuming anything.
func (q *ChunkQueue) ApplyLimit(n int) int {
	if q.limit < 0 {
		return n
	}
	room := q.limit - q.Len()
	if room <= 0 {
		return 0
	}
	if n > room {
		return room
	}
	return n
}

// AppendLimitedCopy appends as much of data as fits under the limit
// and returns how many bytes were accepted.
func (q *ChunkQueue) AppendLimitedCopy(data []byte) int {
	n := q.ApplyLimit(len(data))
	if n == 0 {
		return 0
	}
	q.Append(data[:n])
	return n
}

// PopFront removes and returns the oldest chunk, or (nil, false) if
// empty.
func (q *ChunkQueue) PopFront() ([]byte, bool) {
	if len(q.chunks) == 0 {
		return nil, false
	}
	c := q.chunks[0]
	q.chunks = q.chunks[1:]
	return c, true
}

// Read drains up to len(p) bytes into p, consuming them from the
// front of the queue (partial chunks are retained for the next call).
// It satisfies the same contract as io.Reader.Read's n/err pair
// except that io.EOF is never returned here — callers translate
// "nothing available" against their own EOF state.
func (q *ChunkQueue) Read(p []byte) (n int, err error) {
	for len(p) > 0 && len(q.chunks) > 0 {
		c := q.chunks[0]
		copied := copy(p, c)
		n += copied
		p = p[copied:]
		if copied == len(c) {
			q.chunks = q.chunks[1:]
		} else {
			q.chunks[0] = c[copied:]
		}
	}
	return n, nil
}

// WriteTo drains the entire queue to w, in order, returning the
// total number of bytes written. It stops and returns the underlying
// error if w returns one, leaving any undrained chunks in place.
func (q *ChunkQueue) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for len(q.chunks) > 0 {
		c := q.chunks[0]
		n, err := w.Write(c)
		total += int64(n)
		if err != nil {
			if n > 0 && n < len(c) {
				q.chunks[0] = c[n:]
			}
			return total, err
		}
		q.chunks = q.chunks[1:]
	}
	return total, nil
}
