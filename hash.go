package tlscore

import "crypto"

// TranscriptHash accumulates every handshake message's wire bytes
// into a running hash, used for Finished verify_data and the TLS 1.3
// key schedule's Derive-Secret calls. The negotiated hash algorithm
// isn't known until the suite is chosen (partway through processing
// ClientHello on the server, or ServerHello on the client), so bytes
// fed in before SetAlgorithm are buffered and replayed once it's
// known.
type TranscriptHash struct {
	algo crypto.Hash
	h    interface {
		Write([]byte) (int, error)
		Sum([]byte) []byte
	}
	buffered []byte
}

// NewTranscriptHash returns a transcript hash with no algorithm yet
// selected; every Update call buffers until SetAlgorithm is called.
func NewTranscriptHash() *TranscriptHash {
	return &TranscriptHash{}
}

// SetAlgorithm fixes the hash algorithm and replays any buffered
// bytes through it. A cipher suite's hash cannot change mid
// handshake, so the second call is a no-op when algo already matches
// and otherwise panics.
func (t *TranscriptHash) SetAlgorithm(algo crypto.Hash) {
	if t.h != nil {
		if t.algo != algo {
			panic("tlscore: TranscriptHash algorithm changed mid-handshake")
		}
		return
	}
	t.algo = algo
	t.h = algo.New()
	if len(t.buffered) > 0 {
		t.h.Write(t.buffered)
		t.buffered = nil
	}
}

// Update feeds a handshake message's encoded wire bytes (type + 3-byte
// length + body) into the transcript.
func (t *TranscriptHash) Update(wire []byte) {
	if t.h == nil {
		t.buffered = append(t.buffered, wire...)
		return
	}
	t.h.Write(wire)
}

// SumIfReady returns Sum(), or nil if SetAlgorithm hasn't been called
// yet (the hash algorithm is only known once a suite is negotiated,
// i.e. from ServerHello onward, so this is only ever nil while
// ClientHello is the most recent message).
func (t *TranscriptHash) SumIfReady() []byte {
	if t.h == nil {
		return nil
	}
	return t.Sum()
}

// Sum returns Hash(transcript-so-far) without perturbing the running
// state, so it may be called repeatedly as the transcript grows (once
// for ServerHello's traffic-secret derivation, again for the
// Certificate message's, and so on).
func (t *TranscriptHash) Sum() []byte {
	if t.h == nil {
		panic("tlscore: TranscriptHash.Sum called before SetAlgorithm")
	}
	return t.h.Sum(nil)
}
