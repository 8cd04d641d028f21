package tlscore

// The fragmenter splits one logical plaintext message into a
// sequence of records no longer than the configured maximum fragment
// size.

// Fragmenter splits plaintext messages into records no larger than a
// configured maximum.
type Fragmenter struct {
	maxFragmentSize int
}

// NewFragmenter validates and returns a Fragmenter. A nil
// maxFragmentSize means the protocol default (2^14); otherwise it
// must fall in [32, 2^14] or BadMaxFragmentSize is returned.
func NewFragmenter(maxFragmentSize *int) (*Fragmenter, *Error) {
	size := maxPlaintextLen
	if maxFragmentSize != nil {
		if *maxFragmentSize < 32 || *maxFragmentSize > maxPlaintextLen {
			return nil, errBadMaxFragmentSize()
		}
		size = *maxFragmentSize
	}
	return &Fragmenter{maxFragmentSize: size}, nil
}

// MaxFragmentSize returns the configured maximum fragment size.
func (f *Fragmenter) MaxFragmentSize() int { return f.maxFragmentSize }

// Fragment splits payload (of the given content type and record
// version) into an ordered sequence of records, each preserving
// contentType and version and none longer than MaxFragmentSize. It
// never emits a zero-length ApplicationData fragment; an empty
// non-ApplicationData payload (e.g. a zero-length handshake body such
// as a TLS 1.3 EndOfEarlyData) still yields exactly one empty record,
// since callers rely on "one call in, at least one record out" for
// non-appdata content.
func (f *Fragmenter) Fragment(ct ContentType, version ProtocolVersion, payload []byte) []PlainRecord {
	if len(payload) == 0 {
		if ct == ContentTypeApplicationData {
			return nil
		}
		return []PlainRecord{{ContentType: ct, Version: version, Payload: nil}}
	}

	var out []PlainRecord
	for len(payload) > 0 {
		n := f.maxFragmentSize
		if n > len(payload) {
			n = len(payload)
		}
		chunk := make([]byte, n)
		copy(chunk, payload[:n])
		out = append(out, PlainRecord{ContentType: ct, Version: version, Payload: chunk})
		payload = payload[n:]
	}
	return out
}
