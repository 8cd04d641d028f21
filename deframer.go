package tlscore

import "io"

// The deframer owns a bounded read buffer, turns arbitrary-sized
// reads from the transport into a FIFO of well-formed OpaqueRecords,
// and tracks desync so a single structural violation permanently
// fails the connection. It is only ever driven by bytes the caller
// explicitly handed it via ReadFrom, and hands back fully-opaque
// (still possibly encrypted) records rather than decrypting inline.

const maxDeframerRecordLen = (1 << 14) + 2048

const recordHeaderLen = 5

// Deframer turns a byte stream into a FIFO of opaque TLS records.
type Deframer struct {
	buf      []byte
	frames   []OpaqueRecord
	desynced bool
}

// NewDeframer returns an empty Deframer.
func NewDeframer() *Deframer {
	return &Deframer{}
}

// Desynced reports whether a structural violation has permanently
// broken this deframer; once set, every subsequent processing call
// fails with CorruptMessage.
func (d *Deframer) Desynced() bool { return d.desynced }

// HasPending reports whether there is buffered data that hasn't yet
// become a complete record, or complete records not yet popped. Used
// to disambiguate transport EOF with a drained stream from EOF with
// records still owed to the caller.
func (d *Deframer) HasPending() bool {
	return len(d.buf) > 0 || len(d.frames) > 0
}

// ReadFrom pulls bytes from r into the internal buffer and parses as
// many complete records out of it as it can. It returns the number of
// bytes read from r together with r's own error, unchanged (io.EOF
// included; Conn.ReadTLS maps io.EOF to a nil error). It never
// returns a TLS-level error: a structural violation instead sets
// Desynced, picked up by the next processing pass.
func (d *Deframer) ReadFrom(r io.Reader) (int, error) {
	tmp := make([]byte, 16*1024)
	n, err := r.Read(tmp)
	if n > 0 {
		d.buf = append(d.buf, tmp[:n]...)
		d.parse()
	}
	return n, err
}

// parse consumes as many complete records as are currently buffered.
// Arbitrary re-chunking of the same underlying byte stream yields the
// same records regardless of how ReadFrom was called: this only
// depends on the accumulated buffer contents, never on how many
// ReadFrom calls contributed to it.
func (d *Deframer) parse() {
	for {
		if d.desynced {
			return
		}
		if len(d.buf) < recordHeaderLen {
			return
		}
		ct := ContentType(d.buf[0])
		if !ct.known() {
			d.desynced = true
			return
		}
		version := ProtocolVersion(uint16(d.buf[1])<<8 | uint16(d.buf[2]))
		length := int(d.buf[3])<<8 | int(d.buf[4])
		if length > maxDeframerRecordLen {
			d.desynced = true
			return
		}
		if len(d.buf) < recordHeaderLen+length {
			return
		}
		payload := make([]byte, length)
		copy(payload, d.buf[recordHeaderLen:recordHeaderLen+length])
		d.frames = append(d.frames, OpaqueRecord{ContentType: ct, Version: version, Payload: payload})
		d.buf = d.buf[recordHeaderLen+length:]
	}
}

// PopFront removes and returns the oldest fully-parsed record.
func (d *Deframer) PopFront() (OpaqueRecord, bool) {
	if len(d.frames) == 0 {
		return OpaqueRecord{}, false
	}
	rec := d.frames[0]
	d.frames = d.frames[1:]
	return rec, true
}
