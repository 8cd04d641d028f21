package tlscore

import (
	"crypto"
	"io"

	"github.com/go-tlscore/tlscore/tlslog"
)

// Conn is the public façade: it wraps a CommonState and one
// role-specific handshake driver, and exposes the sans-I/O surface --
// ReadTLS/WriteTLS move bytes between the caller's transport and the
// internal queues; ProcessNewPackets turns newly deframed records
// into plaintext and handshake progress; Read/Write move application
// bytes in and out. The library itself never touches a socket and
// never blocks.
type Conn struct {
	cs     *CommonState
	role   handshakeRole
	client *clientHandshake
	server *serverHandshake
}

// NewClientConn starts a client-side connection and queues its
// ClientHello for the caller to drain via WriteTLS.
func NewClientConn(config *Config, serverName string) (*Conn, *Error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	cs := newCommonState(Client, config)
	ch, err := newClientHandshake(cs, serverName)
	if err != nil {
		return nil, err
	}
	return &Conn{cs: cs, role: roleClient, client: ch}, nil
}

// NewServerConn starts a server-side connection, which does nothing
// until the first ClientHello arrives via ReadTLS/ProcessNewPackets.
func NewServerConn(config *Config) (*Conn, *Error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	cs := newCommonState(Server, config)
	return &Conn{cs: cs, role: roleServer, server: newServerHandshake(cs)}, nil
}

// IoState summarizes what a caller should do next: whether more
// transport reads/writes would make progress, and how many bytes of
// plaintext are already buffered for Read to hand back.
type IoState struct {
	WantsRead            bool
	WantsWrite           bool
	PeerHasClosed        bool
	PlaintextBytesToRead int
	TLSBytesToWrite      int
}

// ReadTLS pulls ciphertext bytes from r into the deframer. It never
// parses and never returns a TLS-level error -- only the transport's
// own I/O error, if any; parsing and protocol failures surface from
// the separate ProcessNewPackets call. 0 with a nil error means the
// transport reached EOF.
func (c *Conn) ReadTLS(r io.Reader) (int, error) {
	n, ioErr := c.cs.deframer.ReadFrom(r)
	if ioErr != nil && ioErr != io.EOF {
		return n, ioErr
	}
	return n, nil
}

// ProcessNewPackets decrypts and dispatches every opaque record the
// deframer has fully parsed since the last call, returning the
// resulting IoState. It caches and replays the first error across
// calls; a deframer desync discovered here (rather than during
// ReadTLS) is reported as CorruptMessage.
func (c *Conn) ProcessNewPackets() (IoState, *Error) {
	if c.cs.firstError != nil {
		return c.State(), c.cs.firstError
	}
	if err := c.processNewPackets(); err != nil {
		c.cs.firstError = err
		return c.State(), err
	}
	if c.cs.deframer.Desynced() {
		err := errCorruptMessage("deframer desynchronized")
		c.cs.firstError = err
		return c.State(), err
	}
	return c.State(), nil
}

// processNewPackets drains every fully-parsed opaque record and
// dispatches it, sending the alerts the driver owns centrally:
// record_overflow on an oversized record, bad_record_mac on an AEAD
// failure, and unexpected_message on an off-path message.
func (c *Conn) processNewPackets() *Error {
	for {
		rec, ok := c.cs.deframer.PopFront()
		if !ok {
			break
		}
		// TLS 1.3's middlebox-compatibility change_cipher_spec (RFC 8446
		// §5) is always sent and received as plaintext content-type 20,
		// even once record-layer keys are installed, so it must be
		// recognized before any attempt to decrypt it.
		if rec.ContentType == ContentTypeChangeCipherSpec && c.cs.negotiatedVersion == VersionTLS13 && !c.cs.handshakeComplete {
			if len(rec.Payload) != 1 || rec.Payload[0] != 1 {
				return errCorruptMessage("malformed change_cipher_spec")
			}
			if err := c.cs.middleboxCCS(); err != nil {
				return err
			}
			continue
		}

		if c.cs.record.WantsCloseBeforeDecrypt() {
			tlslog.Logf(tlslog.Record, "decrypt sequence number nearing exhaustion")
		}
		plain, err := c.cs.record.DecryptIncoming(rec)
		if err != nil {
			switch err.Kind {
			case PeerSentOversizedRecord:
				c.cs.sendAlert(AlertLevelFatal, AlertRecordOverflow)
			case Decrypt:
				c.cs.sendAlert(AlertLevelFatal, AlertBadRecordMac)
			}
			return err
		}
		if err := c.cs.processPlaintext(plain, c.handleHandshakeMsg, c.handleCCS); err != nil {
			if err.Kind == InappropriateMessage || err.Kind == InappropriateHandshakeMessage {
				c.cs.sendAlert(AlertLevelFatal, AlertUnexpectedMessage)
			}
			return err
		}
	}
	return nil
}

// isRenegotiationAttempt reports whether msg is a TLS 1.2 peer trying
// to start a fresh handshake after this connection already reached
// traffic state: a ClientHello received by the server, or a
// HelloRequest received by the client.
func (c *Conn) isRenegotiationAttempt(msg HandshakeMessage) bool {
	if !c.cs.handshakeComplete || c.cs.negotiatedVersion != VersionTLS12 {
		return false
	}
	if c.role == roleServer {
		return msg.Type == HandshakeTypeClientHello
	}
	return msg.Type == HandshakeTypeHelloRequest
}

func (c *Conn) handleHandshakeMsg(msg HandshakeMessage) *Error {
	if c.isRenegotiationAttempt(msg) {
		c.cs.sendAlert(AlertLevelWarning, AlertNoRenegotiation)
		tlslog.Logf(tlslog.Handshake, "refusing renegotiation attempt (%s)", msg.Type)
		return nil
	}
	if c.role == roleClient {
		return c.client.handle(msg)
	}
	return c.server.handle(msg)
}

func (c *Conn) handleCCS() *Error {
	if c.role == roleClient {
		return c.client.handleCCS()
	}
	return c.server.handleCCS()
}

// WriteTLS drains queued outgoing TLS records to w.
func (c *Conn) WriteTLS(w io.Writer) (int64, *Error) {
	n, err := c.cs.sendableTLS.WriteTo(w)
	if err != nil {
		return n, errGeneral("transport write failed: " + err.Error())
	}
	return n, nil
}

// Write queues application data. In traffic state it encrypts and
// enqueues directly to sendableTLS as much of p as that queue's limit
// admits, returning the short count (records already admitted are
// queued whole even if they overshoot); before the handshake completes it
// instead appends as much as fits into sendablePlaintext, honoring
// that queue's limit, and returns the short count -- the buffered
// bytes are flushed and encrypted the moment the handshake reaches
// traffic state (see CommonState.flushSendablePlaintext).
func (c *Conn) Write(p []byte) (int, error) {
	if c.cs.firstError != nil {
		return 0, c.cs.firstError
	}
	if !c.cs.handshakeComplete {
		return c.cs.sendablePlaintext.AppendLimitedCopy(p), nil
	}
	if c.cs.record.EncryptExhausted() {
		return 0, errGeneral("outgoing sequence number exhausted; send_close_notify and reconnect")
	}
	n := c.cs.sendableTLS.ApplyLimit(len(p))
	c.cs.sendMsgEncrypt(ContentTypeApplicationData, p[:n])
	return n, nil
}

// CompleteIO is a caller convenience: it reads transport bytes,
// processes whatever new packets arrive, and -- if that fails --
// makes one last-gasp attempt to flush any outgoing alert before
// returning the failure wrapped as a General error. The original TLS
// error is cached and keeps coming back from ProcessNewPackets.
func (c *Conn) CompleteIO(r io.Reader, w io.Writer) (IoState, error) {
	if _, err := c.ReadTLS(r); err != nil {
		return c.State(), err
	}
	state, perr := c.ProcessNewPackets()
	if perr != nil {
		c.WriteTLS(w)
		return state, errGeneral("process_new_packets failed: " + perr.Error())
	}
	if _, err := c.WriteTLS(w); err != nil {
		return c.State(), err
	}
	return c.State(), nil
}

// Read drains already-decrypted application plaintext. It returns
// io.EOF once the peer's close_notify has been seen and no buffered
// plaintext remains; (0, nil) means nothing is available yet.
func (c *Conn) Read(p []byte) (int, error) {
	n, _ := c.cs.receivedPlaintext.Read(p)
	if n > 0 {
		return n, nil
	}
	if c.cs.sawCloseNotify {
		return 0, io.EOF
	}
	return 0, nil
}

// WantsRead reports whether the caller should feed more transport
// bytes into ReadTLS.
func (c *Conn) WantsRead() bool { return c.cs.wantsRead() }

// WantsWrite reports whether the caller should drain WriteTLS.
func (c *Conn) WantsWrite() bool { return c.cs.wantsWrite() }

// IsHandshaking reports whether the handshake has not yet completed.
func (c *Conn) IsHandshaking() bool { return c.cs.isHandshaking() }

// State snapshots the IoState a caller should act on next.
func (c *Conn) State() IoState {
	return IoState{
		WantsRead:            c.WantsRead(),
		WantsWrite:           c.WantsWrite(),
		PeerHasClosed:        c.cs.sawCloseNotify,
		PlaintextBytesToRead: c.cs.receivedPlaintext.Len(),
		TLSBytesToWrite:      c.cs.sendableTLS.Len(),
	}
}

// SendCloseNotify queues a close_notify alert: a warning per RFC
// 5246/8446, but callers are expected to stop writing application
// data afterward since the peer may do the same at any time.
func (c *Conn) SendCloseNotify() {
	c.cs.sendAlert(AlertLevelWarning, AlertCloseNotify)
}

// RefreshTrafficKeys sends a TLS 1.3 key_update requesting the peer
// ratchet too, and advances this side's outgoing traffic keys (RFC
// 8446 §4.6.3). It fails outside an established TLS 1.3 session.
func (c *Conn) RefreshTrafficKeys() *Error {
	if c.cs.firstError != nil {
		return c.cs.firstError
	}
	if c.role == roleClient {
		return c.client.refreshTrafficKeys()
	}
	return c.server.refreshTrafficKeys()
}

// SetBufferLimit bounds both outgoing queues -- buffered plaintext
// awaiting the handshake, and encoded records awaiting the transport.
// A limit of -1 removes the bound.
func (c *Conn) SetBufferLimit(n int) {
	c.cs.setBufferLimit(n)
}

// NegotiatedCipherSuite returns the negotiated suite and true once
// available (from ServerHello onward on both roles).
func (c *Conn) NegotiatedCipherSuite() (SupportedCipherSuite, bool) {
	return c.cs.negotiatedSuite, c.cs.haveSuite
}

// NegotiatedVersion returns the negotiated protocol version and true
// once available.
func (c *Conn) NegotiatedVersion() (ProtocolVersion, bool) {
	return c.cs.negotiatedVersion, c.cs.negotiatedVersion != 0
}

// NegotiatedALPN returns the negotiated application protocol, if any.
func (c *Conn) NegotiatedALPN() (string, bool) {
	return c.cs.negotiatedALPN, c.cs.negotiatedALPN != ""
}

// ExportKeyingMaterial derives out-of-band keying material (RFC 5705
// / RFC 8446 §7.5). It fails before the handshake completes.
func (c *Conn) ExportKeyingMaterial(label string, context []byte, length int) ([]byte, *Error) {
	if !c.cs.handshakeComplete {
		return nil, errGeneral("cannot export keying material before the handshake completes")
	}
	if c.cs.negotiatedVersion == VersionTLS13 {
		return hkdfExpandLabel(c.cs.negotiatedSuite.Hash(), deriveSecret(c.cs.negotiatedSuite.Hash(), c.cs.exporterSecret13, label, emptyHash(c.cs.negotiatedSuite.Hash())), "exporter", hashBytes(c.cs.negotiatedSuite.Hash(), context), length), nil
	}
	suite, _ := c.cs.negotiatedSuite.Tls12()
	seed := make([]byte, 0, 64+len(context))
	seed = append(seed, c.cs.randoms.Client[:]...)
	seed = append(seed, c.cs.randoms.Server[:]...)
	seed = append(seed, context...)
	out := make([]byte, length)
	prf12(suite.Common.Hash, out, c.cs.masterSecret12, label, seed)
	return out, nil
}

func hashBytes(h crypto.Hash, b []byte) []byte {
	hh := h.New()
	hh.Write(b)
	return hh.Sum(nil)
}
