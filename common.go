package tlscore

import "github.com/go-tlscore/tlscore/tlslog"

// CommonState is the plumbing shared by both handshake roles: the
// record layer, the deframer/joiner/fragmenter pipeline, the three
// buffering queues, and the bookkeeping (handshake alignment, alert
// state, negotiated version/suite/ALPN) that the public Conn façade
// and the per-role state machines both read and mutate.
type CommonState struct {
	side Side

	config *Config

	record     *RecordLayer
	deframer   *Deframer
	joiner     *HandshakeJoiner
	fragmenter *Fragmenter

	sendablePlaintext *ChunkQueue
	sendableTLS       *ChunkQueue
	receivedPlaintext *ChunkQueue

	negotiatedVersion ProtocolVersion
	negotiatedSuite   SupportedCipherSuite
	haveSuite         bool
	negotiatedALPN    string
	serverName        string

	transcript *TranscriptHash
	// lastPreMessageHash is Sum() of the transcript as of immediately
	// before the most recently dispatched handshake message was fed
	// in, needed to verify a Finished message's verify_data (computed
	// over every message before it, never including itself).
	lastPreMessageHash []byte

	// alignedHandshake is true only when the joiner has no partial
	// message buffered, the one moment a key change may be installed.
	alignedHandshake bool

	sentFatalAlert     bool
	sawCloseNotify     bool
	handshakeComplete  bool
	seenMiddleboxCCS   bool
	earlyTrafficActive bool

	// firstError is cached and returned from every subsequent
	// ProcessNewPackets call once set.
	firstError *Error

	randoms *ConnectionRandoms

	// exporterSecret13/masterSecret12 back ExportKeyingMaterial once
	// the handshake has produced them; exactly one is set, selected by
	// negotiatedVersion.
	exporterSecret13 []byte
	masterSecret12   []byte
}

// defaultBufferLimit caps sendablePlaintext and sendableTLS at 64 KiB
// each unless SetBufferLimit overrides it.
const defaultBufferLimit = 65536

func newCommonState(side Side, config *Config) *CommonState {
	fragmenter, _ := NewFragmenter(config.MaxFragmentSize)
	return &CommonState{
		side:              side,
		config:            config,
		record:            NewRecordLayer(),
		deframer:          NewDeframer(),
		joiner:            NewHandshakeJoiner(),
		fragmenter:        fragmenter,
		sendablePlaintext: NewLimitedChunkQueue(defaultBufferLimit),
		sendableTLS:       NewLimitedChunkQueue(defaultBufferLimit),
		receivedPlaintext: NewChunkQueue(),
		transcript:        NewTranscriptHash(),
		alignedHandshake:  true,
	}
}

// setBufferLimit is a single limit knob adjusting both
// sendablePlaintext and sendableTLS, never dropping already-queued
// bytes on a shrink.
func (cs *CommonState) setBufferLimit(n int) {
	cs.sendablePlaintext.SetLimit(n)
	cs.sendableTLS.SetLimit(n)
}

// wantsRead reports whether the caller should feed more transport
// bytes in: receivedPlaintext is empty, the peer hasn't sent
// close_notify, and either the handshake is complete or there is
// nothing outgoing queued that should be flushed first.
func (cs *CommonState) wantsRead() bool {
	return cs.receivedPlaintext.IsEmpty() && !cs.sawCloseNotify &&
		(cs.handshakeComplete || cs.sendableTLS.IsEmpty())
}

// flushSendablePlaintext is called the moment the handshake completes:
// anything buffered pre-handshake by Conn.Write is now encrypted and
// moved to sendableTLS.
func (cs *CommonState) flushSendablePlaintext() {
	for {
		chunk, ok := cs.sendablePlaintext.PopFront()
		if !ok {
			break
		}
		cs.sendMsgEncrypt(ContentTypeApplicationData, chunk)
	}
}

// requireAligned is the key-installation gate: a state that installs
// new keys must first confirm the joiner has no partially-reassembled
// message buffered. A violation is a peer that interleaved a key
// change with a fragmented handshake message, which cannot happen
// from a conforming peer.
func (cs *CommonState) requireAligned() *Error {
	if cs.alignedHandshake {
		return nil
	}
	cs.sendAlert(AlertLevelFatal, AlertUnexpectedMessage)
	return errMisbehaved("key change while a handshake message was still being reassembled")
}

// wantsWrite reports whether there is outgoing TLS-layer data queued.
func (cs *CommonState) wantsWrite() bool {
	return !cs.sendableTLS.IsEmpty()
}

// isHandshaking reports whether the handshake has not yet completed
// (Traffic state not yet reached on both the read and write sides).
func (cs *CommonState) isHandshaking() bool {
	return !cs.handshakeComplete
}

// queueTLS encodes rec and appends it to sendableTLS.
func (cs *CommonState) queueTLS(rec OpaqueRecord) {
	wire := make([]byte, 0, 5+len(rec.Payload))
	wire = append(wire, byte(rec.ContentType), byte(rec.Version>>8), byte(rec.Version))
	wire = append(wire, byte(len(rec.Payload)>>8), byte(len(rec.Payload)))
	wire = append(wire, rec.Payload...)
	cs.sendableTLS.Append(wire)
}

// sendMsgEncrypt fragments payload, encrypts each fragment (or passes
// it through plaintext if no encrypter is installed yet), and queues
// the resulting records for the transport. close_notify pressure is
// the caller's responsibility to check first; EncryptOutgoing's own
// exhaustion check is honored here by dropping the record.
func (cs *CommonState) sendMsgEncrypt(ct ContentType, payload []byte) {
	version := cs.negotiatedVersion
	if version == 0 {
		version = VersionTLS12 // legacy_record_version before negotiation completes
	}
	for _, frag := range cs.fragmenter.Fragment(ct, version, payload) {
		opaque, ok := cs.record.EncryptOutgoing(frag)
		if !ok {
			continue
		}
		cs.queueTLS(opaque)
	}
}

// sendHandshakeMsg encodes a handshake message, feeds it into the
// transcript hash, and queues it for the transport.
func (cs *CommonState) sendHandshakeMsg(msg HandshakeMessage) {
	wire := msg.Encode()
	cs.transcript.Update(wire)
	cs.sendMsgEncrypt(ContentTypeHandshake, wire)
	tlslog.Logf(tlslog.Handshake, "sent %s (%d bytes)", msg.Type, len(msg.Body))
}

// sendChangeCipherSpec queues a bare CCS record (TLS 1.2, or TLS 1.3's
// middlebox-compatibility CCS), which is never fragmented or fed to
// the transcript (RFC 8446 §5's CCS is not a handshake message).
func (cs *CommonState) sendChangeCipherSpec() {
	cs.sendMsgEncrypt(ContentTypeChangeCipherSpec, []byte{1})
}

// sendAlert queues a fatal or warning alert. A fatal alert latches
// sentFatalAlert so the caller knows no further writes should
// follow.
func (cs *CommonState) sendAlert(level AlertLevel, desc AlertDescription) {
	cs.sendMsgEncrypt(ContentTypeAlert, EncodeAlert(AlertMessage{Level: level, Description: desc}))
	if level == AlertLevelFatal {
		cs.sentFatalAlert = true
	}
}

// logKeySecret writes one NSS-key-log-format line to the configured
// KeyLogWriter, if any. Write failures are ignored: key logging is a
// debugging aid, never load-bearing.
func (cs *CommonState) logKeySecret(label string, secret []byte) {
	if cs.config.KeyLog == nil || cs.randoms == nil {
		return
	}
	_ = cs.config.KeyLog.WriteKeyLog(label, cs.randoms.Client[:], secret)
}

// checkAlignedHandshake recomputes alignedHandshake from the joiner's
// current buffering state, run after every decrypted record is handed
// to the joiner.
func (cs *CommonState) checkAlignedHandshake() {
	cs.alignedHandshake = cs.joiner.IsEmpty()
}

// processPlaintext routes one decrypted plaintext record: Handshake
// content feeds the joiner (and, once reassembled, the handshake state
// machine via the handler passed in); Alert is decoded and dispatched;
// ApplicationData is appended to receivedPlaintext; ChangeCipherSpec
// is validated and handed to the per-role handler.
//
// handleHandshake is called once per fully-reassembled handshake
// message, in order; handleCCS is called once per validated
// change_cipher_spec record (its meaning -- a TLS 1.2 key flip or a
// TLS 1.3 middlebox no-op -- belongs to the per-role state machine,
// not to this shared plumbing); either returns an error to abort
// processing.
func (cs *CommonState) processPlaintext(rec PlainRecord, handleHandshake func(HandshakeMessage) *Error, handleCCS func() *Error) *Error {
	switch rec.ContentType {
	case ContentTypeHandshake:
		if err := cs.joiner.TakeMessage(rec, cs.record.DecryptEpoch()); err != nil {
			return err
		}
		cs.checkAlignedHandshake()
		for {
			msg, ok := cs.joiner.PopFront()
			if !ok {
				break
			}
			cs.lastPreMessageHash = cs.transcript.SumIfReady()
			cs.transcript.Update(msg.Encode())
			tlslog.Logf(tlslog.Handshake, "received %s (%d bytes)", msg.Type, len(msg.Body))
			if err := handleHandshake(msg); err != nil {
				return err
			}
		}
		return nil

	case ContentTypeAlert:
		alert, err := DecodeAlert(rec.Payload)
		if err != nil {
			return err
		}
		return cs.handleAlert(alert)

	case ContentTypeApplicationData:
		if !cs.handshakeComplete && cs.negotiatedVersion != VersionTLS13 {
			return errInappropriate(rec.ContentType.String(), []string{"handshake"})
		}
		cs.receivedPlaintext.Append(rec.Payload)
		return nil

	case ContentTypeChangeCipherSpec:
		if len(rec.Payload) != 1 || rec.Payload[0] != 1 {
			return errCorruptMessage("malformed change_cipher_spec")
		}
		return handleCCS()

	default:
		return errInappropriate(rec.ContentType.String(), nil)
	}
}

// handleAlert dispatches a decoded alert: close_notify (at any
// level) marks peer EOF; in TLS 1.3 any other
// warning-level alert is a fatal protocol violation (RFC 8446 §6
// deprecates warning alerts except user_canceled, which is logged and
// ignored); in TLS 1.2 non-close-notify warnings are logged and
// ignored; any fatal alert is wrapped and returned as the connection's
// terminal error.
func (cs *CommonState) handleAlert(alert AlertMessage) *Error {
	if alert.Description == AlertCloseNotify {
		cs.sawCloseNotify = true
		return nil
	}
	if alert.Level == AlertLevelFatal {
		return errAlertReceived(alert.Description)
	}
	if cs.negotiatedVersion == VersionTLS13 && alert.Description != AlertUserCanceled {
		cs.sendAlert(AlertLevelFatal, AlertDecodeError)
		return errCorruptMessage("unexpected TLS 1.3 warning alert")
	}
	tlslog.Logf(tlslog.Handshake, "ignoring warning alert %s", alert.Description)
	return nil
}

// middleboxCCS is the handleCCS callback TLS 1.3 state machines pass
// to processPlaintext: RFC 8446 §5's compatibility mode allows exactly
// one change_cipher_spec before Finished, silently ignored.
func (cs *CommonState) middleboxCCS() *Error {
	if cs.seenMiddleboxCCS {
		return errMisbehaved("duplicate middlebox change_cipher_spec")
	}
	cs.seenMiddleboxCCS = true
	return nil
}
