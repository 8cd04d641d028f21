package tlscore

import "fmt"

// Kind classifies an Error without encoding any free-text detail in
// the type itself, so callers can dispatch on the class of failure.
type Kind int

const (
	// CorruptMessage means the deframer desynchronized (the byte stream
	// no longer parses as a sequence of TLS records), a ChangeCipherSpec
	// record was malformed, or a TLS 1.3 peer sent a warning alert.
	CorruptMessage Kind = iota
	// CorruptMessagePayload means a record's content-type-specific body
	// (usually a handshake message) failed to parse.
	CorruptMessagePayload
	// PeerSentOversizedRecord means a record's length exceeded the
	// maximum allowed for its content type and key state.
	PeerSentOversizedRecord
	// BadMaxFragmentSize means a configured fragment size fell outside
	// [32, 2^14].
	BadMaxFragmentSize
	// PeerMisbehaved covers protocol-policy violations that aren't a
	// parse failure: illegal middlebox CCS, downgrade, unaligned
	// handshake key changes, and similar.
	PeerMisbehaved
	// InappropriateMessage means a message of the wrong top-level
	// content type arrived for the current handshake state.
	InappropriateMessage
	// InappropriateHandshakeMessage means a handshake message of the
	// wrong HandshakeType arrived for the current handshake state.
	InappropriateHandshakeMessage
	// Decrypt means AEAD decryption failed (bad_record_mac).
	Decrypt
	// InvalidCertificate means the Verifier rejected the peer's
	// certificate chain.
	InvalidCertificate
	// InvalidSignature means the Verifier rejected a handshake
	// signature, or a Finished message's verify_data did not match.
	InvalidSignature
	// AlertReceived wraps a fatal alert sent by the peer.
	AlertReceived
	// General covers configuration-time validation failures and
	// handshake failures with no more specific Kind (no common version,
	// a missing certificate, a failed AEAD or random-source setup).
	General
)

func (k Kind) String() string {
	switch k {
	case CorruptMessage:
		return "corrupt_message"
	case CorruptMessagePayload:
		return "corrupt_message_payload"
	case PeerSentOversizedRecord:
		return "peer_sent_oversized_record"
	case BadMaxFragmentSize:
		return "bad_max_fragment_size"
	case PeerMisbehaved:
		return "peer_misbehaved"
	case InappropriateMessage:
		return "inappropriate_message"
	case InappropriateHandshakeMessage:
		return "inappropriate_handshake_message"
	case Decrypt:
		return "decrypt_error"
	case InvalidCertificate:
		return "invalid_certificate"
	case InvalidSignature:
		return "invalid_signature"
	case AlertReceived:
		return "alert_received"
	case General:
		return "general"
	default:
		return "unknown"
	}
}

// Error is the single error type returned across the public API. A
// connection caches the first Error it produces and returns it
// verbatim from every subsequent ProcessNewPackets call, which is why
// Error carries no unexported pointer state that would complicate
// reuse.
type Error struct {
	Kind   Kind
	Detail string

	// Got/Expected are populated only for InappropriateMessage and
	// InappropriateHandshakeMessage.
	Got      string
	Expected []string

	// Alert is populated only for AlertReceived.
	Alert AlertDescription
}

func (e *Error) Error() string {
	switch e.Kind {
	case InappropriateMessage:
		return fmt.Sprintf("inappropriate message: got %s, expected one of %v", e.Got, e.Expected)
	case InappropriateHandshakeMessage:
		return fmt.Sprintf("inappropriate handshake message: got %s, expected one of %v", e.Got, e.Expected)
	case AlertReceived:
		return fmt.Sprintf("peer sent fatal alert: %s", e.Alert)
	case PeerMisbehaved:
		return fmt.Sprintf("peer misbehaved: %s", e.Detail)
	default:
		if e.Detail == "" {
			return e.Kind.String()
		}
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
}

func errCorruptMessage(detail string) *Error {
	return &Error{Kind: CorruptMessage, Detail: detail}
}

func errCorruptPayload(detail string) *Error {
	return &Error{Kind: CorruptMessagePayload, Detail: detail}
}

func errOversizedRecord() *Error {
	return &Error{Kind: PeerSentOversizedRecord}
}

func errBadMaxFragmentSize() *Error {
	return &Error{Kind: BadMaxFragmentSize}
}

func errMisbehaved(detail string) *Error {
	return &Error{Kind: PeerMisbehaved, Detail: detail}
}

func errInappropriate(got string, expected []string) *Error {
	return &Error{Kind: InappropriateMessage, Got: got, Expected: expected}
}

func errInappropriateHandshake(got string, expected []string) *Error {
	return &Error{Kind: InappropriateHandshakeMessage, Got: got, Expected: expected}
}

func errDecrypt(detail string) *Error {
	return &Error{Kind: Decrypt, Detail: detail}
}

func errGeneral(detail string) *Error {
	return &Error{Kind: General, Detail: detail}
}

func errAlertReceived(desc AlertDescription) *Error {
	return &Error{Kind: AlertReceived, Alert: desc}
}
