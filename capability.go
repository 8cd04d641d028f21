package tlscore

import "crypto/cipher"

// This file defines the narrow capability interfaces the connection
// machinery consumes from external collaborators. It never reaches
// past these interfaces into certificate parsing or signature
// verification: that work belongs to whatever Verifier/Resolver
// implementation the caller plugs in.

// Certificate is an opaque DER-encoded certificate. The core never
// parses it; it is only ever handed to a Verifier or produced by a
// Resolver.
type Certificate struct {
	DER []byte
}

// CertifiedKey pairs a certificate chain with something able to sign
// with its private key, as handed back by a client-cert Resolver.
type CertifiedKey struct {
	Chain []Certificate
	// Sign produces a signature over message using scheme. The core
	// never inspects the signature's bytes; it only forwards them into
	// the appropriate handshake message.
	Sign func(scheme SignatureScheme, message []byte) ([]byte, error)
}

// Verifier authenticates a server (or, for mutual auth, a client)
// certificate chain. WebPKI path-building, revocation, and hostname
// checks all live inside the implementation the caller supplies — the
// client calls VerifyServerCert at the point the handshake state
// machine says the server's chain has arrived, and fails the
// connection with InvalidCertificate if it returns an error. The core
// never calls VerifyClientCert.
type Verifier interface {
	VerifyServerCert(chain []Certificate, serverName string) error
	VerifyClientCert(chain []Certificate) error
	// VerifySignature checks that signature is a valid signature by the
	// end-entity certificate in chain, over message, using scheme. This
	// is the one piece of per-message crypto the core must call out
	// for, since the transcript being signed is only known to the
	// handshake state machine.
	VerifySignature(chain []Certificate, scheme SignatureScheme, message, signature []byte) error
}

// Resolver picks which certified key (if any) to present for a given
// server name / signature scheme offer. The server calls
// ResolveServerCert and fails the handshake if it returns an error or
// a nil *CertifiedKey. The core never calls ResolveClientCert.
type Resolver interface {
	ResolveServerCert(serverName string, schemes []SignatureScheme) (*CertifiedKey, error)
	ResolveClientCert(acceptableIssuers [][]byte, schemes []SignatureScheme) (*CertifiedKey, error)
}

// SessionStore is the resumption storage capability: a TLS 1.2
// session-ticket cache, or a TLS 1.3 PSK cache, keyed by opaque bytes
// the handshake layer chooses. Implementations MUST be internally
// synchronized; no lock is held across a call into one.
type SessionStore interface {
	Put(key, value []byte)
	Get(key []byte) (value []byte, ok bool)
}

// KeyLogWriter receives (label, clientRandom, secret) triples in the
// NSS key log format, for offline decryption during debugging. Writing
// to it is best-effort: the core ignores any error it returns.
type KeyLogWriter interface {
	WriteKeyLog(label string, clientRandom, secret []byte) error
}

// QuicOps is the surface a QUIC transport binding would drive:
// handshake bytes per encryption level, per-level secrets, and
// transport parameters. No QUIC transport implementation lives in
// this module, and the handshake driver calls none of these methods.
type QuicOps interface {
	HandshakeData(level EncryptionLevel, data []byte)
	SetReadSecret(level EncryptionLevel, suite SupportedCipherSuite, secret []byte) error
	SetWriteSecret(level EncryptionLevel, suite SupportedCipherSuite, secret []byte) error
	TransportParameters() []byte
}

// EncryptionLevel names a QUIC packet-number space. Defined here only so
// QuicOps has a concrete type to reference; tlscore itself never
// constructs QUIC packets.
type EncryptionLevel uint8

const (
	EncryptionLevelInitial EncryptionLevel = iota
	EncryptionLevelEarly
	EncryptionLevelHandshake
	EncryptionLevelApplication
)

// AEADFactory constructs a cipher.AEAD from a raw key. Suite table
// entries carry one of these rather than a concrete cipher package
// import, keeping the suite registry independent of which crypto
// provider is linked in.
type AEADFactory func(key []byte) (cipher.AEAD, error)

// KXGroup is a Diffie-Hellman-shaped key exchange group: it can
// generate an ephemeral key share and combine a peer's share with the
// local private share into a shared secret. Concrete groups (X25519,
// P-256, ...) are supplied by a crypto provider such as the
// cryptosuite package; the core only ever holds this interface.
type KXGroup interface {
	Name() string
	ID() NamedGroup
	GenerateKeyShare(rnd RandomSource) (priv, pub []byte, err error)
	SharedSecret(priv, peerPublic []byte) ([]byte, error)
}

// RandomSource is the minimal randomness capability the core needs:
// cryptographically secure random bytes for nonces, key shares, and the
// 32-byte Random values in ClientHello/ServerHello. Satisfied trivially
// by crypto/rand.Reader.
type RandomSource interface {
	Read(p []byte) (n int, err error)
}

// NamedGroup is the IANA codepoint for a key-exchange group.
type NamedGroup uint16

const (
	GroupX25519 NamedGroup = 0x001d
	GroupP256   NamedGroup = 0x0017
	GroupP384   NamedGroup = 0x0018
)
