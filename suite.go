package tlscore

import "crypto"

// This file is the primitive registry: static tables of cipher
// suites, key-exchange groups, and supported versions, plus the
// suite-selection and compatibility predicates negotiation runs on.
// Concrete AEAD/HKDF/KX implementations are supplied by a crypto
// provider package (see cryptosuite); this file only holds the table
// and the algorithm-handle types a provider plugs into.

// BulkAlgorithm names the AEAD construction a suite uses, independent of
// which AEADFactory happens to implement it.
type BulkAlgorithm int

const (
	BulkAES128GCM BulkAlgorithm = iota
	BulkAES256GCM
	BulkChaCha20Poly1305
)

func (b BulkAlgorithm) String() string {
	switch b {
	case BulkAES128GCM:
		return "AES_128_GCM"
	case BulkAES256GCM:
		return "AES_256_GCM"
	case BulkChaCha20Poly1305:
		return "CHACHA20_POLY1305"
	default:
		return "unknown_bulk"
	}
}

// CipherSuiteID is the IANA two-byte cipher suite identifier.
type CipherSuiteID uint16

const (
	TLS_AES_128_GCM_SHA256                       CipherSuiteID = 0x1301
	TLS_AES_256_GCM_SHA384                       CipherSuiteID = 0x1302
	TLS_CHACHA20_POLY1305_SHA256                 CipherSuiteID = 0x1303
	TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256       CipherSuiteID = 0xc02b
	TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384       CipherSuiteID = 0xc02c
	TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256 CipherSuiteID = 0xcca9
	TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256         CipherSuiteID = 0xc02f
	TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384         CipherSuiteID = 0xc030
	TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256   CipherSuiteID = 0xcca8
)

func (id CipherSuiteID) String() string {
	switch id {
	case TLS_AES_128_GCM_SHA256:
		return "TLS_AES_128_GCM_SHA256"
	case TLS_AES_256_GCM_SHA384:
		return "TLS_AES_256_GCM_SHA384"
	case TLS_CHACHA20_POLY1305_SHA256:
		return "TLS_CHACHA20_POLY1305_SHA256"
	case TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256:
		return "TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256"
	case TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384:
		return "TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384"
	case TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256:
		return "TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256"
	case TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256:
		return "TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256"
	case TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384:
		return "TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384"
	case TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256:
		return "TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256"
	default:
		return "unknown_cipher_suite"
	}
}

// CipherSuiteCommon is the part of a suite definition that doesn't
// differ between TLS 1.2 and TLS 1.3: its wire ID, bulk cipher family,
// AEAD constructor, and hash (used for HKDF in 1.3 and the PRF/Finished
// hash in 1.2).
type CipherSuiteCommon struct {
	ID      CipherSuiteID
	Bulk    BulkAlgorithm
	AEAD    AEADFactory
	Hash    crypto.Hash
}

// Tls13Suite is a TLS 1.3 cipher suite: common fields only, since 1.3
// suites carry no key-exchange or signature constraint of their own.
type Tls13Suite struct {
	Common CipherSuiteCommon
}

// CanResumeFrom reports whether a session negotiated with prev may be
// resumed into a connection negotiating suite s, which for TLS 1.3
// requires (RFC 8446 §4.2.11) that both suites share the same hash.
func (s *Tls13Suite) CanResumeFrom(prev SupportedCipherSuite) bool {
	other, ok := prev.tls13, prev.version == VersionTLS13
	if !ok || other == nil {
		return false
	}
	return other.Common.Hash == s.Common.Hash
}

// Tls12Suite is a TLS 1.2 cipher suite: ECDHE-only, with an explicit
// signature-scheme allowlist and the nonce-construction lengths RFC
// 5246/5289 fix per bulk algorithm.
type Tls12Suite struct {
	Common CipherSuiteCommon
	// Sign lists the signature schemes this suite's key-exchange
	// authentication can use; a suite is usable for a given sigalg iff
	// some entry here matches.
	Sign []SignatureScheme
	// FixedIVLen/ExplicitNonceLen: GCM suites carry an
	// 8-byte explicit nonce on the wire with a 4-byte fixed IV;
	// ChaCha20-Poly1305 derives its whole 12-byte nonce from the
	// sequence number and carries none on the wire.
	FixedIVLen       int
	ExplicitNonceLen int
}

// SupportedCipherSuite is a sum type over the two suite kinds.
// Exactly one of tls12/tls13 is non-nil, selected by version.
type SupportedCipherSuite struct {
	version ProtocolVersion
	tls12   *Tls12Suite
	tls13   *Tls13Suite
}

func fromTls12(s *Tls12Suite) SupportedCipherSuite {
	return SupportedCipherSuite{version: VersionTLS12, tls12: s}
}

func fromTls13(s *Tls13Suite) SupportedCipherSuite {
	return SupportedCipherSuite{version: VersionTLS13, tls13: s}
}

// IsTLS13 reports whether this is a TLS 1.3 suite.
func (s SupportedCipherSuite) IsTLS13() bool { return s.tls13 != nil }

// ID returns the suite's wire identifier.
func (s SupportedCipherSuite) ID() CipherSuiteID {
	return s.common().ID
}

// Hash returns the suite's hash algorithm (HKDF hash for 1.3, PRF/
// Finished hash for 1.2).
func (s SupportedCipherSuite) Hash() crypto.Hash {
	return s.common().Hash
}

func (s SupportedCipherSuite) common() CipherSuiteCommon {
	if s.tls13 != nil {
		return s.tls13.Common
	}
	return s.tls12.Common
}

// Tls12 returns the underlying Tls12Suite and true, or (nil, false) if
// this is a TLS 1.3 suite.
func (s SupportedCipherSuite) Tls12() (*Tls12Suite, bool) {
	return s.tls12, s.tls12 != nil
}

// Tls13 returns the underlying Tls13Suite and true, or (nil, false) if
// this is a TLS 1.2 suite.
func (s SupportedCipherSuite) Tls13() (*Tls13Suite, bool) {
	return s.tls13, s.tls13 != nil
}

// UsableForVersion reports whether the suite may be negotiated under
// version: a TLS 1.3 suite is usable only with version 1.3, a TLS 1.2
// suite only with 1.2.
func (s SupportedCipherSuite) UsableForVersion(version ProtocolVersion) bool {
	return s.version == version
}

// UsableForSigAlg reports whether the suite can authenticate its key
// exchange with sigalg: true unconditionally for TLS 1.3, and true
// for TLS 1.2 iff some entry in Sign matches sigalg.
func (s SupportedCipherSuite) UsableForSigAlg(sigalg SignatureAlgorithm) bool {
	if s.tls13 != nil {
		return true
	}
	for _, scheme := range s.tls12.Sign {
		if scheme.Algorithm() == sigalg {
			return true
		}
	}
	return false
}

// ChooseCiphersuitePreferringClient walks clientSuites in order and
// returns the first one also present in serverSuites. The search stops
// at the first match; a mismatch never ends it early.
func ChooseCiphersuitePreferringClient(clientSuites []CipherSuiteID, serverSuites []SupportedCipherSuite) (SupportedCipherSuite, bool) {
	for _, want := range clientSuites {
		for _, have := range serverSuites {
			if have.ID() == want {
				return have, true
			}
		}
	}
	return SupportedCipherSuite{}, false
}

// ChooseCiphersuitePreferringServer walks serverSuites in order and
// returns the first one also offered by the client.
func ChooseCiphersuitePreferringServer(clientSuites []CipherSuiteID, serverSuites []SupportedCipherSuite) (SupportedCipherSuite, bool) {
	for _, have := range serverSuites {
		for _, want := range clientSuites {
			if have.ID() == want {
				return have, true
			}
		}
	}
	return SupportedCipherSuite{}, false
}

// ReduceGivenSigAlg filters all to the suites usable for sigalg.
func ReduceGivenSigAlg(all []SupportedCipherSuite, sigalg SignatureAlgorithm) []SupportedCipherSuite {
	out := make([]SupportedCipherSuite, 0, len(all))
	for _, s := range all {
		if s.UsableForSigAlg(sigalg) {
			out = append(out, s)
		}
	}
	return out
}

// ReduceGivenVersion filters all to the suites usable for version.
func ReduceGivenVersion(all []SupportedCipherSuite, version ProtocolVersion) []SupportedCipherSuite {
	out := make([]SupportedCipherSuite, 0, len(all))
	for _, s := range all {
		if s.UsableForVersion(version) {
			out = append(out, s)
		}
	}
	return out
}

// CompatibleSigSchemeForSuites reports whether sigscheme is usable by
// any suite in suites.
func CompatibleSigSchemeForSuites(sigscheme SignatureScheme, suites []SupportedCipherSuite) bool {
	alg := sigscheme.Algorithm()
	for _, s := range suites {
		if s.UsableForSigAlg(alg) {
			return true
		}
	}
	return false
}

var (
	tls12ECDSASchemes = []SignatureScheme{
		SignatureSchemeED25519,
		SignatureSchemeECDSAWithP384AndSHA384,
		SignatureSchemeECDSAWithP256AndSHA256,
	}
	tls12RSASchemes = []SignatureScheme{
		SignatureSchemeRSAPSSRSAEWithSHA384,
		SignatureSchemeRSAPSSRSAEWithSHA256,
	}
)

// Registry holds one connection policy's suite and KX group tables,
// populated from a Config so that this file stays independent of any
// concrete AEAD/HKDF implementation.
type Registry struct {
	TLS13Suites []SupportedCipherSuite
	TLS12Suites []SupportedCipherSuite
	KXGroups    []KXGroup
}

// All returns the registry's suites in TLS 1.3-then-TLS 1.2 order.
func (r *Registry) All() []SupportedCipherSuite {
	out := make([]SupportedCipherSuite, 0, len(r.TLS13Suites)+len(r.TLS12Suites))
	out = append(out, r.TLS13Suites...)
	out = append(out, r.TLS12Suites...)
	return out
}

// NewTls12Suite is a constructor for table entries so that the sign
// list shorthand (ECDSA vs RSA) lives in one place.
func NewTls12Suite(id CipherSuiteID, bulk BulkAlgorithm, hash crypto.Hash, aead AEADFactory, fixedIVLen, explicitNonceLen int, ecdsa bool) *Tls12Suite {
	schemes := tls12RSASchemes
	if ecdsa {
		schemes = tls12ECDSASchemes
	}
	return &Tls12Suite{
		Common: CipherSuiteCommon{
			ID:   id,
			Bulk: bulk,
			AEAD: aead,
			Hash: hash,
		},
		Sign:             schemes,
		FixedIVLen:       fixedIVLen,
		ExplicitNonceLen: explicitNonceLen,
	}
}

// NewTls13Suite is a constructor for table entries.
func NewTls13Suite(id CipherSuiteID, bulk BulkAlgorithm, hash crypto.Hash, aead AEADFactory) *Tls13Suite {
	return &Tls13Suite{
		Common: CipherSuiteCommon{
			ID:   id,
			Bulk: bulk,
			AEAD: aead,
			Hash: hash,
		},
	}
}

// WrapTls12 adapts a *Tls12Suite into the sum type.
func WrapTls12(s *Tls12Suite) SupportedCipherSuite { return fromTls12(s) }

// WrapTls13 adapts a *Tls13Suite into the sum type.
func WrapTls13(s *Tls13Suite) SupportedCipherSuite { return fromTls13(s) }
