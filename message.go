package tlscore

import "encoding/binary"

// This file defines the handshake message bodies the state machine
// exchanges and their wire encoding. Framing (type+3-byte length) is
// the joiner's job (joiner.go); this file only encodes/decodes what
// comes after that header. Extension coverage is the working set the
// negotiation here actually rides on (supported_versions, key_share,
// signature_algorithms, supported_groups, server_name, ALPN) rather
// than every RFC 8446 extension point. Vector encodings follow RFC
// 5246 §4.3 / RFC 8446 §4's <T..2^16-1> idiom.

func putUint16Vec(out []byte, b []byte) []byte {
	out = append(out, byte(len(b)>>8), byte(len(b)))
	return append(out, b...)
}

func takeUint16Vec(b []byte) (value, rest []byte, ok bool) {
	if len(b) < 2 {
		return nil, nil, false
	}
	n := int(binary.BigEndian.Uint16(b))
	if len(b) < 2+n {
		return nil, nil, false
	}
	return b[2 : 2+n], b[2+n:], true
}

func putUint8Vec(out []byte, b []byte) []byte {
	out = append(out, byte(len(b)))
	return append(out, b...)
}

func takeUint8Vec(b []byte) (value, rest []byte, ok bool) {
	if len(b) < 1 {
		return nil, nil, false
	}
	n := int(b[0])
	if len(b) < 1+n {
		return nil, nil, false
	}
	return b[1 : 1+n], b[1+n:], true
}

// ExtensionType is the two-byte extension identifier (RFC 8446 §4.2).
type ExtensionType uint16

const (
	ExtensionServerName         ExtensionType = 0
	ExtensionSupportedGroups    ExtensionType = 10
	ExtensionSignatureAlgorithms ExtensionType = 13
	ExtensionALPN               ExtensionType = 16
	ExtensionSessionTicket      ExtensionType = 35
	ExtensionSupportedVersions  ExtensionType = 43
	ExtensionKeyShare           ExtensionType = 51
	ExtensionPreSharedKey       ExtensionType = 41
	ExtensionEarlyData          ExtensionType = 42
)

// Extension is a single (type, opaque-body) handshake extension.
type Extension struct {
	Type ExtensionType
	Body []byte
}

func encodeExtensions(exts []Extension) []byte {
	var body []byte
	for _, e := range exts {
		body = append(body, byte(e.Type>>8), byte(e.Type))
		body = putUint16Vec(body, e.Body)
	}
	var out []byte
	out = putUint16Vec(out, body)
	return out
}

func decodeExtensions(b []byte) ([]Extension, *Error) {
	list, _, ok := takeUint16Vec(b)
	if !ok {
		return nil, errCorruptPayload("truncated extensions block")
	}
	var out []Extension
	for len(list) > 0 {
		if len(list) < 2 {
			return nil, errCorruptPayload("truncated extension header")
		}
		typ := ExtensionType(binary.BigEndian.Uint16(list))
		list = list[2:]
		body, rest, ok := takeUint16Vec(list)
		if !ok {
			return nil, errCorruptPayload("truncated extension body")
		}
		out = append(out, Extension{Type: typ, Body: body})
		list = rest
	}
	return out, nil
}

func findExtension(exts []Extension, typ ExtensionType) ([]byte, bool) {
	for _, e := range exts {
		if e.Type == typ {
			return e.Body, true
		}
	}
	return nil, false
}

// KeyShareEntry is one (group, exchange-key) pair from a key_share
// extension.
type KeyShareEntry struct {
	Group NamedGroup
	Key   []byte
}

func encodeKeyShares(entries []KeyShareEntry) []byte {
	var list []byte
	for _, e := range entries {
		list = append(list, byte(e.Group>>8), byte(e.Group))
		list = putUint16Vec(list, e.Key)
	}
	return putUint16Vec(nil, list)
}

func decodeKeyShares(b []byte) ([]KeyShareEntry, *Error) {
	list, _, ok := takeUint16Vec(b)
	if !ok {
		return nil, errCorruptPayload("truncated key_share extension")
	}
	var out []KeyShareEntry
	for len(list) > 0 {
		if len(list) < 2 {
			return nil, errCorruptPayload("truncated key_share entry header")
		}
		group := NamedGroup(binary.BigEndian.Uint16(list))
		list = list[2:]
		key, rest, ok := takeUint16Vec(list)
		if !ok {
			return nil, errCorruptPayload("truncated key_share entry key")
		}
		out = append(out, KeyShareEntry{Group: group, Key: key})
		list = rest
	}
	return out, nil
}

// decodeSingleKeyShare decodes a ServerHello's key_share extension,
// which (unlike ClientHello's) carries exactly one entry with no outer
// length-prefixed list (RFC 8446 §4.2.8).
func decodeSingleKeyShare(b []byte) (KeyShareEntry, *Error) {
	if len(b) < 2 {
		return KeyShareEntry{}, errCorruptPayload("truncated server key_share")
	}
	group := NamedGroup(binary.BigEndian.Uint16(b))
	key, _, ok := takeUint16Vec(b[2:])
	if !ok {
		return KeyShareEntry{}, errCorruptPayload("truncated server key_share key")
	}
	return KeyShareEntry{Group: group, Key: key}, nil
}

// ClientHelloBody is the subset of RFC 5246 §7.4.1.2 / RFC 8446
// §4.1.2 fields this package negotiates on.
type ClientHelloBody struct {
	LegacyVersion    ProtocolVersion
	Random           Random
	LegacySessionID  []byte
	CipherSuites     []CipherSuiteID
	CompressionMethods []byte

	ServerName         string
	SupportedVersions  []ProtocolVersion
	SupportedGroups    []NamedGroup
	SignatureAlgorithms []SignatureScheme
	ALPNProtocols      []string
	KeyShares          []KeyShareEntry

	// OfferSessionTicket adds a session_ticket extension (RFC 5077
	// §3.2); SessionTicket is its body -- empty to request a fresh
	// ticket, or a previously issued ticket to offer it back.
	OfferSessionTicket bool
	SessionTicket      []byte
}

func (m *ClientHelloBody) Encode() []byte {
	var out []byte
	out = append(out, byte(m.LegacyVersion>>8), byte(m.LegacyVersion))
	out = append(out, m.Random[:]...)
	out = putUint8Vec(out, m.LegacySessionID)

	var suites []byte
	for _, id := range m.CipherSuites {
		suites = append(suites, byte(id>>8), byte(id))
	}
	out = putUint16Vec(out, suites)
	out = putUint8Vec(out, m.CompressionMethods)

	var exts []Extension
	if m.ServerName != "" {
		var snBody []byte
		nameList := putUint8Vec(nil, []byte(m.ServerName))
		// host_name type(0) prefix per RFC 6066 §3, then the 1-byte-len name vector.
		snBody = append(snBody, 0)
		snBody = append(snBody, nameList...)
		exts = append(exts, Extension{Type: ExtensionServerName, Body: putUint16Vec(nil, snBody)})
	}
	if len(m.SupportedVersions) > 0 {
		var vs []byte
		for _, v := range m.SupportedVersions {
			vs = append(vs, byte(v>>8), byte(v))
		}
		exts = append(exts, Extension{Type: ExtensionSupportedVersions, Body: putUint8Vec(nil, vs)})
	}
	if len(m.SupportedGroups) > 0 {
		var gs []byte
		for _, g := range m.SupportedGroups {
			gs = append(gs, byte(g>>8), byte(g))
		}
		exts = append(exts, Extension{Type: ExtensionSupportedGroups, Body: putUint16Vec(nil, gs)})
	}
	if len(m.SignatureAlgorithms) > 0 {
		var sa []byte
		for _, s := range m.SignatureAlgorithms {
			sa = append(sa, byte(s>>8), byte(s))
		}
		exts = append(exts, Extension{Type: ExtensionSignatureAlgorithms, Body: putUint16Vec(nil, sa)})
	}
	if len(m.ALPNProtocols) > 0 {
		var al []byte
		for _, p := range m.ALPNProtocols {
			al = putUint8Vec(al, []byte(p))
		}
		exts = append(exts, Extension{Type: ExtensionALPN, Body: putUint16Vec(nil, al)})
	}
	if len(m.KeyShares) > 0 {
		exts = append(exts, Extension{Type: ExtensionKeyShare, Body: encodeKeyShares(m.KeyShares)})
	}
	if m.OfferSessionTicket {
		exts = append(exts, Extension{Type: ExtensionSessionTicket, Body: m.SessionTicket})
	}
	out = append(out, encodeExtensions(exts)...)
	return out
}

func decodeClientHello(b []byte) (*ClientHelloBody, *Error) {
	if len(b) < 2+32+1 {
		return nil, errCorruptPayload("truncated client_hello")
	}
	m := &ClientHelloBody{}
	m.LegacyVersion = ProtocolVersion(binary.BigEndian.Uint16(b))
	b = b[2:]
	copy(m.Random[:], b[:32])
	b = b[32:]

	sessID, rest, ok := takeUint8Vec(b)
	if !ok {
		return nil, errCorruptPayload("truncated client_hello session_id")
	}
	m.LegacySessionID = sessID
	b = rest

	suites, rest, ok := takeUint16Vec(b)
	if !ok {
		return nil, errCorruptPayload("truncated client_hello cipher_suites")
	}
	for i := 0; i+1 < len(suites); i += 2 {
		m.CipherSuites = append(m.CipherSuites, CipherSuiteID(binary.BigEndian.Uint16(suites[i:])))
	}
	b = rest

	comp, rest, ok := takeUint8Vec(b)
	if !ok {
		return nil, errCorruptPayload("truncated client_hello compression_methods")
	}
	m.CompressionMethods = comp
	b = rest

	if len(b) == 0 {
		return m, nil
	}
	exts, err := decodeExtensions(b)
	if err != nil {
		return nil, err
	}
	if body, ok := findExtension(exts, ExtensionServerName); ok {
		if len(body) >= 3 {
			nameList, _, ok := takeUint16Vec(body)
			if ok && len(nameList) >= 3 {
				name, _, ok := takeUint8Vec(nameList[1:])
				if ok {
					m.ServerName = string(name)
				}
			}
		}
	}
	if body, ok := findExtension(exts, ExtensionSupportedVersions); ok {
		vs, _, ok := takeUint8Vec(body)
		if ok {
			for i := 0; i+1 < len(vs); i += 2 {
				m.SupportedVersions = append(m.SupportedVersions, ProtocolVersion(binary.BigEndian.Uint16(vs[i:])))
			}
		}
	}
	if body, ok := findExtension(exts, ExtensionSupportedGroups); ok {
		gs, _, ok := takeUint16Vec(body)
		if ok {
			for i := 0; i+1 < len(gs); i += 2 {
				m.SupportedGroups = append(m.SupportedGroups, NamedGroup(binary.BigEndian.Uint16(gs[i:])))
			}
		}
	}
	if body, ok := findExtension(exts, ExtensionSignatureAlgorithms); ok {
		sa, _, ok := takeUint16Vec(body)
		if ok {
			for i := 0; i+1 < len(sa); i += 2 {
				m.SignatureAlgorithms = append(m.SignatureAlgorithms, SignatureScheme(binary.BigEndian.Uint16(sa[i:])))
			}
		}
	}
	if body, ok := findExtension(exts, ExtensionALPN); ok {
		list, _, ok := takeUint16Vec(body)
		if ok {
			for len(list) > 0 {
				proto, rest, ok := takeUint8Vec(list)
				if !ok {
					break
				}
				m.ALPNProtocols = append(m.ALPNProtocols, string(proto))
				list = rest
			}
		}
	}
	if body, ok := findExtension(exts, ExtensionKeyShare); ok {
		ks, err := decodeKeyShares(body)
		if err != nil {
			return nil, err
		}
		m.KeyShares = ks
	}
	if body, ok := findExtension(exts, ExtensionSessionTicket); ok {
		m.OfferSessionTicket = true
		m.SessionTicket = body
	}
	return m, nil
}

// ServerHelloBody is the subset of RFC 5246 §7.4.1.3 / RFC 8446
// §4.1.3 fields this package negotiates on.
type ServerHelloBody struct {
	LegacyVersion   ProtocolVersion
	Random          Random
	LegacySessionID []byte
	CipherSuite     CipherSuiteID
	CompressionMethod byte

	SupportedVersion ProtocolVersion // TLS 1.3 only, from supported_versions
	KeyShare         *KeyShareEntry  // TLS 1.3 only
	ALPNProtocol     string

	// TicketSupported mirrors an empty session_ticket extension in the
	// ServerHello (RFC 5077 §3.2): the server will send a
	// NewSessionTicket before its ChangeCipherSpec. TLS 1.2 only.
	TicketSupported bool
}

func (m *ServerHelloBody) Encode(isTLS13 bool) []byte {
	var out []byte
	out = append(out, byte(m.LegacyVersion>>8), byte(m.LegacyVersion))
	out = append(out, m.Random[:]...)
	out = putUint8Vec(out, m.LegacySessionID)
	out = append(out, byte(m.CipherSuite>>8), byte(m.CipherSuite))
	out = append(out, m.CompressionMethod)

	var exts []Extension
	if isTLS13 {
		exts = append(exts, Extension{Type: ExtensionSupportedVersions, Body: []byte{byte(m.SupportedVersion >> 8), byte(m.SupportedVersion)}})
		if m.KeyShare != nil {
			var ks []byte
			ks = append(ks, byte(m.KeyShare.Group>>8), byte(m.KeyShare.Group))
			ks = putUint16Vec(ks, m.KeyShare.Key)
			exts = append(exts, Extension{Type: ExtensionKeyShare, Body: ks})
		}
	}
	if m.ALPNProtocol != "" {
		al := putUint8Vec(nil, []byte(m.ALPNProtocol))
		exts = append(exts, Extension{Type: ExtensionALPN, Body: putUint16Vec(nil, al)})
	}
	if !isTLS13 && m.TicketSupported {
		exts = append(exts, Extension{Type: ExtensionSessionTicket, Body: nil})
	}
	out = append(out, encodeExtensions(exts)...)
	return out
}

func decodeServerHello(b []byte) (*ServerHelloBody, *Error) {
	if len(b) < 2+32+1 {
		return nil, errCorruptPayload("truncated server_hello")
	}
	m := &ServerHelloBody{}
	m.LegacyVersion = ProtocolVersion(binary.BigEndian.Uint16(b))
	b = b[2:]
	copy(m.Random[:], b[:32])
	b = b[32:]

	sessID, rest, ok := takeUint8Vec(b)
	if !ok {
		return nil, errCorruptPayload("truncated server_hello session_id")
	}
	m.LegacySessionID = sessID
	b = rest

	if len(b) < 3 {
		return nil, errCorruptPayload("truncated server_hello suite/compression")
	}
	m.CipherSuite = CipherSuiteID(binary.BigEndian.Uint16(b))
	m.CompressionMethod = b[2]
	b = b[3:]

	m.SupportedVersion = m.LegacyVersion
	if len(b) == 0 {
		return m, nil
	}
	exts, err := decodeExtensions(b)
	if err != nil {
		return nil, err
	}
	if body, ok := findExtension(exts, ExtensionSupportedVersions); ok && len(body) >= 2 {
		m.SupportedVersion = ProtocolVersion(binary.BigEndian.Uint16(body))
	}
	if body, ok := findExtension(exts, ExtensionKeyShare); ok {
		ks, err := decodeSingleKeyShare(body)
		if err != nil {
			return nil, err
		}
		m.KeyShare = &ks
	}
	if body, ok := findExtension(exts, ExtensionALPN); ok {
		list, _, ok := takeUint16Vec(body)
		if ok {
			if proto, _, ok := takeUint8Vec(list); ok {
				m.ALPNProtocol = string(proto)
			}
		}
	}
	if _, ok := findExtension(exts, ExtensionSessionTicket); ok {
		m.TicketSupported = true
	}
	return m, nil
}

// EncryptedExtensionsBody carries the TLS 1.3 extensions that move
// after the key schedule switches to handshake traffic keys (RFC 8446
// §4.3.1): here, just ALPN.
type EncryptedExtensionsBody struct {
	ALPNProtocol string
}

func (m *EncryptedExtensionsBody) Encode() []byte {
	var exts []Extension
	if m.ALPNProtocol != "" {
		al := putUint8Vec(nil, []byte(m.ALPNProtocol))
		exts = append(exts, Extension{Type: ExtensionALPN, Body: putUint16Vec(nil, al)})
	}
	return encodeExtensions(exts)
}

func decodeEncryptedExtensions(b []byte) (*EncryptedExtensionsBody, *Error) {
	m := &EncryptedExtensionsBody{}
	if len(b) == 0 {
		return m, nil
	}
	exts, err := decodeExtensions(b)
	if err != nil {
		return nil, err
	}
	if body, ok := findExtension(exts, ExtensionALPN); ok {
		list, _, ok := takeUint16Vec(body)
		if ok {
			if proto, _, ok := takeUint8Vec(list); ok {
				m.ALPNProtocol = string(proto)
			}
		}
	}
	return m, nil
}

// CertificateBody carries a certificate chain, end-entity first.
// TLS 1.3 attaches a (possibly empty) per-certificate extensions block
// (RFC 8446 §4.4.2) that is never populated or inspected here.
type CertificateBody struct {
	RequestContext []byte // TLS 1.3 only; empty outside certificate_request flows
	Chain          []Certificate
}

func (m *CertificateBody) Encode(isTLS13 bool) []byte {
	var out []byte
	if isTLS13 {
		out = putUint8Vec(out, m.RequestContext)
	}
	var list []byte
	for _, c := range m.Chain {
		list = append(list, put24(len(c.DER))...)
		list = append(list, c.DER...)
		if isTLS13 {
			list = append(list, 0, 0) // empty extensions vector
		}
	}
	out = append(out, put24(len(list))...)
	out = append(out, list...)
	return out
}

func put24(n int) []byte {
	return []byte{byte(n >> 16), byte(n >> 8), byte(n)}
}

func take24(b []byte) (int, bool) {
	if len(b) < 3 {
		return 0, false
	}
	return int(b[0])<<16 | int(b[1])<<8 | int(b[2]), true
}

func decodeCertificate(b []byte, isTLS13 bool) (*CertificateBody, *Error) {
	m := &CertificateBody{}
	if isTLS13 {
		ctx, rest, ok := takeUint8Vec(b)
		if !ok {
			return nil, errCorruptPayload("truncated certificate request_context")
		}
		m.RequestContext = ctx
		b = rest
	}
	listLen, ok := take24(b)
	if !ok {
		return nil, errCorruptPayload("truncated certificate list length")
	}
	b = b[3:]
	if len(b) < listLen {
		return nil, errCorruptPayload("truncated certificate list")
	}
	list := b[:listLen]
	for len(list) > 0 {
		certLen, ok := take24(list)
		if !ok {
			return nil, errCorruptPayload("truncated certificate entry length")
		}
		list = list[3:]
		if len(list) < certLen {
			return nil, errCorruptPayload("truncated certificate entry")
		}
		der := make([]byte, certLen)
		copy(der, list[:certLen])
		m.Chain = append(m.Chain, Certificate{DER: der})
		list = list[certLen:]
		if isTLS13 {
			if len(list) < 2 {
				return nil, errCorruptPayload("truncated certificate entry extensions")
			}
			extLen := int(binary.BigEndian.Uint16(list))
			list = list[2:]
			if len(list) < extLen {
				return nil, errCorruptPayload("truncated certificate entry extensions body")
			}
			list = list[extLen:]
		}
	}
	return m, nil
}

// CertificateVerifyBody carries the handshake signature over the
// running transcript (RFC 5246 §7.4.8 / RFC 8446 §4.4.3).
type CertificateVerifyBody struct {
	Scheme    SignatureScheme
	Signature []byte
}

func (m *CertificateVerifyBody) Encode() []byte {
	out := []byte{byte(m.Scheme >> 8), byte(m.Scheme)}
	return putUint16Vec(out, m.Signature)
}

func decodeCertificateVerify(b []byte) (*CertificateVerifyBody, *Error) {
	if len(b) < 2 {
		return nil, errCorruptPayload("truncated certificate_verify")
	}
	scheme := SignatureScheme(binary.BigEndian.Uint16(b))
	sig, _, ok := takeUint16Vec(b[2:])
	if !ok {
		return nil, errCorruptPayload("truncated certificate_verify signature")
	}
	return &CertificateVerifyBody{Scheme: scheme, Signature: sig}, nil
}

// FinishedBody carries verify_data (RFC 5246 §7.4.9 / RFC 8446 §4.4.4).
type FinishedBody struct {
	VerifyData []byte
}

func (m *FinishedBody) Encode() []byte { return m.VerifyData }

func decodeFinished(b []byte) *FinishedBody {
	return &FinishedBody{VerifyData: append([]byte(nil), b...)}
}

// NewSessionTicketBody carries a TLS 1.3 resumption ticket (RFC 8446
// §4.6.1), simplified to the fields needed to round-trip a PSK
// through a SessionStore; ticket lifetime enforcement and obfuscated
// age accounting belong to the store's consumer.
type NewSessionTicketBody struct {
	LifetimeSeconds uint32
	AgeAdd          uint32
	Nonce           []byte
	Ticket          []byte
}

func (m *NewSessionTicketBody) Encode() []byte {
	out := make([]byte, 0, 8+len(m.Nonce)+len(m.Ticket)+4)
	out = append(out, byte(m.LifetimeSeconds>>24), byte(m.LifetimeSeconds>>16), byte(m.LifetimeSeconds>>8), byte(m.LifetimeSeconds))
	out = append(out, byte(m.AgeAdd>>24), byte(m.AgeAdd>>16), byte(m.AgeAdd>>8), byte(m.AgeAdd))
	out = putUint8Vec(out, m.Nonce)
	out = putUint16Vec(out, m.Ticket)
	out = append(out, 0, 0) // empty extensions vector
	return out
}

func decodeNewSessionTicket(b []byte) (*NewSessionTicketBody, *Error) {
	if len(b) < 8 {
		return nil, errCorruptPayload("truncated new_session_ticket")
	}
	m := &NewSessionTicketBody{
		LifetimeSeconds: binary.BigEndian.Uint32(b[0:4]),
		AgeAdd:          binary.BigEndian.Uint32(b[4:8]),
	}
	b = b[8:]
	nonce, rest, ok := takeUint8Vec(b)
	if !ok {
		return nil, errCorruptPayload("truncated new_session_ticket nonce")
	}
	m.Nonce = nonce
	b = rest
	ticket, _, ok := takeUint16Vec(b)
	if !ok {
		return nil, errCorruptPayload("truncated new_session_ticket ticket")
	}
	m.Ticket = ticket
	return m, nil
}

// SessionTicket12Body is the TLS 1.2 NewSessionTicket message (RFC
// 5077 §3.3): a lifetime hint and the opaque ticket the client echoes
// on its next ClientHello.
type SessionTicket12Body struct {
	LifetimeHintSeconds uint32
	Ticket              []byte
}

func (m *SessionTicket12Body) Encode() []byte {
	out := make([]byte, 0, 4+2+len(m.Ticket))
	out = append(out, byte(m.LifetimeHintSeconds>>24), byte(m.LifetimeHintSeconds>>16), byte(m.LifetimeHintSeconds>>8), byte(m.LifetimeHintSeconds))
	return putUint16Vec(out, m.Ticket)
}

func decodeSessionTicket12(b []byte) (*SessionTicket12Body, *Error) {
	if len(b) < 4 {
		return nil, errCorruptPayload("truncated new_session_ticket lifetime")
	}
	m := &SessionTicket12Body{LifetimeHintSeconds: binary.BigEndian.Uint32(b[0:4])}
	ticket, _, ok := takeUint16Vec(b[4:])
	if !ok {
		return nil, errCorruptPayload("truncated new_session_ticket ticket")
	}
	m.Ticket = ticket
	return m, nil
}

// KeyUpdateBody signals a traffic-secret ratchet (RFC 8446 §4.6.3).
type KeyUpdateBody struct {
	RequestUpdate bool
}

func (m *KeyUpdateBody) Encode() []byte {
	if m.RequestUpdate {
		return []byte{1}
	}
	return []byte{0}
}

func decodeKeyUpdate(b []byte) (*KeyUpdateBody, *Error) {
	if len(b) != 1 {
		return nil, errCorruptPayload("malformed key_update")
	}
	return &KeyUpdateBody{RequestUpdate: b[0] != 0}, nil
}

// ServerKeyExchangeBody carries the TLS 1.2 ECDHE parameters and the
// signature over them (RFC 5246 §7.4.3, RFC 4492 §5.4).
type ServerKeyExchangeBody struct {
	Group     NamedGroup
	PublicKey []byte
	Scheme    SignatureScheme
	Signature []byte
}

func (m *ServerKeyExchangeBody) Encode() []byte {
	var out []byte
	out = append(out, 3 /* named_curve */, byte(m.Group>>8), byte(m.Group))
	out = putUint8Vec(out, m.PublicKey)
	out = append(out, byte(m.Scheme>>8), byte(m.Scheme))
	out = putUint16Vec(out, m.Signature)
	return out
}

func decodeServerKeyExchange(b []byte) (*ServerKeyExchangeBody, *Error) {
	if len(b) < 3 {
		return nil, errCorruptPayload("truncated server_key_exchange curve params")
	}
	group := NamedGroup(binary.BigEndian.Uint16(b[1:3]))
	b = b[3:]
	pub, rest, ok := takeUint8Vec(b)
	if !ok {
		return nil, errCorruptPayload("truncated server_key_exchange public key")
	}
	b = rest
	if len(b) < 2 {
		return nil, errCorruptPayload("truncated server_key_exchange signature header")
	}
	scheme := SignatureScheme(binary.BigEndian.Uint16(b))
	sig, _, ok := takeUint16Vec(b[2:])
	if !ok {
		return nil, errCorruptPayload("truncated server_key_exchange signature")
	}
	return &ServerKeyExchangeBody{Group: group, PublicKey: pub, Scheme: scheme, Signature: sig}, nil
}

// ClientKeyExchangeBody carries the TLS 1.2 client's ECDHE public key
// (RFC 4492 §5.7).
type ClientKeyExchangeBody struct {
	PublicKey []byte
}

func (m *ClientKeyExchangeBody) Encode() []byte {
	return putUint8Vec(nil, m.PublicKey)
}

func decodeClientKeyExchange(b []byte) (*ClientKeyExchangeBody, *Error) {
	pub, _, ok := takeUint8Vec(b)
	if !ok {
		return nil, errCorruptPayload("truncated client_key_exchange")
	}
	return &ClientKeyExchangeBody{PublicKey: pub}, nil
}
