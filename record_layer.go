package tlscore

import (
	"crypto/cipher"
	"encoding/binary"

	"github.com/go-tlscore/tlscore/tlslog"
)

// This file is the record layer: AEAD protection of individual TLS
// records, with one cipherState (AEAD handle, fixed IV, 64-bit
// sequence counter) per direction, and the two wire nonce
// constructions TLS uses -- the RFC 5288 explicit nonce for TLS 1.2
// GCM, and the RFC 8446 §5.3 IV-XOR-sequence form for TLS 1.3 and
// TLS 1.2 ChaCha20-Poly1305.

const (
	maxPlaintextLen  = 1 << 14         // RFC 8446 §5.1
	maxCiphertextLen = (1 << 14) + 256 // RFC 8446 §5.2
	seq64ExhaustedAt = ^uint64(0) - (1 << 16)
)

// PlainRecord is a decrypted (or never-encrypted) record ready for the
// deframer/joiner or fragmenter.
type PlainRecord struct {
	ContentType ContentType
	Version     ProtocolVersion
	Payload     []byte
}

// OpaqueRecord is a record as it appears (or will appear) on the wire:
// header fields plus possibly-encrypted payload.
type OpaqueRecord struct {
	ContentType ContentType
	Version     ProtocolVersion
	Payload     []byte
}

type nonceMode int

const (
	// nonceXOR is RFC 8446 §5.3: nonce = fixed_iv XOR big-endian(seq),
	// no explicit nonce on the wire. Used by TLS 1.3 and by TLS 1.2
	// ChaCha20-Poly1305 (RFC 7905).
	nonceXOR nonceMode = iota
	// nonceExplicit is RFC 5288's GCM construction: nonce = fixed_iv ||
	// explicit_nonce, where explicit_nonce is the sequence number
	// written in the clear as a prefix to the ciphertext.
	nonceExplicit
)

// cipherState is one direction's keying state: the AEAD handle, the
// fixed IV the nonce is derived from, and the 64-bit sequence counter
// that must never repeat for a given key.
type cipherState struct {
	aead             cipher.AEAD
	iv               []byte
	explicitNonceLen int
	mode             nonceMode
	seq              uint64
	isTLS13          bool
}

func (c *cipherState) nonce(seq uint64) []byte {
	switch c.mode {
	case nonceExplicit:
		nonce := make([]byte, 0, len(c.iv)+8)
		nonce = append(nonce, c.iv...)
		var seqBytes [8]byte
		binary.BigEndian.PutUint64(seqBytes[:], seq)
		return append(nonce, seqBytes[:]...)
	default: // nonceXOR
		nonce := make([]byte, len(c.iv))
		copy(nonce, c.iv)
		var seqBytes [8]byte
		binary.BigEndian.PutUint64(seqBytes[:], seq)
		offset := len(nonce) - 8
		for i := 0; i < 8; i++ {
			nonce[offset+i] ^= seqBytes[i]
		}
		return nonce
	}
}

// wantsClose reports whether seq is close enough to wrapping that the
// connection should start winding down.
func (c *cipherState) wantsClose() bool {
	return c.seq >= seq64ExhaustedAt
}

// exhausted reports whether incrementing seq would wrap it. At this
// point the record layer must refuse to produce further ciphertext;
// in practice close_notify goes out long before a counter gets here.
func (c *cipherState) exhausted() bool {
	return c.seq == ^uint64(0)
}

// RecordLayer holds the independent encrypt and decrypt directions of
// a connection. There is no embedded mutex: a single connection's
// operations are always serialized by its caller.
type RecordLayer struct {
	encrypt *cipherState
	decrypt *cipherState

	// decryptEpoch counts how many times a decrypter has been
	// installed. The handshake joiner uses this to detect a key
	// change that would straddle a partially-buffered fragment.
	decryptEpoch int
}

// DecryptEpoch returns the current decrypt key epoch: 0 before any
// decrypter has been installed, incrementing by one on every
// PrepareDecrypter call.
func (r *RecordLayer) DecryptEpoch() int { return r.decryptEpoch }

// NewRecordLayer returns a RecordLayer with both directions unkeyed
// (plaintext), matching the initial state of a fresh connection before
// any handshake secret has been installed.
func NewRecordLayer() *RecordLayer {
	return &RecordLayer{}
}

// IsEncrypting reports whether an encrypter is currently installed.
func (r *RecordLayer) IsEncrypting() bool { return r.encrypt != nil && r.encrypt.aead != nil }

// IsDecrypting reports whether a decrypter is currently installed.
func (r *RecordLayer) IsDecrypting() bool { return r.decrypt != nil && r.decrypt.aead != nil }

// PrepareEncrypter installs aead as the outgoing direction's cipher.
// The sequence number resets to zero.
func (r *RecordLayer) PrepareEncrypter(aead cipher.AEAD, iv []byte, explicitNonceLen int, mode nonceMode, isTLS13 bool) {
	r.encrypt = &cipherState{aead: aead, iv: iv, explicitNonceLen: explicitNonceLen, mode: mode, isTLS13: isTLS13}
	tlslog.Logf(tlslog.Crypto, "prepared encrypter (tls13=%v explicit_nonce_len=%d)", isTLS13, explicitNonceLen)
}

// PrepareDecrypter installs aead as the incoming direction's cipher.
// The sequence number resets to zero.
func (r *RecordLayer) PrepareDecrypter(aead cipher.AEAD, iv []byte, explicitNonceLen int, mode nonceMode, isTLS13 bool) {
	r.decrypt = &cipherState{aead: aead, iv: iv, explicitNonceLen: explicitNonceLen, mode: mode, isTLS13: isTLS13}
	r.decryptEpoch++
	tlslog.Logf(tlslog.Crypto, "prepared decrypter (tls13=%v explicit_nonce_len=%d epoch=%d)", isTLS13, explicitNonceLen, r.decryptEpoch)
}

// WantsCloseBeforeEncrypt reports whether the outgoing sequence number
// is close enough to exhaustion that close_notify should be sent
// before the next write.
func (r *RecordLayer) WantsCloseBeforeEncrypt() bool {
	return r.encrypt != nil && r.encrypt.wantsClose()
}

// WantsCloseBeforeDecrypt mirrors WantsCloseBeforeEncrypt for the
// incoming direction.
func (r *RecordLayer) WantsCloseBeforeDecrypt() bool {
	return r.decrypt != nil && r.decrypt.wantsClose()
}

// EncryptExhausted reports whether the outgoing sequence number has
// hit its hard limit: the caller must drop the record rather than
// emit it.
func (r *RecordLayer) EncryptExhausted() bool {
	return r.encrypt != nil && r.encrypt.exhausted()
}

func tls13AAD(ciphertextLen int) []byte {
	// RFC 8446 §5.2: additional_data = opaque_type(23) || legacy_record_version(0x0303) || length.
	return []byte{
		byte(ContentTypeApplicationData),
		byte(VersionTLS12 >> 8), byte(VersionTLS12 & 0xff),
		byte(ciphertextLen >> 8), byte(ciphertextLen),
	}
}

func tls12AAD(seq uint64, ct ContentType, version ProtocolVersion, payloadLen int) []byte {
	// RFC 5246 §6.2.3.3: seq_num || TLSCompressed.type || .version || .length
	aad := make([]byte, 13)
	binary.BigEndian.PutUint64(aad[0:8], seq)
	aad[8] = byte(ct)
	binary.BigEndian.PutUint16(aad[9:11], uint16(version))
	binary.BigEndian.PutUint16(aad[11:13], uint16(payloadLen))
	return aad
}

// EncryptOutgoing seals plain into an OpaqueRecord, bumping the
// outgoing sequence number by exactly one. ok is false only when the
// sequence number has been exhausted, in which case the caller MUST
// drop the record rather than treat this as an error.
func (r *RecordLayer) EncryptOutgoing(plain PlainRecord) (rec OpaqueRecord, ok bool) {
	c := r.encrypt
	if c == nil || c.aead == nil {
		return OpaqueRecord{ContentType: plain.ContentType, Version: plain.Version, Payload: plain.Payload}, true
	}
	if c.exhausted() {
		return OpaqueRecord{}, false
	}
	seq := c.seq
	c.seq++

	if c.isTLS13 {
		inner := make([]byte, 0, len(plain.Payload)+1)
		inner = append(inner, plain.Payload...)
		inner = append(inner, byte(plain.ContentType))
		ciphertextLen := len(inner) + c.aead.Overhead()
		aad := tls13AAD(ciphertextLen)
		sealed := c.aead.Seal(nil, c.nonce(seq), inner, aad)
		tlslog.Logf(tlslog.Record, "encrypt seq=%d tls13 ct=%s len=%d", seq, plain.ContentType, len(sealed))
		return OpaqueRecord{ContentType: ContentTypeApplicationData, Version: VersionTLS12, Payload: sealed}, true
	}

	aad := tls12AAD(seq, plain.ContentType, plain.Version, len(plain.Payload))
	sealed := c.aead.Seal(nil, c.nonce(seq), plain.Payload, aad)
	var out []byte
	if c.mode == nonceExplicit {
		out = make([]byte, 0, 8+len(sealed))
		var seqBytes [8]byte
		binary.BigEndian.PutUint64(seqBytes[:], seq)
		out = append(out, seqBytes[:]...)
		out = append(out, sealed...)
	} else {
		out = sealed
	}
	tlslog.Logf(tlslog.Record, "encrypt seq=%d tls12 ct=%s len=%d", seq, plain.ContentType, len(out))
	return OpaqueRecord{ContentType: plain.ContentType, Version: plain.Version, Payload: out}, true
}

// DecryptIncoming opens rec into a PlainRecord, bumping the incoming
// sequence number by exactly one on success. Before any decrypter is
// installed it passes the record through unchanged.
func (r *RecordLayer) DecryptIncoming(rec OpaqueRecord) (PlainRecord, *Error) {
	c := r.decrypt
	if c == nil || c.aead == nil {
		return PlainRecord{ContentType: rec.ContentType, Version: rec.Version, Payload: rec.Payload}, nil
	}

	limit := maxCiphertextLen
	if len(rec.Payload) > limit {
		return PlainRecord{}, errOversizedRecord()
	}

	seq := c.seq
	payload := rec.Payload
	nonce := c.nonce(seq)
	if c.mode == nonceExplicit {
		if len(payload) < 8 {
			return PlainRecord{}, errDecrypt("record shorter than explicit nonce")
		}
		// RFC 5288 §3: the peer's explicit nonce travels in the clear
		// ahead of the ciphertext; the local counter is only used for
		// the additional data.
		nonce = make([]byte, 0, len(c.iv)+8)
		nonce = append(nonce, c.iv...)
		nonce = append(nonce, payload[:8]...)
		payload = payload[8:]
	}

	if c.isTLS13 {
		aad := tls13AAD(len(rec.Payload))
		opened, err := c.aead.Open(nil, nonce, payload, aad)
		if err != nil {
			tlslog.Logf(tlslog.Record, "decrypt seq=%d tls13 FAILED", seq)
			return PlainRecord{}, errDecrypt("AEAD open failed")
		}
		c.seq++
		// Strip trailing zero padding, then the inner content type
		// (RFC 8446 §5.2). Zero-length inner plaintext of content type
		// Handshake/Application is permitted; a fully-empty inner
		// plaintext (no content-type byte at all) is malformed.
		i := len(opened)
		for i > 0 && opened[i-1] == 0 {
			i--
		}
		if i == 0 {
			return PlainRecord{}, errCorruptPayload("tls1.3 record missing inner content type")
		}
		ct := ContentType(opened[i-1])
		tlslog.Logf(tlslog.Record, "decrypt seq=%d tls13 ct=%s len=%d", seq, ct, i-1)
		return PlainRecord{ContentType: ct, Version: VersionTLS13, Payload: opened[:i-1]}, nil
	}

	aad := tls12AAD(seq, rec.ContentType, rec.Version, len(payload)-c.aead.Overhead())
	opened, err := c.aead.Open(nil, nonce, payload, aad)
	if err != nil {
		tlslog.Logf(tlslog.Record, "decrypt seq=%d tls12 FAILED", seq)
		return PlainRecord{}, errDecrypt("AEAD open failed")
	}
	c.seq++
	tlslog.Logf(tlslog.Record, "decrypt seq=%d tls12 ct=%s len=%d", seq, rec.ContentType, len(opened))
	return PlainRecord{ContentType: rec.ContentType, Version: rec.Version, Payload: opened}, nil
}
