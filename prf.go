package tlscore

import (
	"crypto"
	"crypto/hmac"

	"golang.org/x/crypto/hkdf"
)

// This file is the PRF / key-schedule glue: deriving the secrets the
// handshake state machine installs into the record layer. The hash is
// selected by the negotiated CipherSuiteCommon.Hash. TLS 1.2's P_hash
// is HMAC chaining per RFC 5246 §5 on crypto/hmac; TLS 1.3's
// Extract/Expand is delegated to golang.org/x/crypto/hkdf.

// pHash implements RFC 5246 §5's P_hash(secret, seed) expansion,
// writing exactly len(out) bytes.
func pHash(hash crypto.Hash, out, secret, seed []byte) {
	h := hmac.New(hash.New, secret)
	h.Write(seed)
	a := h.Sum(nil)

	for len(out) > 0 {
		h.Reset()
		h.Write(a)
		h.Write(seed)
		chunk := h.Sum(nil)

		n := copy(out, chunk)
		out = out[n:]

		h.Reset()
		h.Write(a)
		a = h.Sum(nil)
	}
}

// prf12 implements the TLS 1.2 PRF: PRF(secret, label, seed) = P_hash(secret, label || seed).
func prf12(hash crypto.Hash, out, secret []byte, label string, seed []byte) {
	labeled := make([]byte, 0, len(label)+len(seed))
	labeled = append(labeled, label...)
	labeled = append(labeled, seed...)
	pHash(hash, out, secret, labeled)
}

// masterSecretFromPMS derives a TLS 1.2 master secret from a
// pre-master secret and the connection randoms (RFC 5246 §8.1), or
// (when useEMS is true) the extended-master-secret session hash
// variant from RFC 7627, which binds the master secret to the full
// handshake transcript instead of just the randoms and is immune to
// the triple-handshake attack that motivated it.
func masterSecretFromPMS(hash crypto.Hash, pms []byte, randoms *ConnectionRandoms, useEMS bool, sessionHash []byte) []byte {
	ms := make([]byte, 48)
	if useEMS {
		prf12(hash, ms, pms, "extended master secret", sessionHash)
		return ms
	}
	seed := make([]byte, 0, 64)
	seed = append(seed, randoms.Client[:]...)
	seed = append(seed, randoms.Server[:]...)
	prf12(hash, ms, pms, "master secret", seed)
	return ms
}

// keyBlockFromMasterSecret derives the TLS 1.2 key_block (RFC 5246
// §6.3): client/server MAC keys, bulk keys and fixed IVs, in that
// order; a section is empty when its length (macLen, keyLen or ivLen)
// is 0. The AEAD suites here pass macLen==0 and take both the key and
// the IV sections (GCM a 4-byte salt for its explicit-nonce mode,
// ChaCha20-Poly1305 the full 12-byte IV per RFC 7905).
func keyBlockFromMasterSecret(hash crypto.Hash, masterSecret []byte, randoms *ConnectionRandoms, macLen, keyLen, ivLen int) []byte {
	total := 2*macLen + 2*keyLen + 2*ivLen
	out := make([]byte, total)
	seed := make([]byte, 0, 64)
	seed = append(seed, randoms.Server[:]...)
	seed = append(seed, randoms.Client[:]...)
	prf12(hash, out, masterSecret, "key expansion", seed)
	return out
}

// finishedVerifyData12 computes a TLS 1.2 Finished message's
// verify_data (RFC 5246 §7.4.9): PRF(master_secret, label, Hash(handshake_messages))[0:12].
func finishedVerifyData12(hash crypto.Hash, masterSecret []byte, label string, transcriptHash []byte) []byte {
	out := make([]byte, 12)
	prf12(hash, out, masterSecret, label, transcriptHash)
	return out
}

// --- TLS 1.3 key schedule (RFC 8446 §7.1) ---

// hkdfExtract wraps golang.org/x/crypto/hkdf.Extract. A nil ikm is
// replaced by Hash.length zero bytes (RFC 8446 §7.1's input for an
// Early Secret without PSK and for the Master Secret); a nil salt is
// passed through, which hkdf.Extract treats as Hash.length zero bytes.
func hkdfExtract(hash crypto.Hash, salt, ikm []byte) []byte {
	if ikm == nil {
		ikm = make([]byte, hash.Size())
	}
	return hkdf.Extract(hash.New, ikm, salt)
}

// hkdfExpandLabel implements RFC 8446 §7.1's HkdfExpandLabel, building
// the HkdfLabel structure (length(2) || "tls13 "+label as an 8-bit
// vector || context as an 8-bit vector) and running it through
// HKDF-Expand for length bytes.
func hkdfExpandLabel(hash crypto.Hash, secret []byte, label string, context []byte, length int) []byte {
	fullLabel := "tls13 " + label

	hkdfLabel := make([]byte, 0, 2+1+len(fullLabel)+1+len(context))
	hkdfLabel = append(hkdfLabel, byte(length>>8), byte(length))
	hkdfLabel = append(hkdfLabel, byte(len(fullLabel)))
	hkdfLabel = append(hkdfLabel, fullLabel...)
	hkdfLabel = append(hkdfLabel, byte(len(context)))
	hkdfLabel = append(hkdfLabel, context...)

	out := make([]byte, length)
	r := hkdf.Expand(hash.New, secret, hkdfLabel)
	if _, err := r.Read(out); err != nil {
		panic("tlscore: hkdf.Expand read failed: " + err.Error())
	}
	return out
}

// deriveSecret implements RFC 8446 §7.1's Derive-Secret(Secret,
// Label, Messages): HkdfExpandLabel(Secret, Label, Hash(Messages), Hash.length).
func deriveSecret(hash crypto.Hash, secret []byte, label string, transcriptHash []byte) []byte {
	return hkdfExpandLabel(hash, secret, label, transcriptHash, hash.Size())
}

// KeySchedule13 walks the TLS 1.3 secret chain (RFC 8446 §7.1):
// Early Secret -> Handshake Secret -> Master Secret, alongside the
// traffic secrets derived at each stage.
type KeySchedule13 struct {
	hash    crypto.Hash
	current []byte
}

// NewKeySchedule13 starts the chain at the Early Secret, using psk (or
// an all-zero IKM, when there is no external/resumption PSK) as input
// keying material.
func NewKeySchedule13(hash crypto.Hash, psk []byte) *KeySchedule13 {
	return &KeySchedule13{hash: hash, current: hkdfExtract(hash, nil, psk)}
}

// EarlySecret returns the Early Secret itself, used to derive
// early-data traffic keys and the binder key.
func (ks *KeySchedule13) EarlySecret() []byte { return ks.current }

// AdvanceToHandshake mixes in the (EC)DHE shared secret to produce the
// Handshake Secret, from which handshake traffic secrets are derived.
func (ks *KeySchedule13) AdvanceToHandshake(sharedSecret []byte) {
	salt := deriveSecret(ks.hash, ks.current, "derived", emptyHash(ks.hash))
	ks.current = hkdfExtract(ks.hash, salt, sharedSecret)
}

// AdvanceToMaster mixes in an all-zero IKM to produce the Master
// Secret, from which application traffic secrets are derived.
func (ks *KeySchedule13) AdvanceToMaster() {
	salt := deriveSecret(ks.hash, ks.current, "derived", emptyHash(ks.hash))
	ks.current = hkdfExtract(ks.hash, salt, nil)
}

// ClientHandshakeTrafficSecret derives c hs traffic from the
// Handshake Secret and the transcript hash through ServerHello.
func (ks *KeySchedule13) ClientHandshakeTrafficSecret(transcriptHash []byte) []byte {
	return deriveSecret(ks.hash, ks.current, "c hs traffic", transcriptHash)
}

// ServerHandshakeTrafficSecret derives s hs traffic from the
// Handshake Secret and the transcript hash through ServerHello.
func (ks *KeySchedule13) ServerHandshakeTrafficSecret(transcriptHash []byte) []byte {
	return deriveSecret(ks.hash, ks.current, "s hs traffic", transcriptHash)
}

// ClientApplicationTrafficSecret0 derives c ap traffic 0 from the
// Master Secret and the transcript hash through server Finished.
func (ks *KeySchedule13) ClientApplicationTrafficSecret0(transcriptHash []byte) []byte {
	return deriveSecret(ks.hash, ks.current, "c ap traffic", transcriptHash)
}

// ServerApplicationTrafficSecret0 derives s ap traffic 0 from the
// Master Secret and the transcript hash through server Finished.
func (ks *KeySchedule13) ServerApplicationTrafficSecret0(transcriptHash []byte) []byte {
	return deriveSecret(ks.hash, ks.current, "s ap traffic", transcriptHash)
}

// ExporterMasterSecret derives the exporter_master_secret used by
// ExportKeyingMaterial.
func (ks *KeySchedule13) ExporterMasterSecret(transcriptHash []byte) []byte {
	return deriveSecret(ks.hash, ks.current, "exp master", transcriptHash)
}

// ResumptionMasterSecret derives the resumption_master_secret used to
// mint NewSessionTicket PSKs after the handshake completes.
func (ks *KeySchedule13) ResumptionMasterSecret(transcriptHash []byte) []byte {
	return deriveSecret(ks.hash, ks.current, "res master", transcriptHash)
}

// TrafficKey derives the AEAD key and IV for a traffic secret, per RFC
// 8446 §7.3: [sender]_write_key = HKDF-Expand-Label(Secret, "key", "", key_length),
// [sender]_write_iv = HKDF-Expand-Label(Secret, "iv", "", iv_length).
func (ks *KeySchedule13) TrafficKey(secret []byte, keyLen, ivLen int) (key, iv []byte) {
	key = hkdfExpandLabel(ks.hash, secret, "key", nil, keyLen)
	iv = hkdfExpandLabel(ks.hash, secret, "iv", nil, ivLen)
	return key, iv
}

// NextTrafficSecret implements the Key Update ratchet (RFC 8446 §7.2):
// application_traffic_secret_N+1 = HKDF-Expand-Label(application_traffic_secret_N, "traffic upd", "", Hash.length).
func (ks *KeySchedule13) NextTrafficSecret(secret []byte) []byte {
	return hkdfExpandLabel(ks.hash, secret, "traffic upd", nil, ks.hash.Size())
}

// finishedKey13 derives the HMAC key used to compute and verify a TLS
// 1.3 Finished message (RFC 8446 §4.4.4): HKDF-Expand-Label(BaseKey, "finished", "", Hash.length).
func finishedKey13(hash crypto.Hash, baseSecret []byte) []byte {
	return hkdfExpandLabel(hash, baseSecret, "finished", nil, hash.Size())
}

// finishedVerifyData13 computes a TLS 1.3 Finished message's
// verify_data: HMAC(finished_key, Transcript-Hash(Handshake Context, Certificate*, CertificateVerify*)).
func finishedVerifyData13(hash crypto.Hash, baseSecret []byte, transcriptHash []byte) []byte {
	key := finishedKey13(hash, baseSecret)
	h := hmac.New(hash.New, key)
	h.Write(transcriptHash)
	return h.Sum(nil)
}

// emptyHash returns Hash("") -- the transcript hash of an empty
// message sequence, needed by the "derived" Derive-Secret calls RFC
// 8446 §7.1 interposes between key-schedule stages.
func emptyHash(hash crypto.Hash) []byte {
	h := hash.New()
	return h.Sum(nil)
}
