package tlscore

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"testing"
)

func newGCM(t *testing.T, key []byte) cipher.AEAD {
	t.Helper()
	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatalf("aes.NewCipher: %v", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		t.Fatalf("cipher.NewGCM: %v", err)
	}
	return aead
}

func TestRecordLayerTLS13RoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x11}, 16)
	iv := bytes.Repeat([]byte{0x22}, 12)

	send := NewRecordLayer()
	recv := NewRecordLayer()
	send.PrepareEncrypter(newGCM(t, key), iv, 0, nonceXOR, true)
	recv.PrepareDecrypter(newGCM(t, key), iv, 0, nonceXOR, true)

	plain := PlainRecord{ContentType: ContentTypeHandshake, Version: VersionTLS12, Payload: []byte("client hello bytes")}
	rec, ok := send.EncryptOutgoing(plain)
	if !ok {
		t.Fatalf("EncryptOutgoing reported exhaustion unexpectedly")
	}
	if rec.ContentType != ContentTypeApplicationData {
		t.Fatalf("tls1.3 outer record must be disguised as application_data, got %v", rec.ContentType)
	}

	got, err := recv.DecryptIncoming(rec)
	if err != nil {
		t.Fatalf("DecryptIncoming: %v", err)
	}
	if got.ContentType != ContentTypeHandshake || !bytes.Equal(got.Payload, plain.Payload) {
		t.Fatalf("round trip mismatch: got %+v", got)
	}
}

func TestRecordLayerTLS13SequenceNumbersAdvance(t *testing.T) {
	key := bytes.Repeat([]byte{0x33}, 16)
	iv := bytes.Repeat([]byte{0x44}, 12)

	send := NewRecordLayer()
	send.PrepareEncrypter(newGCM(t, key), iv, 0, nonceXOR, true)

	plain := PlainRecord{ContentType: ContentTypeApplicationData, Version: VersionTLS12, Payload: []byte("same plaintext")}
	first, ok := send.EncryptOutgoing(plain)
	if !ok {
		t.Fatalf("first EncryptOutgoing failed")
	}
	second, ok := send.EncryptOutgoing(plain)
	if !ok {
		t.Fatalf("second EncryptOutgoing failed")
	}
	if bytes.Equal(first.Payload, second.Payload) {
		t.Fatalf("two records sealed from the same plaintext must differ once the sequence number advances")
	}
}

func TestRecordLayerTLS12ExplicitNonceGCMRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x55}, 16)
	fixedIV := bytes.Repeat([]byte{0x66}, 4)

	send := NewRecordLayer()
	recv := NewRecordLayer()
	send.PrepareEncrypter(newGCM(t, key), fixedIV, 8, nonceExplicit, false)
	recv.PrepareDecrypter(newGCM(t, key), fixedIV, 8, nonceExplicit, false)

	plain := PlainRecord{ContentType: ContentTypeApplicationData, Version: VersionTLS12, Payload: []byte("tls1.2 app data")}
	rec, ok := send.EncryptOutgoing(plain)
	if !ok {
		t.Fatalf("EncryptOutgoing failed")
	}
	if len(rec.Payload) < 8 {
		t.Fatalf("tls1.2 explicit-nonce record must carry an 8-byte explicit nonce prefix")
	}

	got, err := recv.DecryptIncoming(rec)
	if err != nil {
		t.Fatalf("DecryptIncoming: %v", err)
	}
	if !bytes.Equal(got.Payload, plain.Payload) {
		t.Fatalf("round trip mismatch: got %q want %q", got.Payload, plain.Payload)
	}
}

func TestRecordLayerDecryptFailsOnTamperedCiphertext(t *testing.T) {
	key := bytes.Repeat([]byte{0x77}, 16)
	iv := bytes.Repeat([]byte{0x88}, 12)

	send := NewRecordLayer()
	recv := NewRecordLayer()
	send.PrepareEncrypter(newGCM(t, key), iv, 0, nonceXOR, true)
	recv.PrepareDecrypter(newGCM(t, key), iv, 0, nonceXOR, true)

	plain := PlainRecord{ContentType: ContentTypeHandshake, Version: VersionTLS12, Payload: []byte("hello")}
	rec, ok := send.EncryptOutgoing(plain)
	if !ok {
		t.Fatalf("EncryptOutgoing failed")
	}
	tampered := append([]byte(nil), rec.Payload...)
	tampered[0] ^= 0xff
	rec.Payload = tampered

	if _, err := recv.DecryptIncoming(rec); err == nil {
		t.Fatalf("expected decryption of tampered ciphertext to fail")
	}
}

func TestRecordLayerPassthroughBeforeKeysInstalled(t *testing.T) {
	rl := NewRecordLayer()
	plain := PlainRecord{ContentType: ContentTypeHandshake, Version: VersionTLS12, Payload: []byte("cleartext")}
	rec, ok := rl.EncryptOutgoing(plain)
	if !ok || !bytes.Equal(rec.Payload, plain.Payload) {
		t.Fatalf("expected a pre-handshake record to pass through unencrypted")
	}
	got, err := rl.DecryptIncoming(OpaqueRecord{ContentType: rec.ContentType, Version: rec.Version, Payload: rec.Payload})
	if err != nil || !bytes.Equal(got.Payload, plain.Payload) {
		t.Fatalf("expected a pre-handshake record to decrypt as a passthrough, got %+v err=%v", got, err)
	}
}

func TestRecordLayerRefusesToEncryptAtSequenceExhaustion(t *testing.T) {
	key := bytes.Repeat([]byte{0xbb}, 16)
	iv := bytes.Repeat([]byte{0xcc}, 12)

	rl := NewRecordLayer()
	rl.PrepareEncrypter(newGCM(t, key), iv, 0, nonceXOR, true)
	rl.encrypt.seq = seq64ExhaustedAt
	if !rl.WantsCloseBeforeEncrypt() {
		t.Fatalf("expected close pressure near the end of the sequence space")
	}

	rl.encrypt.seq = ^uint64(0)
	if !rl.EncryptExhausted() {
		t.Fatalf("expected EncryptExhausted at the last sequence number")
	}
	plain := PlainRecord{ContentType: ContentTypeApplicationData, Version: VersionTLS12, Payload: []byte("x")}
	if _, ok := rl.EncryptOutgoing(plain); ok {
		t.Fatalf("a record must not be produced once the sequence number would wrap")
	}
}

func TestRecordLayerRejectsOversizedCiphertext(t *testing.T) {
	key := bytes.Repeat([]byte{0x99}, 16)
	iv := bytes.Repeat([]byte{0xaa}, 12)

	recv := NewRecordLayer()
	recv.PrepareDecrypter(newGCM(t, key), iv, 0, nonceXOR, true)

	oversized := OpaqueRecord{ContentType: ContentTypeApplicationData, Version: VersionTLS12, Payload: bytes.Repeat([]byte{1}, maxCiphertextLen+1)}
	_, err := recv.DecryptIncoming(oversized)
	if err == nil || err.Kind != PeerSentOversizedRecord {
		t.Fatalf("expected PeerSentOversizedRecord, got %v", err)
	}
}
