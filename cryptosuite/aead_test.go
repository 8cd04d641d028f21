package cryptosuite

import (
	"bytes"
	"testing"

	"github.com/go-tlscore/tlscore"
)

func sealOpenRoundTrip(t *testing.T, factory tlscore.AEADFactory, keyLen int) {
	t.Helper()
	key := bytes.Repeat([]byte{0x42}, keyLen)
	aead, err := factory(key)
	if err != nil {
		t.Fatalf("factory(%d-byte key): %v", keyLen, err)
	}
	nonce := bytes.Repeat([]byte{0x24}, aead.NonceSize())
	plaintext := []byte("attack at dawn")
	aad := []byte{23, 3, 3, 0, 42}

	sealed := aead.Seal(nil, nonce, plaintext, aad)
	if len(sealed) != len(plaintext)+aead.Overhead() {
		t.Fatalf("sealed length: got %d, want %d", len(sealed), len(plaintext)+aead.Overhead())
	}
	opened, err := aead.Open(nil, nonce, sealed, aad)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Fatalf("round trip mismatch: got %q", opened)
	}

	tampered := append([]byte(nil), sealed...)
	tampered[0] ^= 0x01
	if _, err := aead.Open(nil, nonce, tampered, aad); err == nil {
		t.Fatalf("tampered ciphertext must not open")
	}
	if _, err := aead.Open(nil, nonce, sealed, []byte{0}); err == nil {
		t.Fatalf("mismatched additional data must not open")
	}
}

func TestAESGCMRoundTrip(t *testing.T) {
	for _, keyLen := range []int{16, 32} {
		sealOpenRoundTrip(t, AESGCM(), keyLen)
	}
}

func TestAESGCMRejectsBadKeyLength(t *testing.T) {
	if _, err := AESGCM()(bytes.Repeat([]byte{1}, 20)); err == nil {
		t.Fatalf("a 20-byte AES key must be rejected")
	}
}

func TestChaCha20Poly1305RoundTrip(t *testing.T) {
	sealOpenRoundTrip(t, ChaCha20Poly1305(), 32)
}

func TestChaCha20Poly1305RejectsBadKeyLength(t *testing.T) {
	if _, err := ChaCha20Poly1305()(bytes.Repeat([]byte{1}, 16)); err == nil {
		t.Fatalf("a 16-byte ChaCha20-Poly1305 key must be rejected")
	}
}

func TestChaCha20Poly1305DistinctNoncesDistinctCiphertexts(t *testing.T) {
	aead, err := ChaCha20Poly1305()(bytes.Repeat([]byte{0x11}, 32))
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	plaintext := []byte("same plaintext")
	n1 := bytes.Repeat([]byte{0}, aead.NonceSize())
	n2 := append(bytes.Repeat([]byte{0}, aead.NonceSize()-1), 1)
	if bytes.Equal(aead.Seal(nil, n1, plaintext, nil), aead.Seal(nil, n2, plaintext, nil)) {
		t.Fatalf("different nonces must yield different ciphertexts")
	}
}
