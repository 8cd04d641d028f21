// Package cryptosuite is the default crypto provider for tlscore:
// concrete AEADFactory and KXGroup implementations, plus ready-made
// suite/group tables a Config can be built from. The tlscore package
// never imports this one -- callers wire it in explicitly, so an
// alternative provider can replace it wholesale.
package cryptosuite

import (
	"crypto/aes"
	"crypto/cipher"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/go-tlscore/tlscore"
)

// AESGCM returns an AEADFactory for AES-GCM with the given key size
// (16 or 32 bytes), built on crypto/aes and crypto/cipher.
func AESGCM() tlscore.AEADFactory {
	return func(key []byte) (cipher.AEAD, error) {
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	}
}

// ChaCha20Poly1305 returns an AEADFactory built on
// golang.org/x/crypto/chacha20poly1305 (RFC 7905/8446).
func ChaCha20Poly1305() tlscore.AEADFactory {
	return func(key []byte) (cipher.AEAD, error) {
		return chacha20poly1305.New(key)
	}
}
