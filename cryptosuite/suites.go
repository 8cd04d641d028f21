package cryptosuite

import (
	"crypto"

	"github.com/go-tlscore/tlscore"
)

// DefaultTls13Suites returns the three suites RFC 8446 §B.4 registers,
// most preferred first.
func DefaultTls13Suites() []*tlscore.Tls13Suite {
	return []*tlscore.Tls13Suite{
		tlscore.NewTls13Suite(tlscore.TLS_AES_128_GCM_SHA256, tlscore.BulkAES128GCM, crypto.SHA256, AESGCM()),
		tlscore.NewTls13Suite(tlscore.TLS_CHACHA20_POLY1305_SHA256, tlscore.BulkChaCha20Poly1305, crypto.SHA256, ChaCha20Poly1305()),
		tlscore.NewTls13Suite(tlscore.TLS_AES_256_GCM_SHA384, tlscore.BulkAES256GCM, crypto.SHA384, AESGCM()),
	}
}

// DefaultTls12Suites returns the ECDHE/AEAD suite set, most
// preferred first: ECDSA suites ahead of their RSA equivalents,
// AES-GCM ahead of ChaCha20-Poly1305.
func DefaultTls12Suites() []*tlscore.Tls12Suite {
	const (
		gcmFixedIVLen       = 4
		gcmExplicitNonceLen = 8
		chachaFixedIVLen    = 12
		chachaExplicitLen   = 0
	)
	return []*tlscore.Tls12Suite{
		tlscore.NewTls12Suite(tlscore.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256, tlscore.BulkAES128GCM, crypto.SHA256, AESGCM(), gcmFixedIVLen, gcmExplicitNonceLen, true),
		tlscore.NewTls12Suite(tlscore.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256, tlscore.BulkAES128GCM, crypto.SHA256, AESGCM(), gcmFixedIVLen, gcmExplicitNonceLen, false),
		tlscore.NewTls12Suite(tlscore.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384, tlscore.BulkAES256GCM, crypto.SHA384, AESGCM(), gcmFixedIVLen, gcmExplicitNonceLen, true),
		tlscore.NewTls12Suite(tlscore.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384, tlscore.BulkAES256GCM, crypto.SHA384, AESGCM(), gcmFixedIVLen, gcmExplicitNonceLen, false),
		tlscore.NewTls12Suite(tlscore.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256, tlscore.BulkChaCha20Poly1305, crypto.SHA256, ChaCha20Poly1305(), chachaFixedIVLen, chachaExplicitLen, true),
		tlscore.NewTls12Suite(tlscore.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256, tlscore.BulkChaCha20Poly1305, crypto.SHA256, ChaCha20Poly1305(), chachaFixedIVLen, chachaExplicitLen, false),
	}
}
