package tlscore

import (
	"crypto"
	"crypto/subtle"
)

// This file collects the small cryptographic glue functions shared
// by handshake_client.go and handshake_server.go: TLS 1.2 key-block
// slicing (RFC 5246 §6.3), the two handshake signature input formats
// (RFC 4492 §5.4 for ServerKeyExchange, RFC 8446 §4.4.3 for
// CertificateVerify), and a constant-time comparison for
// verify_data.

// masterSecret12 derives the classic (non-extended) TLS 1.2 master
// secret from a premaster secret. RFC 7627 extended_master_secret is
// not negotiated: the ClientHello/ServerHello codec in message.go has
// no slot for it, so Config.ExtendedMasterSecret currently only
// documents intent for a future extension rather than changing
// behavior.
func masterSecret12(hash crypto.Hash, pms []byte, randoms *ConnectionRandoms) []byte {
	return masterSecretFromPMS(hash, pms, randoms, false, nil)
}

// tls12KeyLengths returns the bulk key length and IV length RFC
// 5246/5289/7905 fix per bulk algorithm, matching what suite.go's
// Tls12Suite.FixedIVLen already records for the wire nonce.
func tls12KeyLengths(s *Tls12Suite) (keyLen, ivLen int) {
	switch s.Common.Bulk {
	case BulkAES128GCM:
		return 16, 4
	case BulkAES256GCM:
		return 32, 4
	case BulkChaCha20Poly1305:
		return 32, 12
	default:
		return 0, 0
	}
}

// deriveTls12ClientKeys and deriveTls12ServerKeys slice RFC 5246
// §6.3's key_block into this suite's AEAD suites' client/server
// halves. AEAD suites carry no separate MAC key (macLen=0); GCM's IV
// half is the 4-byte fixed IV from FixedIVLen, ChaCha20-Poly1305's is
// the full 12-byte nonce base (RFC 7905 §2).
func deriveTls12ClientKeys(s *Tls12Suite, randoms *ConnectionRandoms, masterSecret []byte) (key, iv []byte) {
	keyLen, ivLen := tls12KeyLengths(s)
	block := keyBlockFromMasterSecret(s.Common.Hash, masterSecret, randoms, 0, keyLen, ivLen)
	key = block[0:keyLen]
	iv = block[2*keyLen : 2*keyLen+ivLen]
	return key, iv
}

func deriveTls12ServerKeys(s *Tls12Suite, randoms *ConnectionRandoms, masterSecret []byte) (key, iv []byte) {
	keyLen, ivLen := tls12KeyLengths(s)
	block := keyBlockFromMasterSecret(s.Common.Hash, masterSecret, randoms, 0, keyLen, ivLen)
	key = block[keyLen : 2*keyLen]
	iv = block[2*keyLen+ivLen : 2*keyLen+2*ivLen]
	return key, iv
}

// tls13AEADLengths returns the AEAD key/IV lengths RFC 8446 §5.2 and
// RFC 7905 fix per bulk algorithm.
func tls13AEADLengths(s *Tls13Suite) (keyLen, ivLen int) {
	switch s.Common.Bulk {
	case BulkAES128GCM:
		return 16, 12
	case BulkAES256GCM:
		return 32, 12
	case BulkChaCha20Poly1305:
		return 32, 12
	default:
		return 0, 0
	}
}

// tls13SignatureInput builds RFC 8446 §4.4.3's signature content:
// 64 spaces, the context string, a zero byte, then the transcript
// hash. Both CertificateVerify roles ("TLS 1.3, server
// CertificateVerify" / "TLS 1.3, client CertificateVerify") use this.
func tls13SignatureInput(context string, transcriptHash []byte) []byte {
	out := make([]byte, 0, 64+len(context)+1+len(transcriptHash))
	for i := 0; i < 64; i++ {
		out = append(out, 0x20)
	}
	out = append(out, context...)
	out = append(out, 0)
	out = append(out, transcriptHash...)
	return out
}

// tls12ServerKXSignatureInput builds RFC 4492 §5.4's signed_params:
// client_random || server_random || ECParameters || public.
func tls12ServerKXSignatureInput(randoms *ConnectionRandoms, group NamedGroup, serverPub []byte) []byte {
	out := make([]byte, 0, 64+3+1+len(serverPub))
	out = append(out, randoms.Client[:]...)
	out = append(out, randoms.Server[:]...)
	out = append(out, 3, byte(group>>8), byte(group)) // ECCurveType.named_curve
	out = append(out, byte(len(serverPub)))
	out = append(out, serverPub...)
	return out
}

// constantTimeEqual reports whether a and b hold identical bytes,
// without branching on their contents: verify_data comparisons are
// exactly the place a timing side-channel would matter.
func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
