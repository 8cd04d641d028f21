package cryptosuite

import (
	"crypto/ecdh"
	"fmt"

	"golang.org/x/crypto/curve25519"

	"github.com/go-tlscore/tlscore"
)

// x25519Group implements tlscore.KXGroup on top of
// golang.org/x/crypto/curve25519, the construction RFC 7748/8446 name
// for the key_share group 0x001d.
type x25519Group struct{}

// X25519 is the default, and generally preferred, ECDHE group.
var X25519 tlscore.KXGroup = x25519Group{}

func (x25519Group) Name() string          { return "x25519" }
func (x25519Group) ID() tlscore.NamedGroup { return tlscore.GroupX25519 }

func (x25519Group) GenerateKeyShare(rnd tlscore.RandomSource) (priv, pub []byte, err error) {
	priv = make([]byte, curve25519.ScalarSize)
	if _, err = rnd.Read(priv); err != nil {
		return nil, nil, err
	}
	pub, err = curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, nil, err
	}
	return priv, pub, nil
}

func (x25519Group) SharedSecret(priv, peerPublic []byte) ([]byte, error) {
	shared, err := curve25519.X25519(priv, peerPublic)
	if err != nil {
		return nil, err
	}
	// RFC 7748 §6.1 forbids both parties' shared secret from being the
	// all-zero string, the low-order-point degenerate case.
	zero := true
	for _, b := range shared {
		if b != 0 {
			zero = false
			break
		}
	}
	if zero {
		return nil, fmt.Errorf("cryptosuite: x25519 shared secret is the all-zero point")
	}
	return shared, nil
}

// nistGroup implements tlscore.KXGroup over one of crypto/ecdh's
// NIST curves.
type nistGroup struct {
	name string
	id   tlscore.NamedGroup
	c    ecdh.Curve
}

// P256 and P384 are the two NIST curves offered alongside X25519.
var (
	P256 tlscore.KXGroup = nistGroup{"secp256r1", tlscore.GroupP256, ecdh.P256()}
	P384 tlscore.KXGroup = nistGroup{"secp384r1", tlscore.GroupP384, ecdh.P384()}
)

func (g nistGroup) Name() string          { return g.name }
func (g nistGroup) ID() tlscore.NamedGroup { return g.id }

func (g nistGroup) GenerateKeyShare(rnd tlscore.RandomSource) (priv, pub []byte, err error) {
	key, err := g.c.GenerateKey(rnd)
	if err != nil {
		return nil, nil, err
	}
	return key.Bytes(), key.PublicKey().Bytes(), nil
}

func (g nistGroup) SharedSecret(priv, peerPublic []byte) ([]byte, error) {
	key, err := g.c.NewPrivateKey(priv)
	if err != nil {
		return nil, err
	}
	peer, err := g.c.NewPublicKey(peerPublic)
	if err != nil {
		return nil, err
	}
	return key.ECDH(peer)
}

// DefaultKXGroups lists this provider's groups in the order a Config
// should prefer them, most preferred first.
func DefaultKXGroups() []tlscore.KXGroup {
	return []tlscore.KXGroup{X25519, P256, P384}
}
