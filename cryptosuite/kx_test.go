package cryptosuite

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/go-tlscore/tlscore"
)

func TestKXGroupSharedSecretAgreement(t *testing.T) {
	for _, g := range DefaultKXGroups() {
		g := g
		t.Run(g.Name(), func(t *testing.T) {
			aPriv, aPub, err := g.GenerateKeyShare(rand.Reader)
			if err != nil {
				t.Fatalf("GenerateKeyShare (a): %v", err)
			}
			bPriv, bPub, err := g.GenerateKeyShare(rand.Reader)
			if err != nil {
				t.Fatalf("GenerateKeyShare (b): %v", err)
			}
			ab, err := g.SharedSecret(aPriv, bPub)
			if err != nil {
				t.Fatalf("SharedSecret (a,bPub): %v", err)
			}
			ba, err := g.SharedSecret(bPriv, aPub)
			if err != nil {
				t.Fatalf("SharedSecret (b,aPub): %v", err)
			}
			if !bytes.Equal(ab, ba) {
				t.Fatalf("both sides must derive the same shared secret")
			}
			if len(ab) == 0 {
				t.Fatalf("shared secret must be non-empty")
			}
		})
	}
}

func TestKXGroupRegistryIdentities(t *testing.T) {
	want := map[tlscore.NamedGroup]string{
		tlscore.GroupX25519: "x25519",
		tlscore.GroupP256:   "secp256r1",
		tlscore.GroupP384:   "secp384r1",
	}
	groups := DefaultKXGroups()
	if len(groups) != len(want) {
		t.Fatalf("expected %d default groups, got %d", len(want), len(groups))
	}
	if groups[0].ID() != tlscore.GroupX25519 {
		t.Fatalf("x25519 must be the most preferred group")
	}
	for _, g := range groups {
		if want[g.ID()] != g.Name() {
			t.Fatalf("group %v: got name %q, want %q", g.ID(), g.Name(), want[g.ID()])
		}
	}
}

func TestX25519RejectsAllZeroSharedSecret(t *testing.T) {
	priv, _, err := X25519.GenerateKeyShare(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKeyShare: %v", err)
	}
	// The all-zero point is a low-order input whose product is the
	// all-zero shared secret (RFC 7748 §6.1).
	if _, err := X25519.SharedSecret(priv, make([]byte, 32)); err == nil {
		t.Fatalf("a low-order peer point must be rejected")
	}
}

func TestNISTGroupRejectsMalformedPeerPublic(t *testing.T) {
	for _, g := range []tlscore.KXGroup{P256, P384} {
		priv, _, err := g.GenerateKeyShare(rand.Reader)
		if err != nil {
			t.Fatalf("%s GenerateKeyShare: %v", g.Name(), err)
		}
		if _, err := g.SharedSecret(priv, []byte{0x04, 0x01, 0x02}); err == nil {
			t.Fatalf("%s must reject a truncated peer public key", g.Name())
		}
	}
}
