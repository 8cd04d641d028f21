package tlscore_test

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"io"
	"testing"

	"github.com/go-tlscore/tlscore"
	"github.com/go-tlscore/tlscore/cryptosuite"
	"github.com/go-tlscore/tlscore/sessioncache"
)

var errUnsupportedScheme = errors.New("unsupported signature scheme")

// ed25519Resolver is a minimal tlscore.Resolver/CertifiedKey pair: it only
// supports SignatureSchemeED25519, which the client always offers last
// in its signature_algorithms list, exercising
// signWithFirstSupportedScheme's try-in-offered-order fallback.
type ed25519Resolver struct {
	key *tlscore.CertifiedKey
}

func newEd25519Resolver(t *testing.T) *ed25519Resolver {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("ed25519.GenerateKey: %v", err)
	}
	return &ed25519Resolver{key: &tlscore.CertifiedKey{
		Chain: []tlscore.Certificate{{DER: append([]byte(nil), pub...)}},
		Sign: func(scheme tlscore.SignatureScheme, message []byte) ([]byte, error) {
			if scheme != tlscore.SignatureSchemeED25519 {
				return nil, errUnsupportedScheme
			}
			return ed25519.Sign(priv, message), nil
		},
	}}
}

func (r *ed25519Resolver) ResolveServerCert(serverName string, schemes []tlscore.SignatureScheme) (*tlscore.CertifiedKey, error) {
	return r.key, nil
}

func (r *ed25519Resolver) ResolveClientCert(acceptableIssuers [][]byte, schemes []tlscore.SignatureScheme) (*tlscore.CertifiedKey, error) {
	return nil, nil
}

func newTestClientConfig() *tlscore.Config {
	return &tlscore.Config{
		Tls13CipherSuites: cryptosuite.DefaultTls13Suites(),
		KXGroups:          cryptosuite.DefaultKXGroups(),
		Versions:          []tlscore.SupportedProtocolVersion{tlscore.TLS13},
		ALPNProtocols:     []string{"h2", "http/1.1"},
		EnableSNI:         true,
	}
}

func newTestServerConfig(t *testing.T) *tlscore.Config {
	return &tlscore.Config{
		Tls13CipherSuites: cryptosuite.DefaultTls13Suites(),
		KXGroups:          cryptosuite.DefaultKXGroups(),
		Versions:          []tlscore.SupportedProtocolVersion{tlscore.TLS13},
		Resolver:          newEd25519Resolver(t),
		ALPNProtocols:     []string{"h2", "http/1.1"},
	}
}

// pumpHandshake synchronously drives client and server until both sides
// have nothing left to send and neither is handshaking, bailing out
// after a generous number of rounds to turn a protocol stall into a
// test failure instead of a hang.
func pumpHandshake(t *testing.T, client, server *tlscore.Conn) {
	t.Helper()
	for round := 0; round < 20; round++ {
		progressed := false

		var toServer bytes.Buffer
		if n, err := client.WriteTLS(&toServer); err != nil {
			t.Fatalf("client WriteTLS: %v", err)
		} else if n > 0 {
			progressed = true
		}
		if toServer.Len() > 0 {
			if _, err := server.ReadTLS(&toServer); err != nil {
				t.Fatalf("server ReadTLS: %v", err)
			}
			if _, perr := server.ProcessNewPackets(); perr != nil {
				t.Fatalf("server ProcessNewPackets: %v", perr)
			}
		}

		var toClient bytes.Buffer
		if n, err := server.WriteTLS(&toClient); err != nil {
			t.Fatalf("server WriteTLS: %v", err)
		} else if n > 0 {
			progressed = true
		}
		if toClient.Len() > 0 {
			if _, err := client.ReadTLS(&toClient); err != nil {
				t.Fatalf("client ReadTLS: %v", err)
			}
			if _, perr := client.ProcessNewPackets(); perr != nil {
				t.Fatalf("client ProcessNewPackets: %v", perr)
			}
		}

		if !client.IsHandshaking() && !server.IsHandshaking() && !progressed {
			return
		}
	}
	if client.IsHandshaking() || server.IsHandshaking() {
		t.Fatalf("handshake did not complete within the round budget (client handshaking=%v server handshaking=%v)",
			client.IsHandshaking(), server.IsHandshaking())
	}
}

func TestTLS13LoopbackHandshakeAndApplicationData(t *testing.T) {
	client, cerr := tlscore.NewClientConn(newTestClientConfig(), "example.test")
	if cerr != nil {
		t.Fatalf("NewClientConn: %v", cerr)
	}
	server, serr := tlscore.NewServerConn(newTestServerConfig(t))
	if serr != nil {
		t.Fatalf("NewServerConn: %v", serr)
	}

	pumpHandshake(t, client, server)

	if client.IsHandshaking() || server.IsHandshaking() {
		t.Fatalf("expected both sides to finish handshaking")
	}
	cv, ok := client.NegotiatedVersion()
	if !ok || cv != tlscore.VersionTLS13 {
		t.Fatalf("expected client to have negotiated tls1.3, got %v ok=%v", cv, ok)
	}
	sv, ok := server.NegotiatedVersion()
	if !ok || sv != tlscore.VersionTLS13 {
		t.Fatalf("expected server to have negotiated tls1.3, got %v ok=%v", sv, ok)
	}
	if alpn, ok := client.NegotiatedALPN(); !ok || alpn != "h2" {
		t.Fatalf("expected h2 to win ALPN negotiation, got %q ok=%v", alpn, ok)
	}

	const msg = "hello over a loopback tls1.3 connection"
	if n, err := client.Write([]byte(msg)); err != nil || n != len(msg) {
		t.Fatalf("client.Write: n=%d err=%v", n, err)
	}
	var onWire bytes.Buffer
	if _, err := client.WriteTLS(&onWire); err != nil {
		t.Fatalf("client WriteTLS: %v", err)
	}
	if _, err := server.ReadTLS(&onWire); err != nil {
		t.Fatalf("server ReadTLS: %v", err)
	}
	if _, perr := server.ProcessNewPackets(); perr != nil {
		t.Fatalf("server ProcessNewPackets: %v", perr)
	}
	buf := make([]byte, 256)
	n, err := server.Read(buf)
	if err != nil {
		t.Fatalf("server.Read: %v", err)
	}
	if string(buf[:n]) != msg {
		t.Fatalf("got %q, want %q", buf[:n], msg)
	}
}

func TestWriteBeforeHandshakeCompletesBuffersAndRespectsLimit(t *testing.T) {
	client, cerr := tlscore.NewClientConn(newTestClientConfig(), "example.test")
	if cerr != nil {
		t.Fatalf("NewClientConn: %v", cerr)
	}
	client.SetBufferLimit(8)

	n, err := client.Write([]byte("0123456789"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 8 {
		t.Fatalf("expected a short write of 8 bytes under an 8-byte limit before the handshake completes, got %d", n)
	}
	if n, err := client.Write([]byte("more")); err != nil || n != 0 {
		t.Fatalf("expected a full buffer to refuse further admission, got n=%d err=%v", n, err)
	}
	if client.IsHandshaking() == false {
		t.Fatalf("expected the connection to still be handshaking")
	}

	server, serr := tlscore.NewServerConn(newTestServerConfig(t))
	if serr != nil {
		t.Fatalf("NewServerConn: %v", serr)
	}
	pumpHandshake(t, client, server)

	var onWire bytes.Buffer
	if _, err := client.WriteTLS(&onWire); err != nil {
		t.Fatalf("client WriteTLS: %v", err)
	}
	if _, err := server.ReadTLS(&onWire); err != nil {
		t.Fatalf("server ReadTLS: %v", err)
	}
	if _, perr := server.ProcessNewPackets(); perr != nil {
		t.Fatalf("server ProcessNewPackets: %v", perr)
	}
	buf := make([]byte, 64)
	got, err := server.Read(buf)
	if err != nil {
		t.Fatalf("server.Read: %v", err)
	}
	if string(buf[:got]) != "01234567" {
		t.Fatalf("expected the pre-handshake bytes to arrive once traffic keys are installed, got %q", buf[:got])
	}
}

func suite12ByID(t *testing.T, id tlscore.CipherSuiteID) *tlscore.Tls12Suite {
	t.Helper()
	for _, s := range cryptosuite.DefaultTls12Suites() {
		if s.Common.ID == id {
			return s
		}
	}
	t.Fatalf("suite %v not in the default tls1.2 table", id)
	return nil
}

func suite13ByID(t *testing.T, id tlscore.CipherSuiteID) *tlscore.Tls13Suite {
	t.Helper()
	for _, s := range cryptosuite.DefaultTls13Suites() {
		if s.Common.ID == id {
			return s
		}
	}
	t.Fatalf("suite %v not in the default tls1.3 table", id)
	return nil
}

// exchangeAppData pushes one application message from -> to and
// asserts it arrives intact.
func exchangeAppData(t *testing.T, from, to *tlscore.Conn, msg string) {
	t.Helper()
	if n, err := from.Write([]byte(msg)); err != nil || n != len(msg) {
		t.Fatalf("Write: n=%d err=%v", n, err)
	}
	var onWire bytes.Buffer
	if _, err := from.WriteTLS(&onWire); err != nil {
		t.Fatalf("WriteTLS: %v", err)
	}
	if _, err := to.ReadTLS(&onWire); err != nil {
		t.Fatalf("ReadTLS: %v", err)
	}
	if _, perr := to.ProcessNewPackets(); perr != nil {
		t.Fatalf("ProcessNewPackets: %v", perr)
	}
	buf := make([]byte, len(msg)+64)
	n, err := to.Read(buf)
	if err != nil || string(buf[:n]) != msg {
		t.Fatalf("Read: got %q err=%v", buf[:n], err)
	}
}

func TestTLS13LoopbackChaCha20Poly1305OverP256(t *testing.T) {
	chacha := []*tlscore.Tls13Suite{suite13ByID(t, tlscore.TLS_CHACHA20_POLY1305_SHA256)}
	clientConfig := &tlscore.Config{
		Tls13CipherSuites: chacha,
		KXGroups:          []tlscore.KXGroup{cryptosuite.P256},
		Versions:          []tlscore.SupportedProtocolVersion{tlscore.TLS13},
	}
	serverConfig := &tlscore.Config{
		Tls13CipherSuites: chacha,
		KXGroups:          []tlscore.KXGroup{cryptosuite.P256},
		Versions:          []tlscore.SupportedProtocolVersion{tlscore.TLS13},
		Resolver:          newEd25519Resolver(t),
	}

	client, cerr := tlscore.NewClientConn(clientConfig, "example.test")
	if cerr != nil {
		t.Fatalf("NewClientConn: %v", cerr)
	}
	server, serr := tlscore.NewServerConn(serverConfig)
	if serr != nil {
		t.Fatalf("NewServerConn: %v", serr)
	}
	pumpHandshake(t, client, server)

	if suite, ok := client.NegotiatedCipherSuite(); !ok || suite.ID() != tlscore.TLS_CHACHA20_POLY1305_SHA256 {
		t.Fatalf("expected TLS_CHACHA20_POLY1305_SHA256, got %v ok=%v", suite.ID(), ok)
	}
	exchangeAppData(t, client, server, "over chacha and p-256")
	exchangeAppData(t, server, client, "and back")
}

func TestTLS12LoopbackChaCha20Poly1305OverP384(t *testing.T) {
	chacha := []*tlscore.Tls12Suite{suite12ByID(t, tlscore.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256)}
	clientConfig := &tlscore.Config{
		Tls12CipherSuites: chacha,
		KXGroups:          []tlscore.KXGroup{cryptosuite.P384},
		Versions:          []tlscore.SupportedProtocolVersion{tlscore.TLS12},
	}
	serverConfig := &tlscore.Config{
		Tls12CipherSuites: chacha,
		KXGroups:          []tlscore.KXGroup{cryptosuite.P384},
		Versions:          []tlscore.SupportedProtocolVersion{tlscore.TLS12},
		Resolver:          newEd25519Resolver(t),
	}

	client, cerr := tlscore.NewClientConn(clientConfig, "example.test")
	if cerr != nil {
		t.Fatalf("NewClientConn: %v", cerr)
	}
	server, serr := tlscore.NewServerConn(serverConfig)
	if serr != nil {
		t.Fatalf("NewServerConn: %v", serr)
	}
	pumpHandshake(t, client, server)

	if suite, ok := client.NegotiatedCipherSuite(); !ok || suite.ID() != tlscore.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256 {
		t.Fatalf("expected TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256, got %v ok=%v", suite.ID(), ok)
	}
	exchangeAppData(t, client, server, "over chacha and p-384")
	exchangeAppData(t, server, client, "and back")
}

func TestTLS12LoopbackNegotiatesECDHERSAAES128GCM(t *testing.T) {
	clientConfig := &tlscore.Config{
		Tls12CipherSuites: cryptosuite.DefaultTls12Suites(),
		KXGroups:          cryptosuite.DefaultKXGroups(),
		Versions:          []tlscore.SupportedProtocolVersion{tlscore.TLS12},
	}
	serverConfig := &tlscore.Config{
		Tls12CipherSuites: []*tlscore.Tls12Suite{suite12ByID(t, tlscore.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256)},
		KXGroups:          cryptosuite.DefaultKXGroups(),
		Versions:          []tlscore.SupportedProtocolVersion{tlscore.TLS12},
		Resolver:          newEd25519Resolver(t),
	}

	client, cerr := tlscore.NewClientConn(clientConfig, "example.test")
	if cerr != nil {
		t.Fatalf("NewClientConn: %v", cerr)
	}
	server, serr := tlscore.NewServerConn(serverConfig)
	if serr != nil {
		t.Fatalf("NewServerConn: %v", serr)
	}

	pumpHandshake(t, client, server)

	if suite, ok := client.NegotiatedCipherSuite(); !ok || suite.ID() != tlscore.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256 {
		t.Fatalf("expected TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256, got %v ok=%v", suite.ID(), ok)
	}
	if v, ok := client.NegotiatedVersion(); !ok || v != tlscore.VersionTLS12 {
		t.Fatalf("expected tls1.2, got %v ok=%v", v, ok)
	}

	const msg = "hello"
	if n, err := client.Write([]byte(msg)); err != nil || n != len(msg) {
		t.Fatalf("client.Write: n=%d err=%v", n, err)
	}
	var onWire bytes.Buffer
	if _, err := client.WriteTLS(&onWire); err != nil {
		t.Fatalf("client WriteTLS: %v", err)
	}
	if _, err := server.ReadTLS(&onWire); err != nil {
		t.Fatalf("server ReadTLS: %v", err)
	}
	if _, perr := server.ProcessNewPackets(); perr != nil {
		t.Fatalf("server ProcessNewPackets: %v", perr)
	}
	buf := make([]byte, 16)
	n, err := server.Read(buf)
	if err != nil || string(buf[:n]) != msg {
		t.Fatalf("server.Read: got %q err=%v", buf[:n], err)
	}
}

// stubServerHelloTLS12 frames a minimal, well-formed TLS 1.2
// ServerHello record with the given 32-byte random.
func stubServerHelloTLS12(random tlscore.Random) []byte {
	body := (&tlscore.ServerHelloBody{
		LegacyVersion: tlscore.VersionTLS12,
		Random:        random,
		CipherSuite:   tlscore.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	}).Encode(false)
	wire := tlscore.HandshakeMessage{Type: tlscore.HandshakeTypeServerHello, Body: body}.Encode()
	rec := []byte{22, 3, 3, byte(len(wire) >> 8), byte(len(wire))}
	return append(rec, wire...)
}

func TestClientDetectsDowngradeSentinel(t *testing.T) {
	config := &tlscore.Config{
		Tls13CipherSuites: cryptosuite.DefaultTls13Suites(),
		Tls12CipherSuites: cryptosuite.DefaultTls12Suites(),
		KXGroups:          cryptosuite.DefaultKXGroups(),
		Versions:          []tlscore.SupportedProtocolVersion{tlscore.TLS13, tlscore.TLS12},
	}
	client, cerr := tlscore.NewClientConn(config, "example.test")
	if cerr != nil {
		t.Fatalf("NewClientConn: %v", cerr)
	}
	var discard bytes.Buffer
	if _, err := client.WriteTLS(&discard); err != nil {
		t.Fatalf("client WriteTLS: %v", err)
	}

	var random tlscore.Random
	copy(random[24:], []byte{0x44, 0x4f, 0x57, 0x4e, 0x47, 0x52, 0x44, 0x01})
	if _, err := client.ReadTLS(bytes.NewReader(stubServerHelloTLS12(random))); err != nil {
		t.Fatalf("client ReadTLS: %v", err)
	}

	_, perr := client.ProcessNewPackets()
	if perr == nil || perr.Kind != tlscore.PeerMisbehaved {
		t.Fatalf("expected PeerMisbehaved on a downgrade sentinel, got %v", perr)
	}
	_, again := client.ProcessNewPackets()
	if again != perr {
		t.Fatalf("expected the cached error to be returned verbatim, got %v then %v", perr, again)
	}
	if !client.WantsWrite() {
		t.Fatalf("expected a fatal alert to be queued for the transport after downgrade detection")
	}
}

func TestClientWithoutTLS13AcceptsSentinelRandom(t *testing.T) {
	config := &tlscore.Config{
		Tls12CipherSuites: cryptosuite.DefaultTls12Suites(),
		KXGroups:          cryptosuite.DefaultKXGroups(),
		Versions:          []tlscore.SupportedProtocolVersion{tlscore.TLS12},
	}
	client, cerr := tlscore.NewClientConn(config, "example.test")
	if cerr != nil {
		t.Fatalf("NewClientConn: %v", cerr)
	}
	var discard bytes.Buffer
	if _, err := client.WriteTLS(&discard); err != nil {
		t.Fatalf("client WriteTLS: %v", err)
	}

	var random tlscore.Random
	copy(random[24:], []byte{0x44, 0x4f, 0x57, 0x4e, 0x47, 0x52, 0x44, 0x01})
	if _, err := client.ReadTLS(bytes.NewReader(stubServerHelloTLS12(random))); err != nil {
		t.Fatalf("client ReadTLS: %v", err)
	}
	if _, perr := client.ProcessNewPackets(); perr != nil {
		t.Fatalf("a client that never offered tls1.3 must ignore the sentinel, got %v", perr)
	}
}

// firstServerFlight runs the first handshake exchange and returns the
// server's raw first flight plus both half-driven connections.
func firstServerFlight(t *testing.T) (client, server *tlscore.Conn, flight []byte) {
	t.Helper()
	client, cerr := tlscore.NewClientConn(newTestClientConfig(), "example.test")
	if cerr != nil {
		t.Fatalf("NewClientConn: %v", cerr)
	}
	server, serr := tlscore.NewServerConn(newTestServerConfig(t))
	if serr != nil {
		t.Fatalf("NewServerConn: %v", serr)
	}
	var toServer bytes.Buffer
	if _, err := client.WriteTLS(&toServer); err != nil {
		t.Fatalf("client WriteTLS: %v", err)
	}
	if _, err := server.ReadTLS(&toServer); err != nil {
		t.Fatalf("server ReadTLS: %v", err)
	}
	if _, perr := server.ProcessNewPackets(); perr != nil {
		t.Fatalf("server ProcessNewPackets: %v", perr)
	}
	var out bytes.Buffer
	if _, err := server.WriteTLS(&out); err != nil {
		t.Fatalf("server WriteTLS: %v", err)
	}
	return client, server, out.Bytes()
}

func TestMiddleboxCCSAcceptedOnceThenFatal(t *testing.T) {
	client, _, flight := firstServerFlight(t)

	// Splice an extra change_cipher_spec between the ServerHello record
	// and the rest of the flight; together with the server's own
	// compatibility CCS the client now sees two.
	shLen := 5 + int(flight[3])<<8 + int(flight[4])
	injected := append([]byte(nil), flight[:shLen]...)
	injected = append(injected, 20, 3, 3, 0, 1, 1)
	injected = append(injected, flight[shLen:]...)

	if _, err := client.ReadTLS(bytes.NewReader(injected)); err != nil {
		t.Fatalf("client ReadTLS: %v", err)
	}
	_, perr := client.ProcessNewPackets()
	if perr == nil || perr.Kind != tlscore.PeerMisbehaved {
		t.Fatalf("expected PeerMisbehaved on a second middlebox change_cipher_spec, got %v", perr)
	}
}

func TestFragmentedServerHelloStillCompletesHandshake(t *testing.T) {
	client, server, flight := firstServerFlight(t)

	// Re-frame the ServerHello handshake bytes across three records of
	// sizes 5, 5, and the remainder.
	shLen := 5 + int(flight[3])<<8 + int(flight[4])
	sh := flight[5:shLen]
	var refr []byte
	for _, part := range [][]byte{sh[:5], sh[5:10], sh[10:]} {
		refr = append(refr, 22, 3, 3, byte(len(part)>>8), byte(len(part)))
		refr = append(refr, part...)
	}
	refr = append(refr, flight[shLen:]...)

	if _, err := client.ReadTLS(bytes.NewReader(refr)); err != nil {
		t.Fatalf("client ReadTLS: %v", err)
	}
	if _, perr := client.ProcessNewPackets(); perr != nil {
		t.Fatalf("client ProcessNewPackets over a fragmented ServerHello: %v", perr)
	}

	pumpHandshake(t, client, server)
	if client.IsHandshaking() || server.IsHandshaking() {
		t.Fatalf("handshake did not complete after fragmented ServerHello")
	}
	if n, err := client.Write([]byte("post-handshake write")); err != nil || n == 0 {
		t.Fatalf("application write after handshake: n=%d err=%v", n, err)
	}
}

type recordingKeyLog struct {
	labels []string
}

func (k *recordingKeyLog) WriteKeyLog(label string, clientRandom, secret []byte) error {
	k.labels = append(k.labels, label)
	return nil
}

func TestSessionTicketReachesBothStoresAndKeyLogFires(t *testing.T) {
	clientStore := sessioncache.New(0)
	serverStore := sessioncache.New(0)
	keyLog := &recordingKeyLog{}

	clientConfig := newTestClientConfig()
	clientConfig.SessionStore = clientStore
	clientConfig.KeyLog = keyLog
	serverConfig := newTestServerConfig(t)
	serverConfig.SessionStore = serverStore

	client, cerr := tlscore.NewClientConn(clientConfig, "example.test")
	if cerr != nil {
		t.Fatalf("NewClientConn: %v", cerr)
	}
	server, serr := tlscore.NewServerConn(serverConfig)
	if serr != nil {
		t.Fatalf("NewServerConn: %v", serr)
	}
	pumpHandshake(t, client, server)

	if serverStore.Len() == 0 {
		t.Fatalf("server should have recorded the PSK it minted a ticket for")
	}
	if clientStore.Len() == 0 {
		t.Fatalf("client should have stored the offered session ticket")
	}

	want := map[string]bool{
		"CLIENT_HANDSHAKE_TRAFFIC_SECRET": false,
		"SERVER_HANDSHAKE_TRAFFIC_SECRET": false,
		"CLIENT_TRAFFIC_SECRET_0":         false,
		"SERVER_TRAFFIC_SECRET_0":         false,
	}
	for _, l := range keyLog.labels {
		if _, ok := want[l]; ok {
			want[l] = true
		}
	}
	for label, seen := range want {
		if !seen {
			t.Fatalf("key log never received %s (got %v)", label, keyLog.labels)
		}
	}
}

func TestRefreshTrafficKeysRatchetsBothDirections(t *testing.T) {
	client, cerr := tlscore.NewClientConn(newTestClientConfig(), "example.test")
	if cerr != nil {
		t.Fatalf("NewClientConn: %v", cerr)
	}
	server, serr := tlscore.NewServerConn(newTestServerConfig(t))
	if serr != nil {
		t.Fatalf("NewServerConn: %v", serr)
	}
	pumpHandshake(t, client, server)

	if err := client.RefreshTrafficKeys(); err != nil {
		t.Fatalf("RefreshTrafficKeys: %v", err)
	}
	// Deliver the key_update, the server's reply, and let both sides
	// settle on the ratcheted keys.
	pumpHandshake(t, client, server)

	exchangeAppData(t, client, server, "ping under new client keys")
	exchangeAppData(t, server, client, "pong under new server keys")
}

func newTicketingTLS12Config(store *sessioncache.Cache) *tlscore.Config {
	return &tlscore.Config{
		Tls12CipherSuites:    cryptosuite.DefaultTls12Suites(),
		KXGroups:             cryptosuite.DefaultKXGroups(),
		Versions:             []tlscore.SupportedProtocolVersion{tlscore.TLS12},
		EnableSessionTickets: true,
		SessionStore:         store,
	}
}

func TestTLS12SessionTicketIssuedAndOfferedOnNextConnection(t *testing.T) {
	clientStore := sessioncache.New(0)
	serverStore := sessioncache.New(0)
	clientConfig := newTicketingTLS12Config(clientStore)
	serverConfig := newTicketingTLS12Config(serverStore)
	serverConfig.Resolver = newEd25519Resolver(t)

	connect := func() (*tlscore.Conn, *tlscore.Conn) {
		client, cerr := tlscore.NewClientConn(clientConfig, "example.test")
		if cerr != nil {
			t.Fatalf("NewClientConn: %v", cerr)
		}
		server, serr := tlscore.NewServerConn(serverConfig)
		if serr != nil {
			t.Fatalf("NewServerConn: %v", serr)
		}
		pumpHandshake(t, client, server)
		return client, server
	}

	client, server := connect()
	if clientStore.Len() != 1 {
		t.Fatalf("client should have filed the issued ticket, store len=%d", clientStore.Len())
	}
	if serverStore.Len() != 1 {
		t.Fatalf("server should have recorded the ticket it minted, store len=%d", serverStore.Len())
	}
	exchangeAppData(t, client, server, "first connection")

	// The second connection offers the stored ticket back; the server
	// recognizes it, runs a full handshake anyway, and issues a fresh
	// ticket that replaces the client's stored one.
	client, server = connect()
	if client.IsHandshaking() || server.IsHandshaking() {
		t.Fatalf("second handshake should have completed")
	}
	if clientStore.Len() != 1 {
		t.Fatalf("the fresh ticket should overwrite the stored one, store len=%d", clientStore.Len())
	}
	if serverStore.Len() != 2 {
		t.Fatalf("the server should now know both tickets it minted, store len=%d", serverStore.Len())
	}
	exchangeAppData(t, client, server, "second connection")
}

func TestCloseNotifyHalfClose(t *testing.T) {
	client, cerr := tlscore.NewClientConn(newTestClientConfig(), "example.test")
	if cerr != nil {
		t.Fatalf("NewClientConn: %v", cerr)
	}
	server, serr := tlscore.NewServerConn(newTestServerConfig(t))
	if serr != nil {
		t.Fatalf("NewServerConn: %v", serr)
	}
	pumpHandshake(t, client, server)

	const parting = "last words"
	if _, err := server.Write([]byte(parting)); err != nil {
		t.Fatalf("server.Write: %v", err)
	}
	server.SendCloseNotify()
	var onWire bytes.Buffer
	if _, err := server.WriteTLS(&onWire); err != nil {
		t.Fatalf("server WriteTLS: %v", err)
	}
	if _, err := client.ReadTLS(&onWire); err != nil {
		t.Fatalf("client ReadTLS: %v", err)
	}
	state, perr := client.ProcessNewPackets()
	if perr != nil {
		t.Fatalf("client ProcessNewPackets: %v", perr)
	}
	if !state.PeerHasClosed {
		t.Fatalf("expected PeerHasClosed after close_notify")
	}

	buf := make([]byte, 64)
	n, err := client.Read(buf)
	if err != nil || string(buf[:n]) != parting {
		t.Fatalf("expected buffered plaintext before EOF, got %q err=%v", buf[:n], err)
	}
	if _, err := client.Read(buf); err != io.EOF {
		t.Fatalf("expected io.EOF once drained, got %v", err)
	}
	if client.WantsRead() {
		t.Fatalf("wants_read must be false after close_notify")
	}
	if n, err := client.Write([]byte("still writable")); err != nil || n == 0 {
		t.Fatalf("writes must remain permitted after the peer half-closes: n=%d err=%v", n, err)
	}
}
