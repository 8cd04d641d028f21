package tlscore

import (
	"crypto/rand"

	"github.com/go-tlscore/tlscore/tlslog"
)

// This file is the client half of the handshake state machine: a
// single clientHandshake struct carrying a state tag plus whatever
// secrets the in-flight step needs, driving both the TLS 1.3 and the
// TLS 1.2 message sequences to traffic keys.

type clientState int

const (
	clientStateStart clientState = iota
	clientStateExpectServerHello
	clientStateExpectCertificate13
	clientStateExpectEncryptedExtensions
	clientStateExpectCertificateVerify13
	clientStateExpectFinished13
	clientStateExpectCertificate12
	clientStateExpectServerKeyExchange
	clientStateExpectServerHelloDone
	clientStateExpectNewSessionTicket12
	clientStateExpectCCS12
	clientStateExpectFinished12
	clientStateTraffic
)

// tls12TicketKey is the SessionStore key a client files a server's
// session ticket under, so the next connection to the same server can
// offer it back.
func tls12TicketKey(serverName string) []byte {
	return []byte("tls12/" + serverName)
}

type clientHandshake struct {
	cs    *CommonState
	state clientState

	randoms *ConnectionRandoms

	offeredSuites13 []CipherSuiteID
	offeredSuites12 []CipherSuiteID
	kxGroup         KXGroup
	kxPriv          []byte
	kxPub           []byte

	isTLS13 bool
	ks13    *KeySchedule13

	serverHSTrafficSecret []byte
	clientHSTrafficSecret []byte

	serverChain []Certificate

	serverKXPub []byte
	pms         []byte
	ms          []byte

	clientAppSecret  []byte
	serverAppSecret  []byte
	resumptionSecret []byte

	// ticket12Expected is set when a TLS 1.2 ServerHello carried the
	// session_ticket extension: a NewSessionTicket message precedes
	// the server's ChangeCipherSpec.
	ticket12Expected bool
}

// newClientHandshake starts a client-side handshake: it builds and
// queues the ClientHello immediately.
func newClientHandshake(cs *CommonState, serverName string) (*clientHandshake, *Error) {
	ch := &clientHandshake{cs: cs, state: clientStateStart}

	var randomBytes Random
	if _, err := rand.Read(randomBytes[:]); err != nil {
		return nil, errGeneral("failed to generate client random")
	}
	ch.randoms = NewConnectionRandoms(Client, randomBytes, Random{})
	cs.randoms = ch.randoms
	cs.serverName = serverName

	reg := cs.config.registry()
	hello := &ClientHelloBody{
		LegacyVersion:      VersionTLS12,
		Random:             randomBytes,
		LegacySessionID:    nil,
		CompressionMethods: []byte{0},
	}
	if cs.config.EnableSNI {
		hello.ServerName = serverName
	}

	for _, sv := range cs.config.versions() {
		hello.SupportedVersions = append(hello.SupportedVersions, sv.Version)
	}
	for _, s := range reg.TLS13Suites {
		hello.CipherSuites = append(hello.CipherSuites, s.ID())
		ch.offeredSuites13 = append(ch.offeredSuites13, s.ID())
	}
	for _, s := range reg.TLS12Suites {
		hello.CipherSuites = append(hello.CipherSuites, s.ID())
		ch.offeredSuites12 = append(ch.offeredSuites12, s.ID())
	}
	for _, g := range reg.KXGroups {
		hello.SupportedGroups = append(hello.SupportedGroups, g.ID())
	}
	hello.SignatureAlgorithms = []SignatureScheme{
		SignatureSchemeECDSAWithP256AndSHA256,
		SignatureSchemeECDSAWithP384AndSHA384,
		SignatureSchemeRSAPSSRSAEWithSHA256,
		SignatureSchemeRSAPSSRSAEWithSHA384,
		SignatureSchemeED25519,
	}
	hello.ALPNProtocols = cs.config.ALPNProtocols

	if cs.config.EnableSessionTickets && cs.config.SessionStore != nil && cs.config.supportsVersion(VersionTLS12) {
		hello.OfferSessionTicket = true
		if ticket, ok := cs.config.SessionStore.Get(tls12TicketKey(serverName)); ok {
			hello.SessionTicket = ticket
		}
	}

	if cs.config.supportsVersion(VersionTLS13) && len(reg.KXGroups) > 0 {
		g := reg.KXGroups[0]
		priv, pub, err := g.GenerateKeyShare(rand.Reader)
		if err != nil {
			return nil, errGeneral("failed to generate key share: " + err.Error())
		}
		ch.kxGroup, ch.kxPriv, ch.kxPub = g, priv, pub
		hello.KeyShares = []KeyShareEntry{{Group: g.ID(), Key: pub}}
	}

	msg := HandshakeMessage{Type: HandshakeTypeClientHello, Body: hello.Encode()}
	cs.sendHandshakeMsg(msg)
	ch.state = clientStateExpectServerHello
	return ch, nil
}

// handle drives one step of the client handshake given the next
// reassembled handshake message.
func (ch *clientHandshake) handle(msg HandshakeMessage) *Error {
	switch ch.state {
	case clientStateExpectServerHello:
		return ch.handleServerHello(msg)
	case clientStateExpectCertificate13:
		return ch.handleCertificate13(msg)
	case clientStateExpectEncryptedExtensions:
		return ch.handleEncryptedExtensions(msg)
	case clientStateExpectCertificateVerify13:
		return ch.handleCertificateVerify13(msg)
	case clientStateExpectFinished13:
		return ch.handleServerFinished13(msg)
	case clientStateExpectCertificate12:
		return ch.handleCertificate12(msg)
	case clientStateExpectServerKeyExchange:
		return ch.handleServerKeyExchange(msg)
	case clientStateExpectServerHelloDone:
		return ch.handleServerHelloDone(msg)
	case clientStateExpectNewSessionTicket12:
		return ch.handleNewSessionTicket12(msg)
	case clientStateExpectFinished12:
		return ch.handleServerFinished12(msg)
	case clientStateTraffic:
		return ch.handleTraffic(msg)
	default:
		return errInappropriateHandshake(msg.Type.String(), nil)
	}
}

// handleTraffic processes the post-handshake messages a TLS 1.3 server
// may send (RFC 8446 §4.6): session tickets and key updates.
// (Renegotiation-shaped TLS 1.2 messages never reach here; the driver
// drops them first.)
func (ch *clientHandshake) handleTraffic(msg HandshakeMessage) *Error {
	if !ch.isTLS13 {
		return errInappropriateHandshake(msg.Type.String(), nil)
	}
	switch msg.Type {
	case HandshakeTypeNewSessionTicket:
		return ch.handleNewSessionTicket(msg)
	case HandshakeTypeKeyUpdate:
		return ch.handleKeyUpdate(msg)
	default:
		return errInappropriateHandshake(msg.Type.String(), []string{"new_session_ticket", "key_update"})
	}
}

// handleNewSessionTicket stores the offered ticket's PSK in the
// configured SessionStore, keyed by the ticket itself (RFC 8446
// §4.6.1: PSK = HKDF-Expand-Label(resumption_master_secret,
// "resumption", ticket_nonce, Hash.length)). With no store configured
// the ticket is dropped.
func (ch *clientHandshake) handleNewSessionTicket(msg HandshakeMessage) *Error {
	nst, err := decodeNewSessionTicket(msg.Body)
	if err != nil {
		return err
	}
	store := ch.cs.config.SessionStore
	if store == nil {
		return nil
	}
	hash := ch.cs.negotiatedSuite.Hash()
	psk := hkdfExpandLabel(hash, ch.resumptionSecret, "resumption", nst.Nonce, hash.Size())
	store.Put(nst.Ticket, psk)
	tlslog.Logf(tlslog.Handshake, "stored session ticket (%d bytes)", len(nst.Ticket))
	return nil
}

// handleKeyUpdate ratchets the incoming traffic secret (RFC 8446
// §7.2) and, if the peer requested it, ratchets and reinstalls our own
// before any further application data is sent.
func (ch *clientHandshake) handleKeyUpdate(msg HandshakeMessage) *Error {
	ku, err := decodeKeyUpdate(msg.Body)
	if err != nil {
		return err
	}
	if err := ch.cs.requireAligned(); err != nil {
		return err
	}
	tls13, _ := ch.cs.negotiatedSuite.Tls13()
	keyLen, ivLen := tls13AEADLengths(tls13)

	ch.serverAppSecret = ch.ks13.NextTrafficSecret(ch.serverAppSecret)
	key, iv := ch.ks13.TrafficKey(ch.serverAppSecret, keyLen, ivLen)
	aead, aerr := tls13.Common.AEAD(key)
	if aerr != nil {
		return errGeneral("failed to construct ratcheted server AEAD: " + aerr.Error())
	}
	ch.cs.record.PrepareDecrypter(aead, iv, 0, nonceXOR, true)

	if ku.RequestUpdate {
		ch.cs.sendHandshakeMsg(HandshakeMessage{Type: HandshakeTypeKeyUpdate, Body: (&KeyUpdateBody{}).Encode()})
		return ch.ratchetOutgoing()
	}
	return nil
}

// ratchetOutgoing advances this side's application traffic secret and
// reinstalls the encrypter under the new keys.
func (ch *clientHandshake) ratchetOutgoing() *Error {
	tls13, _ := ch.cs.negotiatedSuite.Tls13()
	keyLen, ivLen := tls13AEADLengths(tls13)
	ch.clientAppSecret = ch.ks13.NextTrafficSecret(ch.clientAppSecret)
	key, iv := ch.ks13.TrafficKey(ch.clientAppSecret, keyLen, ivLen)
	aead, aerr := tls13.Common.AEAD(key)
	if aerr != nil {
		return errGeneral("failed to construct ratcheted client AEAD: " + aerr.Error())
	}
	ch.cs.record.PrepareEncrypter(aead, iv, 0, nonceXOR, true)
	return nil
}

// refreshTrafficKeys sends key_update(update_requested) and ratchets
// this side's own traffic keys (the Conn façade's RefreshTrafficKeys).
func (ch *clientHandshake) refreshTrafficKeys() *Error {
	if !ch.isTLS13 || ch.state != clientStateTraffic {
		return errGeneral("key update requires an established TLS 1.3 session")
	}
	ch.cs.sendHandshakeMsg(HandshakeMessage{Type: HandshakeTypeKeyUpdate, Body: (&KeyUpdateBody{RequestUpdate: true}).Encode()})
	return ch.ratchetOutgoing()
}

// handleCCS processes a change_cipher_spec record. In TLS 1.3 it is
// the middlebox-compatibility no-op; in TLS 1.2 it flips the decrypt
// key once the client reaches clientStateExpectCCS12.
func (ch *clientHandshake) handleCCS() *Error {
	if ch.state != clientStateExpectCCS12 {
		if ch.isTLS13 || ch.state == clientStateStart {
			return ch.cs.middleboxCCS()
		}
		return errMisbehaved("unexpected change_cipher_spec")
	}
	if err := ch.cs.requireAligned(); err != nil {
		return err
	}
	suite, _ := ch.cs.negotiatedSuite.Tls12()
	key, iv := deriveTls12ServerKeys(suite, ch.cs.randoms, ch.ms)
	mode := nonceExplicit
	if suite.ExplicitNonceLen == 0 {
		mode = nonceXOR
	}
	aead, err := suite.Common.AEAD(key)
	if err != nil {
		return errGeneral("failed to construct server AEAD: " + err.Error())
	}
	ch.cs.record.PrepareDecrypter(aead, iv, suite.ExplicitNonceLen, mode, false)
	ch.state = clientStateExpectFinished12
	return nil
}

func (ch *clientHandshake) handleServerHello(msg HandshakeMessage) *Error {
	if msg.Type != HandshakeTypeServerHello {
		return errInappropriateHandshake(msg.Type.String(), []string{"server_hello"})
	}
	sh, err := decodeServerHello(msg.Body)
	if err != nil {
		return err
	}
	ch.randoms.Server = sh.Random

	version := sh.SupportedVersion
	if version != VersionTLS13 && version != VersionTLS12 {
		return errGeneral("unsupported negotiated version")
	}
	ch.isTLS13 = version == VersionTLS13
	ch.cs.negotiatedVersion = version

	if !ch.isTLS13 && ch.cs.config.supportsVersion(VersionTLS13) {
		if ch.randoms.IsDowngrade() {
			ch.cs.sendAlert(AlertLevelFatal, AlertIllegalParameter)
			return errMisbehaved("downgrade attack detected")
		}
	}

	reg := ch.cs.config.registry()
	var found SupportedCipherSuite
	ok := false
	for _, s := range reg.All() {
		if s.ID() == sh.CipherSuite && s.UsableForVersion(version) {
			found, ok = s, true
			break
		}
	}
	if !ok {
		return errGeneral("server chose an unoffered cipher suite")
	}
	ch.cs.negotiatedSuite = found
	ch.cs.haveSuite = true
	ch.cs.transcript.SetAlgorithm(found.Hash())

	if ch.isTLS13 {
		if sh.KeyShare == nil || ch.kxGroup == nil || sh.KeyShare.Group != ch.kxGroup.ID() {
			return errMisbehaved("server key_share does not match an offered group")
		}
		shared, kerr := ch.kxGroup.SharedSecret(ch.kxPriv, sh.KeyShare.Key)
		if kerr != nil {
			return errGeneral("ECDHE computation failed: " + kerr.Error())
		}
		ch.ks13 = NewKeySchedule13(found.Hash(), nil)
		ch.ks13.AdvanceToHandshake(shared)

		transcriptSoFar := ch.cs.transcript.Sum()
		ch.serverHSTrafficSecret = ch.ks13.ServerHandshakeTrafficSecret(transcriptSoFar)
		ch.clientHSTrafficSecret = ch.ks13.ClientHandshakeTrafficSecret(transcriptSoFar)
		ch.cs.logKeySecret("SERVER_HANDSHAKE_TRAFFIC_SECRET", ch.serverHSTrafficSecret)
		ch.cs.logKeySecret("CLIENT_HANDSHAKE_TRAFFIC_SECRET", ch.clientHSTrafficSecret)

		tls13, _ := found.Tls13()
		keyLen, ivLen := tls13AEADLengths(tls13)
		key, iv := ch.ks13.TrafficKey(ch.serverHSTrafficSecret, keyLen, ivLen)
		aead, aerr := tls13.Common.AEAD(key)
		if aerr != nil {
			return errGeneral("failed to construct server handshake AEAD: " + aerr.Error())
		}
		if err := ch.cs.requireAligned(); err != nil {
			return err
		}
		ch.cs.record.PrepareDecrypter(aead, iv, 0, nonceXOR, true)

		ch.state = clientStateExpectEncryptedExtensions
		return nil
	}

	ch.ticket12Expected = sh.TicketSupported
	ch.state = clientStateExpectCertificate12
	return nil
}

func (ch *clientHandshake) handleEncryptedExtensions(msg HandshakeMessage) *Error {
	if msg.Type != HandshakeTypeEncryptedExtension {
		return errInappropriateHandshake(msg.Type.String(), []string{"encrypted_extensions"})
	}
	ee, err := decodeEncryptedExtensions(msg.Body)
	if err != nil {
		return err
	}
	ch.cs.negotiatedALPN = ee.ALPNProtocol
	ch.state = clientStateExpectCertificate13
	return nil
}

func (ch *clientHandshake) handleCertificate13(msg HandshakeMessage) *Error {
	if msg.Type != HandshakeTypeCertificate {
		return errInappropriateHandshake(msg.Type.String(), []string{"certificate"})
	}
	cert, err := decodeCertificate(msg.Body, true)
	if err != nil {
		return err
	}
	if len(cert.Chain) == 0 {
		return errMisbehaved("server sent empty certificate chain")
	}
	if ch.cs.config.Verifier != nil {
		if verr := ch.cs.config.Verifier.VerifyServerCert(cert.Chain, ch.cs.serverName); verr != nil {
			return &Error{Kind: InvalidCertificate, Detail: verr.Error()}
		}
	}
	ch.serverChain = cert.Chain
	ch.state = clientStateExpectCertificateVerify13
	return nil
}

func (ch *clientHandshake) handleCertificateVerify13(msg HandshakeMessage) *Error {
	if msg.Type != HandshakeTypeCertificateVerify {
		return errInappropriateHandshake(msg.Type.String(), []string{"certificate_verify"})
	}
	cv, err := decodeCertificateVerify(msg.Body)
	if err != nil {
		return err
	}
	if ch.cs.config.Verifier != nil {
		signed := tls13SignatureInput("TLS 1.3, server CertificateVerify", ch.cs.transcript.Sum())
		if verr := ch.cs.config.Verifier.VerifySignature(ch.serverChain, cv.Scheme, signed, cv.Signature); verr != nil {
			return &Error{Kind: InvalidSignature, Detail: verr.Error()}
		}
	}
	ch.state = clientStateExpectFinished13
	return nil
}

func (ch *clientHandshake) handleServerFinished13(msg HandshakeMessage) *Error {
	if msg.Type != HandshakeTypeFinished {
		return errInappropriateHandshake(msg.Type.String(), []string{"finished"})
	}
	preFinishedHash := ch.cs.lastPreMessageHash
	fin := decodeFinished(msg.Body)
	want := finishedVerifyData13(ch.cs.negotiatedSuite.Hash(), ch.serverHSTrafficSecret, preFinishedHash)
	if !constantTimeEqual(fin.VerifyData, want) {
		return &Error{Kind: InvalidSignature, Detail: "server Finished verify_data mismatch"}
	}

	tls13, _ := ch.cs.negotiatedSuite.Tls13()
	keyLen, ivLen := tls13AEADLengths(tls13)
	ckey, civ := ch.ks13.TrafficKey(ch.clientHSTrafficSecret, keyLen, ivLen)
	caead, cerr := tls13.Common.AEAD(ckey)
	if cerr != nil {
		return errGeneral("failed to construct client handshake AEAD: " + cerr.Error())
	}
	if err := ch.cs.requireAligned(); err != nil {
		return err
	}
	ch.cs.record.PrepareEncrypter(caead, civ, 0, nonceXOR, true)

	clientFinVerifyData := finishedVerifyData13(ch.cs.negotiatedSuite.Hash(), ch.clientHSTrafficSecret, ch.cs.transcript.Sum())
	ch.cs.sendHandshakeMsg(HandshakeMessage{Type: HandshakeTypeFinished, Body: (&FinishedBody{VerifyData: clientFinVerifyData}).Encode()})

	transcriptAfterClientFinished := ch.cs.transcript.Sum()
	ch.ks13.AdvanceToMaster()
	clientApp := ch.ks13.ClientApplicationTrafficSecret0(transcriptAfterClientFinished)
	serverApp := ch.ks13.ServerApplicationTrafficSecret0(transcriptAfterClientFinished)
	ch.cs.exporterSecret13 = ch.ks13.ExporterMasterSecret(transcriptAfterClientFinished)
	ch.clientAppSecret = clientApp
	ch.serverAppSecret = serverApp
	ch.resumptionSecret = ch.ks13.ResumptionMasterSecret(transcriptAfterClientFinished)
	ch.cs.logKeySecret("CLIENT_TRAFFIC_SECRET_0", clientApp)
	ch.cs.logKeySecret("SERVER_TRAFFIC_SECRET_0", serverApp)
	ch.cs.logKeySecret("EXPORTER_SECRET", ch.cs.exporterSecret13)

	akey, aiv := ch.ks13.TrafficKey(clientApp, keyLen, ivLen)
	aaead, aerr := tls13.Common.AEAD(akey)
	if aerr != nil {
		return errGeneral("failed to construct client application AEAD: " + aerr.Error())
	}
	skey, siv := ch.ks13.TrafficKey(serverApp, keyLen, ivLen)
	saead, serr := tls13.Common.AEAD(skey)
	if serr != nil {
		return errGeneral("failed to construct server application AEAD: " + serr.Error())
	}
	if err := ch.cs.requireAligned(); err != nil {
		return err
	}
	ch.cs.record.PrepareEncrypter(aaead, aiv, 0, nonceXOR, true)
	ch.cs.record.PrepareDecrypter(saead, siv, 0, nonceXOR, true)

	ch.cs.handshakeComplete = true
	ch.cs.flushSendablePlaintext()
	ch.state = clientStateTraffic
	tlslog.Logf(tlslog.Handshake, "client handshake complete (tls13)")
	return nil
}

func (ch *clientHandshake) handleCertificate12(msg HandshakeMessage) *Error {
	if msg.Type != HandshakeTypeCertificate {
		return errInappropriateHandshake(msg.Type.String(), []string{"certificate"})
	}
	cert, err := decodeCertificate(msg.Body, false)
	if err != nil {
		return err
	}
	if len(cert.Chain) == 0 {
		return errMisbehaved("server sent empty certificate chain")
	}
	if ch.cs.config.Verifier != nil {
		if verr := ch.cs.config.Verifier.VerifyServerCert(cert.Chain, ch.cs.serverName); verr != nil {
			return &Error{Kind: InvalidCertificate, Detail: verr.Error()}
		}
	}
	ch.serverChain = cert.Chain
	ch.state = clientStateExpectServerKeyExchange
	return nil
}

func (ch *clientHandshake) handleServerKeyExchange(msg HandshakeMessage) *Error {
	if msg.Type != HandshakeTypeServerKeyExchange {
		return errInappropriateHandshake(msg.Type.String(), []string{"server_key_exchange"})
	}
	ske, err := decodeServerKeyExchange(msg.Body)
	if err != nil {
		return err
	}
	g := ch.cs.config.findKXGroup(ske.Group)
	if g == nil {
		return errMisbehaved("server chose an unoffered key-exchange group")
	}
	if ch.cs.config.Verifier != nil {
		signed := tls12ServerKXSignatureInput(ch.randoms, ske.Group, ske.PublicKey)
		if verr := ch.cs.config.Verifier.VerifySignature(ch.serverChain, ske.Scheme, signed, ske.Signature); verr != nil {
			return &Error{Kind: InvalidSignature, Detail: verr.Error()}
		}
	}
	priv, pub, gerr := g.GenerateKeyShare(rand.Reader)
	if gerr != nil {
		return errGeneral("failed to generate key share: " + gerr.Error())
	}
	ch.kxGroup, ch.kxPriv, ch.kxPub = g, priv, pub
	ch.serverKXPub = ske.PublicKey
	ch.state = clientStateExpectServerHelloDone
	return nil
}

func (ch *clientHandshake) handleServerHelloDone(msg HandshakeMessage) *Error {
	if msg.Type != HandshakeTypeServerHelloDone {
		return errInappropriateHandshake(msg.Type.String(), []string{"server_hello_done"})
	}

	ch.cs.sendHandshakeMsg(HandshakeMessage{Type: HandshakeTypeClientKeyExchange, Body: (&ClientKeyExchangeBody{PublicKey: ch.kxPub}).Encode()})
	ch.cs.sendChangeCipherSpec()

	suite, _ := ch.cs.negotiatedSuite.Tls12()
	pms, serr := ch.kxGroup.SharedSecret(ch.kxPriv, ch.serverKXPub)
	if serr != nil {
		return errGeneral("ECDHE computation failed: " + serr.Error())
	}
	ch.pms = pms

	ch.ms = masterSecret12(suite.Common.Hash, ch.pms, ch.cs.randoms)
	ch.cs.masterSecret12 = ch.ms
	ch.cs.logKeySecret("CLIENT_RANDOM", ch.ms)
	key, iv := deriveTls12ClientKeys(suite, ch.cs.randoms, ch.ms)
	mode := nonceExplicit
	if suite.ExplicitNonceLen == 0 {
		mode = nonceXOR
	}
	aead, aerr := suite.Common.AEAD(key)
	if aerr != nil {
		return errGeneral("failed to construct client AEAD: " + aerr.Error())
	}
	if err := ch.cs.requireAligned(); err != nil {
		return err
	}
	ch.cs.record.PrepareEncrypter(aead, iv, suite.ExplicitNonceLen, mode, false)

	finVerifyData := finishedVerifyData12(suite.Common.Hash, ch.ms, "client finished", ch.cs.transcript.Sum())
	ch.cs.sendHandshakeMsg(HandshakeMessage{Type: HandshakeTypeFinished, Body: (&FinishedBody{VerifyData: finVerifyData}).Encode()})

	if ch.ticket12Expected {
		ch.state = clientStateExpectNewSessionTicket12
	} else {
		ch.state = clientStateExpectCCS12
	}
	return nil
}

// handleNewSessionTicket12 files the ticket a TLS 1.2 server announced
// via the session_ticket extension (RFC 5077 §3.3), keyed by server
// name so the next connection can offer it back.
func (ch *clientHandshake) handleNewSessionTicket12(msg HandshakeMessage) *Error {
	if msg.Type != HandshakeTypeNewSessionTicket {
		return errInappropriateHandshake(msg.Type.String(), []string{"new_session_ticket"})
	}
	nst, err := decodeSessionTicket12(msg.Body)
	if err != nil {
		return err
	}
	if store := ch.cs.config.SessionStore; store != nil && len(nst.Ticket) > 0 {
		store.Put(tls12TicketKey(ch.cs.serverName), nst.Ticket)
		tlslog.Logf(tlslog.Handshake, "stored tls12 session ticket (%d bytes)", len(nst.Ticket))
	}
	ch.state = clientStateExpectCCS12
	return nil
}

func (ch *clientHandshake) handleServerFinished12(msg HandshakeMessage) *Error {
	if msg.Type != HandshakeTypeFinished {
		return errInappropriateHandshake(msg.Type.String(), []string{"finished"})
	}
	preFinishedHash := ch.cs.lastPreMessageHash
	fin := decodeFinished(msg.Body)
	suite, _ := ch.cs.negotiatedSuite.Tls12()
	want := finishedVerifyData12(suite.Common.Hash, ch.ms, "server finished", preFinishedHash)
	if !constantTimeEqual(fin.VerifyData, want) {
		return &Error{Kind: InvalidSignature, Detail: "server Finished verify_data mismatch"}
	}
	ch.cs.handshakeComplete = true
	ch.cs.flushSendablePlaintext()
	ch.state = clientStateTraffic
	tlslog.Logf(tlslog.Handshake, "client handshake complete (tls12)")
	return nil
}
