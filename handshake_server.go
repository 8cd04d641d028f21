package tlscore

import (
	"crypto/rand"

	"github.com/go-tlscore/tlscore/tlslog"
)

// This file is the server half of the handshake state machine,
// mirroring handshake_client.go's structure.

type serverState int

const (
	serverStateExpectClientHello serverState = iota
	serverStateExpectFinished13
	serverStateExpectCCS12
	serverStateExpectClientKeyExchange
	serverStateExpectFinished12
	serverStateTraffic
)

type serverHandshake struct {
	cs    *CommonState
	state serverState

	randoms *ConnectionRandoms

	isTLS13 bool
	ks13    *KeySchedule13

	kxGroup KXGroup
	kxPriv  []byte

	clientHSTrafficSecret []byte
	serverHSTrafficSecret []byte

	ms  []byte
	pms []byte

	clientAppSecret  []byte
	serverAppSecret  []byte
	resumptionSecret []byte

	// sendTicket12 is set when a TLS 1.2 client asked for a session
	// ticket and this side is configured to issue one: a
	// NewSessionTicket goes out ahead of the server ChangeCipherSpec.
	sendTicket12 bool
}

// newServerHandshake starts a server-side handshake, which does
// nothing until the first ClientHello arrives.
func newServerHandshake(cs *CommonState) *serverHandshake {
	return &serverHandshake{cs: cs, state: serverStateExpectClientHello}
}

func (sh *serverHandshake) handle(msg HandshakeMessage) *Error {
	switch sh.state {
	case serverStateExpectClientHello:
		return sh.handleClientHello(msg)
	case serverStateExpectFinished13:
		return sh.handleClientFinished13(msg)
	case serverStateExpectClientKeyExchange:
		return sh.handleClientKeyExchange(msg)
	case serverStateExpectFinished12:
		return sh.handleClientFinished12(msg)
	case serverStateTraffic:
		return sh.handleTraffic(msg)
	default:
		return errInappropriateHandshake(msg.Type.String(), nil)
	}
}

// handleTraffic processes post-handshake messages from the client. Only
// key_update is legitimate here: NewSessionTicket is server-to-client
// only, and the renegotiation-shaped TLS 1.2 messages are dropped by
// the driver before dispatch.
func (sh *serverHandshake) handleTraffic(msg HandshakeMessage) *Error {
	if !sh.isTLS13 || msg.Type != HandshakeTypeKeyUpdate {
		return errInappropriateHandshake(msg.Type.String(), []string{"key_update"})
	}
	ku, err := decodeKeyUpdate(msg.Body)
	if err != nil {
		return err
	}
	if err := sh.cs.requireAligned(); err != nil {
		return err
	}
	tls13, _ := sh.cs.negotiatedSuite.Tls13()
	keyLen, ivLen := tls13AEADLengths(tls13)

	sh.clientAppSecret = sh.ks13.NextTrafficSecret(sh.clientAppSecret)
	key, iv := sh.ks13.TrafficKey(sh.clientAppSecret, keyLen, ivLen)
	aead, aerr := tls13.Common.AEAD(key)
	if aerr != nil {
		return errGeneral("failed to construct ratcheted client AEAD: " + aerr.Error())
	}
	sh.cs.record.PrepareDecrypter(aead, iv, 0, nonceXOR, true)

	if ku.RequestUpdate {
		sh.cs.sendHandshakeMsg(HandshakeMessage{Type: HandshakeTypeKeyUpdate, Body: (&KeyUpdateBody{}).Encode()})
		return sh.ratchetOutgoing()
	}
	return nil
}

// ratchetOutgoing advances the server's application traffic secret and
// reinstalls the encrypter under the new keys.
func (sh *serverHandshake) ratchetOutgoing() *Error {
	tls13, _ := sh.cs.negotiatedSuite.Tls13()
	keyLen, ivLen := tls13AEADLengths(tls13)
	sh.serverAppSecret = sh.ks13.NextTrafficSecret(sh.serverAppSecret)
	key, iv := sh.ks13.TrafficKey(sh.serverAppSecret, keyLen, ivLen)
	aead, aerr := tls13.Common.AEAD(key)
	if aerr != nil {
		return errGeneral("failed to construct ratcheted server AEAD: " + aerr.Error())
	}
	sh.cs.record.PrepareEncrypter(aead, iv, 0, nonceXOR, true)
	return nil
}

// refreshTrafficKeys sends key_update(update_requested) and ratchets
// this side's own traffic keys (the Conn façade's RefreshTrafficKeys).
func (sh *serverHandshake) refreshTrafficKeys() *Error {
	if !sh.isTLS13 || sh.state != serverStateTraffic {
		return errGeneral("key update requires an established TLS 1.3 session")
	}
	sh.cs.sendHandshakeMsg(HandshakeMessage{Type: HandshakeTypeKeyUpdate, Body: (&KeyUpdateBody{RequestUpdate: true}).Encode()})
	return sh.ratchetOutgoing()
}

// handleCCS mirrors clientHandshake.handleCCS: a TLS 1.3 middlebox
// no-op at any point, or (in TLS 1.2) the trigger to install the
// client-direction decrypter once ClientKeyExchange has been
// processed.
func (sh *serverHandshake) handleCCS() *Error {
	if sh.state != serverStateExpectCCS12 {
		if sh.isTLS13 || sh.state == serverStateExpectClientHello {
			return sh.cs.middleboxCCS()
		}
		return errMisbehaved("unexpected change_cipher_spec")
	}
	if err := sh.cs.requireAligned(); err != nil {
		return err
	}
	suite, _ := sh.cs.negotiatedSuite.Tls12()
	key, iv := deriveTls12ClientKeys(suite, sh.cs.randoms, sh.ms)
	mode := nonceExplicit
	if suite.ExplicitNonceLen == 0 {
		mode = nonceXOR
	}
	aead, err := suite.Common.AEAD(key)
	if err != nil {
		return errGeneral("failed to construct client AEAD: " + err.Error())
	}
	sh.cs.record.PrepareDecrypter(aead, iv, suite.ExplicitNonceLen, mode, false)
	sh.state = serverStateExpectFinished12
	return nil
}

func (sh *serverHandshake) handleClientHello(msg HandshakeMessage) *Error {
	if msg.Type != HandshakeTypeClientHello {
		return errInappropriateHandshake(msg.Type.String(), []string{"client_hello"})
	}
	ch, err := decodeClientHello(msg.Body)
	if err != nil {
		return err
	}

	sh.randoms = NewConnectionRandoms(Server, ch.Random, Random{})
	sh.cs.randoms = sh.randoms
	if _, rerr := rand.Read(sh.randoms.Server[:]); rerr != nil {
		return errGeneral("failed to generate server random")
	}

	negotiatedVersion := VersionTLS12
	wantsTLS13 := false
	for _, v := range ch.SupportedVersions {
		if v == VersionTLS13 && sh.cs.config.supportsVersion(VersionTLS13) {
			negotiatedVersion = VersionTLS13
			wantsTLS13 = true
			break
		}
	}
	if !wantsTLS13 && !sh.cs.config.supportsVersion(VersionTLS12) {
		return errGeneral("no mutually supported protocol version")
	}
	sh.isTLS13 = wantsTLS13
	sh.cs.negotiatedVersion = negotiatedVersion

	reg := sh.cs.config.registry()
	var serverSuites []SupportedCipherSuite
	if wantsTLS13 {
		serverSuites = reg.TLS13Suites
	} else {
		serverSuites = reg.TLS12Suites
	}
	found, ok := ChooseCiphersuitePreferringServer(ch.CipherSuites, serverSuites)
	if !ok {
		return errGeneral("no mutually supported cipher suite")
	}
	sh.cs.negotiatedSuite = found
	sh.cs.haveSuite = true
	sh.cs.transcript.SetAlgorithm(found.Hash())

	if sh.cs.config.supportsVersion(VersionTLS13) && !wantsTLS13 {
		sh.randoms.MarkDowngrade()
	}

	if n, ok := negotiateALPN(ch.ALPNProtocols, sh.cs.config.ALPNProtocols); ok {
		sh.cs.negotiatedALPN = n
	}
	sh.cs.serverName = ch.ServerName

	helloBody := &ServerHelloBody{
		LegacyVersion:     VersionTLS12,
		Random:            sh.randoms.Server,
		LegacySessionID:   ch.LegacySessionID,
		CipherSuite:       found.ID(),
		CompressionMethod: 0,
		ALPNProtocol:      sh.cs.negotiatedALPN,
	}

	if wantsTLS13 {
		tls13, _ := found.Tls13()
		var clientShare *KeyShareEntry
		var g KXGroup
		for _, ks := range ch.KeyShares {
			if cand := sh.cs.config.findKXGroup(ks.Group); cand != nil {
				g, clientShare = cand, &ks
				break
			}
		}
		if g == nil {
			return errMisbehaved("client offered no supported key-exchange group")
		}
		priv, pub, kerr := g.GenerateKeyShare(rand.Reader)
		if kerr != nil {
			return errGeneral("failed to generate key share: " + kerr.Error())
		}
		sh.kxGroup, sh.kxPriv = g, priv
		helloBody.SupportedVersion = VersionTLS13
		helloBody.KeyShare = &KeyShareEntry{Group: g.ID(), Key: pub}
		helloBody.ALPNProtocol = "" // ALPN moves to EncryptedExtensions in 1.3

		sh.cs.sendHandshakeMsg(HandshakeMessage{Type: HandshakeTypeServerHello, Body: helloBody.Encode(true)})
		sh.cs.sendChangeCipherSpec()

		shared, serr := g.SharedSecret(priv, clientShare.Key)
		if serr != nil {
			return errGeneral("ECDHE computation failed: " + serr.Error())
		}
		sh.ks13 = NewKeySchedule13(found.Hash(), nil)
		sh.ks13.AdvanceToHandshake(shared)

		transcriptSoFar := sh.cs.transcript.Sum()
		sh.serverHSTrafficSecret = sh.ks13.ServerHandshakeTrafficSecret(transcriptSoFar)
		sh.clientHSTrafficSecret = sh.ks13.ClientHandshakeTrafficSecret(transcriptSoFar)
		sh.cs.logKeySecret("SERVER_HANDSHAKE_TRAFFIC_SECRET", sh.serverHSTrafficSecret)
		sh.cs.logKeySecret("CLIENT_HANDSHAKE_TRAFFIC_SECRET", sh.clientHSTrafficSecret)

		keyLen, ivLen := tls13AEADLengths(tls13)
		skey, siv := sh.ks13.TrafficKey(sh.serverHSTrafficSecret, keyLen, ivLen)
		saead, aerr := tls13.Common.AEAD(skey)
		if aerr != nil {
			return errGeneral("failed to construct server handshake AEAD: " + aerr.Error())
		}
		if err := sh.cs.requireAligned(); err != nil {
			return err
		}
		sh.cs.record.PrepareEncrypter(saead, siv, 0, nonceXOR, true)

		sh.cs.sendHandshakeMsg(HandshakeMessage{Type: HandshakeTypeEncryptedExtension, Body: (&EncryptedExtensionsBody{ALPNProtocol: sh.cs.negotiatedALPN}).Encode()})

		key, resolveErr := sh.resolveCertificate()
		if resolveErr != nil {
			return resolveErr
		}
		sh.cs.sendHandshakeMsg(HandshakeMessage{Type: HandshakeTypeCertificate, Body: (&CertificateBody{Chain: key.Chain}).Encode(true)})

		toSign := tls13SignatureInput("TLS 1.3, server CertificateVerify", sh.cs.transcript.Sum())
		scheme, sig, signErr := signWithFirstSupportedScheme(key, ch.SignatureAlgorithms, toSign)
		if signErr != nil {
			return errGeneral("server signing failed: " + signErr.Error())
		}
		sh.cs.sendHandshakeMsg(HandshakeMessage{Type: HandshakeTypeCertificateVerify, Body: (&CertificateVerifyBody{Scheme: scheme, Signature: sig}).Encode()})

		serverFinVerifyData := finishedVerifyData13(found.Hash(), sh.serverHSTrafficSecret, sh.cs.transcript.Sum())
		sh.cs.sendHandshakeMsg(HandshakeMessage{Type: HandshakeTypeFinished, Body: (&FinishedBody{VerifyData: serverFinVerifyData}).Encode()})

		ckey, civ := sh.ks13.TrafficKey(sh.clientHSTrafficSecret, keyLen, ivLen)
		caead, cerr := tls13.Common.AEAD(ckey)
		if cerr != nil {
			return errGeneral("failed to construct client handshake AEAD: " + cerr.Error())
		}
		if err := sh.cs.requireAligned(); err != nil {
			return err
		}
		sh.cs.record.PrepareDecrypter(caead, civ, 0, nonceXOR, true)

		sh.state = serverStateExpectFinished13
		return nil
	}

	if ch.OfferSessionTicket && sh.cs.config.EnableSessionTickets && sh.cs.config.SessionStore != nil {
		sh.sendTicket12 = true
		helloBody.TicketSupported = true
		if len(ch.SessionTicket) > 0 {
			// Abbreviated handshakes are not implemented; a recognized
			// ticket still gets a full handshake and a fresh ticket
			// (RFC 5077 §3.4 permits this), so the lookup only informs
			// the log.
			if _, known := sh.cs.config.SessionStore.Get(ch.SessionTicket); known {
				tlslog.Logf(tlslog.Handshake, "client offered a known session ticket; continuing with a full handshake")
			}
		}
	}

	g := sh.cs.config.findKXGroup(GroupX25519)
	if len(reg.KXGroups) > 0 {
		for _, want := range ch.SupportedGroups {
			if cand := sh.cs.config.findKXGroup(want); cand != nil {
				g = cand
				break
			}
		}
		if g == nil {
			g = reg.KXGroups[0]
		}
	}
	if g == nil {
		return errGeneral("no usable key-exchange group")
	}
	priv, pub, kerr := g.GenerateKeyShare(rand.Reader)
	if kerr != nil {
		return errGeneral("failed to generate key share: " + kerr.Error())
	}
	sh.kxGroup, sh.kxPriv = g, priv

	sh.cs.sendHandshakeMsg(HandshakeMessage{Type: HandshakeTypeServerHello, Body: helloBody.Encode(false)})

	key, resolveErr := sh.resolveCertificate()
	if resolveErr != nil {
		return resolveErr
	}
	sh.cs.sendHandshakeMsg(HandshakeMessage{Type: HandshakeTypeCertificate, Body: (&CertificateBody{Chain: key.Chain}).Encode(false)})

	signed := tls12ServerKXSignatureInput(sh.randoms, g.ID(), pub)
	scheme, sig, signErr := signWithFirstSupportedScheme(key, ch.SignatureAlgorithms, signed)
	if signErr != nil {
		return errGeneral("server signing failed: " + signErr.Error())
	}
	sh.cs.sendHandshakeMsg(HandshakeMessage{Type: HandshakeTypeServerKeyExchange, Body: (&ServerKeyExchangeBody{Group: g.ID(), PublicKey: pub, Scheme: scheme, Signature: sig}).Encode()})
	sh.cs.sendHandshakeMsg(HandshakeMessage{Type: HandshakeTypeServerHelloDone, Body: nil})

	sh.state = serverStateExpectClientKeyExchange
	return nil
}

func (sh *serverHandshake) handleClientKeyExchange(msg HandshakeMessage) *Error {
	if msg.Type != HandshakeTypeClientKeyExchange {
		return errInappropriateHandshake(msg.Type.String(), []string{"client_key_exchange"})
	}
	cke, err := decodeClientKeyExchange(msg.Body)
	if err != nil {
		return err
	}
	pms, serr := sh.kxGroup.SharedSecret(sh.kxPriv, cke.PublicKey)
	if serr != nil {
		return errGeneral("ECDHE computation failed: " + serr.Error())
	}
	sh.pms = pms
	suite, _ := sh.cs.negotiatedSuite.Tls12()
	sh.ms = masterSecret12(suite.Common.Hash, sh.pms, sh.cs.randoms)
	sh.cs.masterSecret12 = sh.ms
	sh.cs.logKeySecret("CLIENT_RANDOM", sh.ms)
	sh.state = serverStateExpectCCS12
	return nil
}

func (sh *serverHandshake) handleClientFinished12(msg HandshakeMessage) *Error {
	if msg.Type != HandshakeTypeFinished {
		return errInappropriateHandshake(msg.Type.String(), []string{"finished"})
	}
	preFinishedHash := sh.cs.lastPreMessageHash
	fin := decodeFinished(msg.Body)
	suite, _ := sh.cs.negotiatedSuite.Tls12()
	want := finishedVerifyData12(suite.Common.Hash, sh.ms, "client finished", preFinishedHash)
	if !constantTimeEqual(fin.VerifyData, want) {
		return &Error{Kind: InvalidSignature, Detail: "client Finished verify_data mismatch"}
	}

	if sh.sendTicket12 {
		if err := sh.issueSessionTicket12(); err != nil {
			return err
		}
	}

	sh.cs.sendChangeCipherSpec()
	key, iv := deriveTls12ServerKeys(suite, sh.cs.randoms, sh.ms)
	mode := nonceExplicit
	if suite.ExplicitNonceLen == 0 {
		mode = nonceXOR
	}
	aead, aerr := suite.Common.AEAD(key)
	if aerr != nil {
		return errGeneral("failed to construct server AEAD: " + aerr.Error())
	}
	if err := sh.cs.requireAligned(); err != nil {
		return err
	}
	sh.cs.record.PrepareEncrypter(aead, iv, suite.ExplicitNonceLen, mode, false)

	serverFin := finishedVerifyData12(suite.Common.Hash, sh.ms, "server finished", sh.cs.transcript.Sum())
	sh.cs.sendHandshakeMsg(HandshakeMessage{Type: HandshakeTypeFinished, Body: (&FinishedBody{VerifyData: serverFin}).Encode()})

	sh.cs.handshakeComplete = true
	sh.cs.flushSendablePlaintext()
	sh.state = serverStateTraffic
	tlslog.Logf(tlslog.Handshake, "server handshake complete (tls12)")
	return nil
}

func (sh *serverHandshake) handleClientFinished13(msg HandshakeMessage) *Error {
	if msg.Type != HandshakeTypeFinished {
		return errInappropriateHandshake(msg.Type.String(), []string{"finished"})
	}
	preFinishedHash := sh.cs.lastPreMessageHash
	fin := decodeFinished(msg.Body)
	want := finishedVerifyData13(sh.cs.negotiatedSuite.Hash(), sh.clientHSTrafficSecret, preFinishedHash)
	if !constantTimeEqual(fin.VerifyData, want) {
		return &Error{Kind: InvalidSignature, Detail: "client Finished verify_data mismatch"}
	}

	tls13, _ := sh.cs.negotiatedSuite.Tls13()
	keyLen, ivLen := tls13AEADLengths(tls13)

	transcriptAfterClientFinished := sh.cs.transcript.Sum()
	sh.ks13.AdvanceToMaster()
	clientApp := sh.ks13.ClientApplicationTrafficSecret0(transcriptAfterClientFinished)
	serverApp := sh.ks13.ServerApplicationTrafficSecret0(transcriptAfterClientFinished)
	sh.cs.exporterSecret13 = sh.ks13.ExporterMasterSecret(transcriptAfterClientFinished)
	sh.clientAppSecret = clientApp
	sh.serverAppSecret = serverApp
	sh.resumptionSecret = sh.ks13.ResumptionMasterSecret(transcriptAfterClientFinished)
	sh.cs.logKeySecret("CLIENT_TRAFFIC_SECRET_0", clientApp)
	sh.cs.logKeySecret("SERVER_TRAFFIC_SECRET_0", serverApp)
	sh.cs.logKeySecret("EXPORTER_SECRET", sh.cs.exporterSecret13)

	skey, siv := sh.ks13.TrafficKey(serverApp, keyLen, ivLen)
	saead, serr := tls13.Common.AEAD(skey)
	if serr != nil {
		return errGeneral("failed to construct server application AEAD: " + serr.Error())
	}
	ckey, civ := sh.ks13.TrafficKey(clientApp, keyLen, ivLen)
	caead, cerr := tls13.Common.AEAD(ckey)
	if cerr != nil {
		return errGeneral("failed to construct client application AEAD: " + cerr.Error())
	}
	if err := sh.cs.requireAligned(); err != nil {
		return err
	}
	sh.cs.record.PrepareEncrypter(saead, siv, 0, nonceXOR, true)
	sh.cs.record.PrepareDecrypter(caead, civ, 0, nonceXOR, true)

	sh.cs.handshakeComplete = true
	sh.cs.flushSendablePlaintext()
	sh.state = serverStateTraffic
	tlslog.Logf(tlslog.Handshake, "server handshake complete (tls13)")

	if sh.cs.config.SessionStore != nil {
		if err := sh.issueSessionTicket13(); err != nil {
			return err
		}
	}
	return nil
}

// issueSessionTicket13 mints one NewSessionTicket under the freshly
// installed application traffic keys (RFC 8446 §4.6.1) and records the
// derived PSK in the SessionStore under the ticket. No handshake in
// this package offers or accepts a PSK, so nothing reads the entry back.
func (sh *serverHandshake) issueSessionTicket13() *Error {
	ticket := make([]byte, 32)
	if _, err := rand.Read(ticket); err != nil {
		return errGeneral("failed to generate session ticket")
	}
	var ageAddBytes [4]byte
	if _, err := rand.Read(ageAddBytes[:]); err != nil {
		return errGeneral("failed to generate ticket age_add")
	}
	ageAdd := uint32(ageAddBytes[0])<<24 | uint32(ageAddBytes[1])<<16 | uint32(ageAddBytes[2])<<8 | uint32(ageAddBytes[3])

	nonce := []byte{0}
	hash := sh.cs.negotiatedSuite.Hash()
	psk := hkdfExpandLabel(hash, sh.resumptionSecret, "resumption", nonce, hash.Size())
	sh.cs.config.SessionStore.Put(ticket, psk)

	nst := &NewSessionTicketBody{
		LifetimeSeconds: 7 * 24 * 3600, // RFC 8446 §4.6.1 maximum
		AgeAdd:          ageAdd,
		Nonce:           nonce,
		Ticket:          ticket,
	}
	sh.cs.sendHandshakeMsg(HandshakeMessage{Type: HandshakeTypeNewSessionTicket, Body: nst.Encode()})
	return nil
}

// issueSessionTicket12 mints an RFC 5077 ticket ahead of the server's
// ChangeCipherSpec, filing the master secret under the ticket bytes so
// the store holds what an abbreviated handshake would need.
func (sh *serverHandshake) issueSessionTicket12() *Error {
	ticket := make([]byte, 32)
	if _, err := rand.Read(ticket); err != nil {
		return errGeneral("failed to generate session ticket")
	}
	sh.cs.config.SessionStore.Put(ticket, sh.ms)

	nst := &SessionTicket12Body{
		LifetimeHintSeconds: 7 * 24 * 3600,
		Ticket:              ticket,
	}
	sh.cs.sendHandshakeMsg(HandshakeMessage{Type: HandshakeTypeNewSessionTicket, Body: nst.Encode()})
	return nil
}

// resolveCertificate calls the configured Resolver, failing the
// handshake if none is configured or it declines to present a chain:
// a server with no certificate to offer cannot proceed.
func (sh *serverHandshake) resolveCertificate() (*CertifiedKey, *Error) {
	if sh.cs.config.Resolver == nil {
		return nil, errGeneral("no certificate resolver configured")
	}
	schemes := []SignatureScheme{
		SignatureSchemeECDSAWithP256AndSHA256,
		SignatureSchemeECDSAWithP384AndSHA384,
		SignatureSchemeRSAPSSRSAEWithSHA256,
		SignatureSchemeRSAPSSRSAEWithSHA384,
		SignatureSchemeED25519,
	}
	key, err := sh.cs.config.Resolver.ResolveServerCert(sh.cs.serverName, schemes)
	if err != nil || key == nil {
		return nil, errGeneral("no certificate available for this server_name")
	}
	return key, nil
}

// signWithFirstSupportedScheme picks the first signature scheme the
// peer offered that key.Sign can produce.
func signWithFirstSupportedScheme(key *CertifiedKey, peerSchemes []SignatureScheme, message []byte) (SignatureScheme, []byte, error) {
	candidates := peerSchemes
	if len(candidates) == 0 {
		candidates = []SignatureScheme{SignatureSchemeECDSAWithP256AndSHA256, SignatureSchemeRSAPSSRSAEWithSHA256}
	}
	var lastErr error
	for _, scheme := range candidates {
		sig, err := key.Sign(scheme, message)
		if err == nil {
			return scheme, sig, nil
		}
		lastErr = err
	}
	return 0, nil, lastErr
}

// negotiateALPN picks the first of the server's preferences also
// offered by the client.
func negotiateALPN(clientProtos, serverProtos []string) (string, bool) {
	for _, s := range serverProtos {
		for _, c := range clientProtos {
			if s == c {
				return s, true
			}
		}
	}
	return "", false
}
