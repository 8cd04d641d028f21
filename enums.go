package tlscore

// ContentType is the TLS record layer's content-type byte.
type ContentType uint8

const (
	ContentTypeChangeCipherSpec ContentType = 20
	ContentTypeAlert            ContentType = 21
	ContentTypeHandshake        ContentType = 22
	ContentTypeApplicationData  ContentType = 23
)

func (c ContentType) String() string {
	switch c {
	case ContentTypeChangeCipherSpec:
		return "change_cipher_spec"
	case ContentTypeAlert:
		return "alert"
	case ContentTypeHandshake:
		return "handshake"
	case ContentTypeApplicationData:
		return "application_data"
	default:
		return "unknown_content_type"
	}
}

func (c ContentType) known() bool {
	switch c {
	case ContentTypeChangeCipherSpec, ContentTypeAlert, ContentTypeHandshake, ContentTypeApplicationData:
		return true
	default:
		return false
	}
}

// ProtocolVersion is the two-byte version field carried in records and
// in the legacy_version / supported_versions handshake fields.
type ProtocolVersion uint16

const (
	VersionTLS10 ProtocolVersion = 0x0301
	VersionTLS11 ProtocolVersion = 0x0302
	VersionTLS12 ProtocolVersion = 0x0303
	VersionTLS13 ProtocolVersion = 0x0304
)

func (v ProtocolVersion) String() string {
	switch v {
	case VersionTLS10:
		return "TLSv1.0"
	case VersionTLS11:
		return "TLSv1.1"
	case VersionTLS12:
		return "TLSv1.2"
	case VersionTLS13:
		return "TLSv1.3"
	default:
		return "unknown_version"
	}
}

// HandshakeType is the one-byte type field of a handshake message.
type HandshakeType uint8

const (
	HandshakeTypeHelloRequest       HandshakeType = 0
	HandshakeTypeClientHello        HandshakeType = 1
	HandshakeTypeServerHello        HandshakeType = 2
	HandshakeTypeNewSessionTicket   HandshakeType = 4
	HandshakeTypeEndOfEarlyData     HandshakeType = 5
	HandshakeTypeEncryptedExtension HandshakeType = 8
	HandshakeTypeCertificate        HandshakeType = 11
	HandshakeTypeServerKeyExchange  HandshakeType = 12
	HandshakeTypeCertificateRequest HandshakeType = 13
	HandshakeTypeServerHelloDone    HandshakeType = 14
	HandshakeTypeCertificateVerify  HandshakeType = 15
	HandshakeTypeClientKeyExchange  HandshakeType = 16
	HandshakeTypeFinished           HandshakeType = 20
	HandshakeTypeKeyUpdate          HandshakeType = 24
	HandshakeTypeMessageHash        HandshakeType = 254
)

func (h HandshakeType) String() string {
	switch h {
	case HandshakeTypeHelloRequest:
		return "hello_request"
	case HandshakeTypeClientHello:
		return "client_hello"
	case HandshakeTypeServerHello:
		return "server_hello"
	case HandshakeTypeNewSessionTicket:
		return "new_session_ticket"
	case HandshakeTypeEndOfEarlyData:
		return "end_of_early_data"
	case HandshakeTypeEncryptedExtension:
		return "encrypted_extensions"
	case HandshakeTypeCertificate:
		return "certificate"
	case HandshakeTypeServerKeyExchange:
		return "server_key_exchange"
	case HandshakeTypeCertificateRequest:
		return "certificate_request"
	case HandshakeTypeServerHelloDone:
		return "server_hello_done"
	case HandshakeTypeCertificateVerify:
		return "certificate_verify"
	case HandshakeTypeClientKeyExchange:
		return "client_key_exchange"
	case HandshakeTypeFinished:
		return "finished"
	case HandshakeTypeKeyUpdate:
		return "key_update"
	case HandshakeTypeMessageHash:
		return "message_hash"
	default:
		return "unknown_handshake_type"
	}
}

// AlertLevel is the first byte of an Alert record payload.
type AlertLevel uint8

const (
	AlertLevelWarning AlertLevel = 1
	AlertLevelFatal   AlertLevel = 2
)

// AlertDescription is the second byte of an Alert record payload.
type AlertDescription uint8

const (
	AlertCloseNotify            AlertDescription = 0
	AlertUnexpectedMessage      AlertDescription = 10
	AlertBadRecordMac           AlertDescription = 20
	AlertRecordOverflow         AlertDescription = 22
	AlertHandshakeFailure       AlertDescription = 40
	AlertIllegalParameter       AlertDescription = 47
	AlertDecodeError            AlertDescription = 50
	AlertDecryptError           AlertDescription = 51
	AlertProtocolVersion        AlertDescription = 70
	AlertInsufficientSecurity   AlertDescription = 71
	AlertInternalError          AlertDescription = 80
	AlertInappropriateFallback  AlertDescription = 86
	AlertUserCanceled           AlertDescription = 90
	AlertNoRenegotiation        AlertDescription = 100
	AlertMissingExtension       AlertDescription = 109
	AlertUnsupportedExtension   AlertDescription = 110
	AlertCertificateRequired    AlertDescription = 116
	AlertNoApplicationProtocol  AlertDescription = 120
)

func (d AlertDescription) String() string {
	switch d {
	case AlertCloseNotify:
		return "close_notify"
	case AlertUnexpectedMessage:
		return "unexpected_message"
	case AlertBadRecordMac:
		return "bad_record_mac"
	case AlertRecordOverflow:
		return "record_overflow"
	case AlertHandshakeFailure:
		return "handshake_failure"
	case AlertIllegalParameter:
		return "illegal_parameter"
	case AlertDecodeError:
		return "decode_error"
	case AlertDecryptError:
		return "decrypt_error"
	case AlertProtocolVersion:
		return "protocol_version"
	case AlertInsufficientSecurity:
		return "insufficient_security"
	case AlertInternalError:
		return "internal_error"
	case AlertInappropriateFallback:
		return "inappropriate_fallback"
	case AlertUserCanceled:
		return "user_canceled"
	case AlertNoRenegotiation:
		return "no_renegotiation"
	case AlertMissingExtension:
		return "missing_extension"
	case AlertUnsupportedExtension:
		return "unsupported_extension"
	case AlertCertificateRequired:
		return "certificate_required"
	case AlertNoApplicationProtocol:
		return "no_application_protocol"
	default:
		return "unknown_alert"
	}
}

// SignatureScheme enumerates the subset of RFC 8446 signature
// schemes this package negotiates. Certificate/signature
// *verification* itself is an external collaborator; only the
// enumeration and suite compatibility table live here.
type SignatureScheme uint16

const (
	SignatureSchemeECDSAWithP256AndSHA256 SignatureScheme = 0x0403
	SignatureSchemeECDSAWithP384AndSHA384 SignatureScheme = 0x0503
	SignatureSchemeRSAPSSRSAEWithSHA256   SignatureScheme = 0x0804
	SignatureSchemeRSAPSSRSAEWithSHA384   SignatureScheme = 0x0805
	SignatureSchemeED25519                SignatureScheme = 0x0807
)

// SignatureAlgorithm is the coarser family a SignatureScheme belongs
// to, used by Tls12Suite.Sign compatibility checks.
type SignatureAlgorithm uint8

const (
	SignatureAlgorithmRSA     SignatureAlgorithm = 1
	SignatureAlgorithmECDSA   SignatureAlgorithm = 3
	SignatureAlgorithmED25519 SignatureAlgorithm = 7
)

func (s SignatureScheme) Algorithm() SignatureAlgorithm {
	switch s {
	case SignatureSchemeECDSAWithP256AndSHA256, SignatureSchemeECDSAWithP384AndSHA384:
		return SignatureAlgorithmECDSA
	case SignatureSchemeRSAPSSRSAEWithSHA256, SignatureSchemeRSAPSSRSAEWithSHA384:
		return SignatureAlgorithmRSA
	case SignatureSchemeED25519:
		return SignatureAlgorithmED25519
	default:
		return 0
	}
}
