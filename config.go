package tlscore

// Config is the shared, immutable-once-built set of policy knobs a
// Conn is constructed from: one flat struct serving both roles,
// validated once and then safe to share across any number of
// connections.
type Config struct {
	// Tls12CipherSuites and Tls13CipherSuites list the suites this
	// side is willing to negotiate, most preferred first. At least
	// one of the two must be non-empty.
	Tls12CipherSuites []*Tls12Suite
	Tls13CipherSuites []*Tls13Suite

	// KXGroups lists the key-exchange groups usable for ECDHE/the
	// TLS 1.3 key_share extension, most preferred first. Must be
	// non-empty.
	KXGroups []KXGroup

	// Versions lists the protocol versions this side offers/accepts.
	// Defaults to DefaultVersions when nil.
	Versions []SupportedProtocolVersion

	// Verifier authenticates the server's certificate chain and
	// handshake signature; only the client side consults it. A client
	// with a nil Verifier accepts the server's chain and signature
	// unchecked. The server never requests or verifies a client
	// certificate.
	Verifier Verifier

	// Resolver selects the server's certificate chain and key; the
	// server handshake fails without one. Only the server side
	// consults it: the client never sends a certificate.
	Resolver Resolver

	// ALPNProtocols lists the application protocols this side is
	// willing to negotiate, most preferred first. May be empty.
	ALPNProtocols []string

	// MaxFragmentSize bounds outgoing plaintext record size. nil
	// means the protocol default (2^14).
	MaxFragmentSize *int

	// SessionStore persists session tickets/IDs for resumption. nil
	// disables resumption on this side.
	SessionStore SessionStore

	// KeyLog, when non-nil, receives TLS keylog lines for offline
	// decryption (NSS key log format).
	KeyLog KeyLogWriter

	// EnableSNI controls whether a client sends server_name.
	EnableSNI bool

	// EnableEarlyData controls whether 0-RTT is offered/accepted.
	EnableEarlyData bool

	// EnableSessionTickets controls whether TLS 1.2 session tickets
	// (RFC 5077) are offered/issued, independent of SessionStore
	// (which also backs TLS 1.3 PSK resumption).
	EnableSessionTickets bool

	// ExtendedMasterSecret records intent to require RFC 7627's
	// extended master secret for TLS 1.2 connections. The hello codec
	// carries no extended_master_secret slot yet, so the field does
	// not change derivation today.
	ExtendedMasterSecret bool
}

// Validate checks a Config carries at least one usable cipher suite
// and at least one key-exchange group, and that any configured
// MaxFragmentSize is legal.
func (c *Config) Validate() *Error {
	if len(c.Tls12CipherSuites) == 0 && len(c.Tls13CipherSuites) == 0 {
		return errGeneral("config has no usable cipher suites")
	}
	if len(c.KXGroups) == 0 {
		return errGeneral("config has no key-exchange groups")
	}
	if c.MaxFragmentSize != nil {
		if *c.MaxFragmentSize < 32 || *c.MaxFragmentSize > maxPlaintextLen {
			return errBadMaxFragmentSize()
		}
	}
	return nil
}

// versions returns c.Versions, defaulting to DefaultVersions.
func (c *Config) versions() []SupportedProtocolVersion {
	if len(c.Versions) != 0 {
		return c.Versions
	}
	return DefaultVersions
}

// supportsVersion reports whether v is among c.versions().
func (c *Config) supportsVersion(v ProtocolVersion) bool {
	for _, sv := range c.versions() {
		if sv.Version == v {
			return true
		}
	}
	return false
}

// registry builds the SupportedCipherSuite registry this Config
// exposes to suite negotiation (suite.go's ChooseCiphersuitePreferring*).
func (c *Config) registry() *Registry {
	reg := &Registry{KXGroups: c.KXGroups}
	for _, s := range c.Tls13CipherSuites {
		reg.TLS13Suites = append(reg.TLS13Suites, WrapTls13(s))
	}
	for _, s := range c.Tls12CipherSuites {
		reg.TLS12Suites = append(reg.TLS12Suites, WrapTls12(s))
	}
	return reg
}

// findKXGroup looks up a configured KXGroup by NamedGroup, for
// matching a peer's key_share/supported_groups offer.
func (c *Config) findKXGroup(name NamedGroup) KXGroup {
	for _, g := range c.KXGroups {
		if g.ID() == name {
			return g
		}
	}
	return nil
}
