package tlscore

import "bytes"

// Side names which end of the connection this process is.
type Side uint8

const (
	Client Side = iota
	Server
)

// Random is the 32-byte nonce exchanged in ClientHello/ServerHello.
type Random [32]byte

// downgradeSentinel is written into the last 8 bytes of a TLS-1.3-
// capable server's ServerHello.random when it ends up negotiating TLS
// 1.2, so a client that offered 1.3 can detect a downgrade attack
// (RFC 8446 §4.1.3).
var downgradeSentinel = [8]byte{0x44, 0x4f, 0x57, 0x4e, 0x47, 0x52, 0x44, 0x01}

// ConnectionRandoms holds both sides' Random values for the lifetime
// of a connection.
type ConnectionRandoms struct {
	side   Side
	Client Random
	Server Random
}

// NewConnectionRandoms constructs the pair, recording which side this
// process is so the downgrade-marker methods below can assert they're
// only ever called from the correct side.
func NewConnectionRandoms(side Side, client, server Random) *ConnectionRandoms {
	return &ConnectionRandoms{side: side, Client: client, Server: server}
}

// MarkDowngrade writes the downgrade sentinel into the server
// random's tail. Only a server negotiating TLS 1.2 after being
// willing to negotiate TLS 1.3 calls this; it panics if called from
// the client side. Together with IsDowngrade's inverse assertion this
// keeps either side from consulting the marker it is supposed to
// produce.
func (c *ConnectionRandoms) MarkDowngrade() {
	if c.side != Server {
		panic("tlscore: MarkDowngrade called on a client ConnectionRandoms")
	}
	copy(c.Server[24:], downgradeSentinel[:])
}

// IsDowngrade reports whether the server random's tail carries the
// downgrade sentinel. Only a client calls this; it panics from the
// server side for the same reason MarkDowngrade panics from the client
// side. Both the server random and the sentinel are public values, so
// this is an ordinary (non-constant-time) comparison.
func (c *ConnectionRandoms) IsDowngrade() bool {
	if c.side != Client {
		panic("tlscore: IsDowngrade called on a server ConnectionRandoms")
	}
	return bytes.Equal(c.Server[24:], downgradeSentinel[:])
}
