package tlscore

// The two handshake drivers (handshake_client.go,
// handshake_server.go) are driven from conn.go's ProcessNewPackets
// loop rather than through a shared Go interface: the two roles'
// state enums, and the secrets each state transition carries, differ
// enough (client derives from a received ServerHello; server derives
// from a received ClientHello) that a single interface type bought
// nothing beyond what the two concrete drivers already give conn.go.
// What they do share is this role tag.
type handshakeRole int

const (
	roleClient handshakeRole = iota
	roleServer
)
