package wire

// NetworkVersion is the fixed byte string prefixing every client->server
// connection's prelude. A mismatching prefix terminates the connection
// silently, with no frames sent or broadcast. This is an opaque
// compatibility token, not a semantic version — bump it to force
// incompatible clients away.
var NetworkVersion = []byte(networkVersion)

const networkVersion = "MUCO\x01"

// PreludeSize is the number of bytes a newly-accepted connection must send
// before anything else: NetworkVersion followed by a little-endian
// device_id:u32.
const PreludeSize = len(networkVersion) + 4
