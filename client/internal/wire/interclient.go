package wire

import "encoding/binary"

// Inter-client payload kinds, carried opaquely inside a server->client
// InterClient message (or the BinaryMessageTo body a client sends to
// produce one).
const (
	InterClientPlayerData    uint32 = 0
	InterClientPing          uint32 = 2
	InterClientAllPlayerData uint32 = 3
	InterClientDiff          uint32 = 4
)

// InterClientPayload is the decoded form of the bytes carried by a
// server->client InterClient message (or the matching BinaryMessageTo body
// a client sends). Exactly one field is meaningful, selected by Kind.
type InterClientPayload struct {
	Kind uint32

	PlayerData PlayerDataMsg
	AllData    []byte // raw bulk blob for kind 3
	Diff       []byte // raw VLQ diff stream for kind 4
}

// DecodeInterClient parses the kind-prefixed bytes carried by an
// InterClient message.
func DecodeInterClient(body []byte) (InterClientPayload, error) {
	if len(body) < 4 {
		return InterClientPayload{}, errShort
	}
	kind := binary.LittleEndian.Uint32(body[:4])
	rest := body[4:]

	switch kind {
	case InterClientPlayerData:
		pd, err := DecodePlayerDataMsg(rest)
		if err != nil {
			return InterClientPayload{}, err
		}
		return InterClientPayload{Kind: kind, PlayerData: pd}, nil
	case InterClientPing:
		return InterClientPayload{Kind: kind}, nil
	case InterClientAllPlayerData:
		return InterClientPayload{Kind: kind, AllData: rest}, nil
	case InterClientDiff:
		return InterClientPayload{Kind: kind, Diff: rest}, nil
	default:
		return InterClientPayload{}, UnsupportedType{What: "inter-client payload kind", Value: kind}
	}
}

// EncodeInterClient serializes p as the bytes to carry inside an
// InterClient / BinaryMessageTo body.
func EncodeInterClient(p InterClientPayload) []byte {
	switch p.Kind {
	case InterClientPlayerData:
		dst := appendU32(nil, p.Kind)
		return append(dst, EncodePlayerDataMsg(p.PlayerData)...)
	case InterClientPing:
		return appendU32(nil, p.Kind)
	case InterClientAllPlayerData:
		dst := appendU32(nil, p.Kind)
		return append(dst, p.AllData...)
	case InterClientDiff:
		dst := appendU32(nil, p.Kind)
		return append(dst, p.Diff...)
	default:
		return nil
	}
}
