package wire

import (
	"encoding/binary"
	"fmt"
)

// SessionID identifies a connected client for the lifetime of its session.
type SessionID uint16

// FactKey names one slot in the shared model: a room, the session that
// created it, and an index scoping it among facts of the same creator.
type FactKey struct {
	Room    uint8
	Creator SessionID
	Index   uint16
}

// ClientType distinguishes ordinary players from manager/observer clients.
type ClientType uint32

const (
	ClientTypePlayer  ClientType = 0
	ClientTypeManager ClientType = 1
)

// AddressKind selects how a BinaryMessageTo is routed.
type AddressKind uint8

const (
	AddressAll AddressKind = iota
	AddressOther
	AddressClient
)

// Address is the closed sum type client<->server messages route against.
type Address struct {
	Kind   AddressKind
	Client SessionID // only meaningful when Kind == AddressClient
}

// Includes reports whether a message addressed this way should reach sid,
// given the sending session that originated it.
func (a Address) Includes(sid, sender SessionID) bool {
	switch a.Kind {
	case AddressAll:
		return true
	case AddressOther:
		return sid != sender
	case AddressClient:
		return sid == a.Client
	default:
		return false
	}
}

// ClientToServer is the closed set of messages a client may send.
type ClientToServer interface {
	isClientToServer()
}

type MsgDisconnect struct{}

type MsgBinaryMessageTo struct {
	To    Address
	Bytes []byte
}

type MsgSetClientType struct {
	Type ClientType
}

type MsgKick struct {
	Target SessionID
}

type MsgSetData struct {
	Key  FactKey
	Data []byte
}

type MsgClaimData struct {
	Key FactKey
}

func (MsgDisconnect) isClientToServer()      {}
func (MsgBinaryMessageTo) isClientToServer() {}
func (MsgSetClientType) isClientToServer()   {}
func (MsgKick) isClientToServer()            {}
func (MsgSetData) isClientToServer()         {}
func (MsgClaimData) isClientToServer()       {}

// Client->server discriminants.
const (
	tagDisconnect       = 0
	tagBinaryToAll      = 1
	tagBinaryToOther    = 2
	tagBinaryToClient   = 3
	tagSetClientType    = 4
	tagKick             = 5
	tagSetData          = 6
	tagClaimData        = 7
)

// UnsupportedType is returned when a decoder sees a discriminant or enum
// value outside the closed set a message type defines.
type UnsupportedType struct {
	What  string
	Value uint32
}

func (e UnsupportedType) Error() string {
	return fmt.Sprintf("wire: unsupported %s: %d", e.What, e.Value)
}

// errShort means the buffer ended before a field could be read.
var errShort = fmt.Errorf("wire: message body too short")

// DecodeClientToServer parses one client->server message from a frame
// payload (the bytes between a frame's length prefix and its end). sender
// is the session that owns the connection the frame was read from; it is
// substituted into Address{Kind: AddressOther}.
func DecodeClientToServer(payload []byte, sender SessionID) (ClientToServer, error) {
	if len(payload) < 4 {
		return nil, errShort
	}
	tag := binary.LittleEndian.Uint32(payload[:4])
	body := payload[4:]

	switch tag {
	case tagDisconnect:
		return MsgDisconnect{}, nil
	case tagBinaryToAll:
		return MsgBinaryMessageTo{To: Address{Kind: AddressAll}, Bytes: body}, nil
	case tagBinaryToOther:
		return MsgBinaryMessageTo{To: Address{Kind: AddressOther, Client: sender}, Bytes: body}, nil
	case tagBinaryToClient:
		if len(body) < 2 {
			return nil, errShort
		}
		sid := SessionID(binary.LittleEndian.Uint16(body[:2]))
		return MsgBinaryMessageTo{To: Address{Kind: AddressClient, Client: sid}, Bytes: body[2:]}, nil
	case tagSetClientType:
		if len(body) < 4 {
			return nil, errShort
		}
		t := binary.LittleEndian.Uint32(body[:4])
		if t != uint32(ClientTypePlayer) && t != uint32(ClientTypeManager) {
			return nil, UnsupportedType{What: "client type", Value: t}
		}
		return MsgSetClientType{Type: ClientType(t)}, nil
	case tagKick:
		if len(body) < 2 {
			return nil, errShort
		}
		return MsgKick{Target: SessionID(binary.LittleEndian.Uint16(body[:2]))}, nil
	case tagSetData:
		key, rest, err := decodeFactKey(body)
		if err != nil {
			return nil, err
		}
		return MsgSetData{Key: key, Data: rest}, nil
	case tagClaimData:
		key, _, err := decodeFactKey(body)
		if err != nil {
			return nil, err
		}
		return MsgClaimData{Key: key}, nil
	default:
		return nil, UnsupportedType{What: "client->server message type", Value: tag}
	}
}

func decodeFactKey(body []byte) (FactKey, []byte, error) {
	if len(body) < 5 {
		return FactKey{}, nil, errShort
	}
	room := body[0]
	creator := binary.LittleEndian.Uint16(body[1:3])
	index := binary.LittleEndian.Uint16(body[3:5])
	return FactKey{Room: room, Creator: SessionID(creator), Index: index}, body[5:], nil
}

func appendFactKey(dst []byte, key FactKey) []byte {
	dst = append(dst, key.Room)
	dst = appendU16(dst, uint16(key.Creator))
	dst = appendU16(dst, key.Index)
	return dst
}

// decodeFactKeyWithComponent reads the 6-byte (room, component_type,
// creator, index) identity carried by Hello and DataNotify — wider than
// the 5-byte ownership-guard FactKey since component_type rides along on
// the wire without participating in model lookups or ownership.
func decodeFactKeyWithComponent(body []byte) (FactKey, uint8, []byte, error) {
	if len(body) < 6 {
		return FactKey{}, 0, nil, errShort
	}
	room := body[0]
	componentType := body[1]
	creator := binary.LittleEndian.Uint16(body[2:4])
	index := binary.LittleEndian.Uint16(body[4:6])
	return FactKey{Room: room, Creator: SessionID(creator), Index: index}, componentType, body[6:], nil
}

func appendFactKeyWithComponent(dst []byte, key FactKey, componentType uint8) []byte {
	dst = append(dst, key.Room, componentType)
	dst = appendU16(dst, uint16(key.Creator))
	dst = appendU16(dst, key.Index)
	return dst
}

func appendU16(dst []byte, v uint16) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return append(dst, b[:]...)
}

func appendU32(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

// EncodeClientToServer serializes msg as a frame payload (without the
// length prefix; wrap with AppendFrame to send on the wire).
func EncodeClientToServer(msg ClientToServer) []byte {
	switch m := msg.(type) {
	case MsgDisconnect:
		return appendU32(nil, tagDisconnect)
	case MsgBinaryMessageTo:
		switch m.To.Kind {
		case AddressAll:
			dst := appendU32(nil, tagBinaryToAll)
			return append(dst, m.Bytes...)
		case AddressOther:
			dst := appendU32(nil, tagBinaryToOther)
			return append(dst, m.Bytes...)
		case AddressClient:
			dst := appendU32(nil, tagBinaryToClient)
			dst = appendU16(dst, uint16(m.To.Client))
			return append(dst, m.Bytes...)
		}
	case MsgSetClientType:
		dst := appendU32(nil, tagSetClientType)
		return appendU32(dst, uint32(m.Type))
	case MsgKick:
		dst := appendU32(nil, tagKick)
		return appendU16(dst, uint16(m.Target))
	case MsgSetData:
		dst := appendU32(nil, tagSetData)
		dst = appendFactKey(dst, m.Key)
		return append(dst, m.Data...)
	case MsgClaimData:
		dst := appendU32(nil, tagClaimData)
		return appendFactKey(dst, m.Key)
	}
	panic(fmt.Sprintf("wire: unencodable client->server message %T", msg))
}

// ServerToClient is the closed set of messages the server may send.
type ServerToClient interface {
	isServerToClient()
}

// HelloFact is one snapshot entry carried in a Hello message. ComponentType
// rides alongside the (room, creator, index) identity on the wire but is
// not part of the model's lookup key — see DESIGN.md's resolution of the
// component_type/ownership-guard question.
type HelloFact struct {
	Key           FactKey
	ComponentType uint8
	Data          []byte
}

type MsgHello struct {
	Session SessionID
	Facts   []HelloFact
}

type MsgClientConnected struct {
	Session SessionID
}

type MsgClientDisconnected struct {
	Session SessionID
}

type MsgInterClient struct {
	Sender SessionID
	Bytes  []byte
}

type MsgDataNotify struct {
	Key           FactKey
	ComponentType uint8
	Data          []byte
}

type MsgDataOwner struct {
	Key   FactKey
	Owner SessionID
}

func (MsgHello) isServerToClient()               {}
func (MsgClientConnected) isServerToClient()     {}
func (MsgClientDisconnected) isServerToClient()  {}
func (MsgInterClient) isServerToClient()         {}
func (MsgDataNotify) isServerToClient()          {}
func (MsgDataOwner) isServerToClient()           {}

// Server->client discriminants.
const (
	tagHello               = 0
	tagClientConnected     = 1
	tagClientDisconnected  = 2
	tagInterClient         = 3
	tagDataNotify          = 4
	tagDataOwner           = 5
)

// EncodeServerToClient serializes msg as a frame payload.
func EncodeServerToClient(msg ServerToClient) []byte {
	switch m := msg.(type) {
	case MsgHello:
		dst := appendU32(nil, tagHello)
		dst = appendU16(dst, uint16(m.Session))
		dst = appendU32(dst, uint32(len(m.Facts)))
		for _, f := range m.Facts {
			dst = appendFactKeyWithComponent(dst, f.Key, f.ComponentType)
			dst = appendU32(dst, uint32(len(f.Data)))
			dst = append(dst, f.Data...)
		}
		return dst
	case MsgClientConnected:
		dst := appendU32(nil, tagClientConnected)
		return appendU16(dst, uint16(m.Session))
	case MsgClientDisconnected:
		dst := appendU32(nil, tagClientDisconnected)
		return appendU16(dst, uint16(m.Session))
	case MsgInterClient:
		dst := appendU32(nil, tagInterClient)
		dst = appendU16(dst, uint16(m.Sender))
		return append(dst, m.Bytes...)
	case MsgDataNotify:
		dst := appendU32(nil, tagDataNotify)
		dst = appendFactKeyWithComponent(dst, m.Key, m.ComponentType)
		return append(dst, m.Data...)
	case MsgDataOwner:
		dst := appendU32(nil, tagDataOwner)
		dst = appendFactKey(dst, m.Key)
		return appendU16(dst, uint16(m.Owner))
	}
	panic(fmt.Sprintf("wire: unencodable server->client message %T", msg))
}

// DecodeServerToClient parses one server->client message. Used by client
// connections and by the replay tooling reading a recorded log.
func DecodeServerToClient(payload []byte) (ServerToClient, error) {
	if len(payload) < 4 {
		return nil, errShort
	}
	tag := binary.LittleEndian.Uint32(payload[:4])
	body := payload[4:]

	switch tag {
	case tagHello:
		if len(body) < 6 {
			return nil, errShort
		}
		session := SessionID(binary.LittleEndian.Uint16(body[:2]))
		count := binary.LittleEndian.Uint32(body[2:6])
		rest := body[6:]
		facts := make([]HelloFact, 0, count)
		for i := uint32(0); i < count; i++ {
			key, componentType, tail, err := decodeFactKeyWithComponent(rest)
			if err != nil {
				return nil, err
			}
			if len(tail) < 4 {
				return nil, errShort
			}
			n := binary.LittleEndian.Uint32(tail[:4])
			tail = tail[4:]
			if uint32(len(tail)) < n {
				return nil, errShort
			}
			facts = append(facts, HelloFact{Key: key, ComponentType: componentType, Data: tail[:n]})
			rest = tail[n:]
		}
		return MsgHello{Session: session, Facts: facts}, nil
	case tagClientConnected:
		if len(body) < 2 {
			return nil, errShort
		}
		return MsgClientConnected{Session: SessionID(binary.LittleEndian.Uint16(body[:2]))}, nil
	case tagClientDisconnected:
		if len(body) < 2 {
			return nil, errShort
		}
		return MsgClientDisconnected{Session: SessionID(binary.LittleEndian.Uint16(body[:2]))}, nil
	case tagInterClient:
		if len(body) < 2 {
			return nil, errShort
		}
		sender := SessionID(binary.LittleEndian.Uint16(body[:2]))
		return MsgInterClient{Sender: sender, Bytes: body[2:]}, nil
	case tagDataNotify:
		key, componentType, rest, err := decodeFactKeyWithComponent(body)
		if err != nil {
			return nil, err
		}
		return MsgDataNotify{Key: key, ComponentType: componentType, Data: rest}, nil
	case tagDataOwner:
		key, rest, err := decodeFactKey(body)
		if err != nil {
			return nil, err
		}
		if len(rest) < 2 {
			return nil, errShort
		}
		return MsgDataOwner{Key: key, Owner: SessionID(binary.LittleEndian.Uint16(rest[:2]))}, nil
	default:
		return nil, UnsupportedType{What: "server->client message type", Value: tag}
	}
}
