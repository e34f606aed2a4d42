package wire

import "encoding/binary"

// PlayerAttribute tags. Order is part of the wire contract; see
// spec.md's PlayerAttribute enumeration and SPEC_FULL.md §4.2 for why the
// mapping lives in exactly this one place.
const (
	AttrDeviceId uint32 = iota
	AttrColor
	AttrLanguage
	AttrEnvironment
	AttrHands
	AttrLevel
	AttrDevMode
	AttrVisibility
	AttrDeviceStats
	AttrAudioVolume
	AttrEnvironmentData
)

// HandTrackingState is the per-hand tracking confidence reported in an
// AttrHands payload.
type HandTrackingState uint8

const (
	HandUntracked HandTrackingState = iota
	HandTracked
	HandPredicted
)

// Color is an 8-bit-per-channel RGB tuple.
type Color struct {
	R, G, B uint8
}

// DeviceStats is a point-in-time snapshot of a headset's resource usage.
type DeviceStats struct {
	BatteryPct uint8
	CPUPct     uint8
	GPUPct     uint8
	TempC10    int16 // tenths of a degree Celsius
}

// PlayerAttribute is the closed tagged union carried inside a PlayerData
// inter-client payload. Exactly one field is meaningful, selected by Tag.
type PlayerAttribute struct {
	Tag uint32

	DeviceID        uint32
	Color           Color
	Language        string
	Environment     string
	HandLeft        HandTrackingState
	HandRight       HandTrackingState
	Level           int32
	DevMode         bool
	Visible         bool
	DeviceStats     DeviceStats
	AudioVolume     uint8
	EnvironmentData []byte
}

// DecodePlayerAttribute reads one tag-prefixed attribute from body and
// returns it along with the bytes following it.
func DecodePlayerAttribute(body []byte) (PlayerAttribute, []byte, error) {
	if len(body) < 4 {
		return PlayerAttribute{}, nil, errShort
	}
	tag := binary.LittleEndian.Uint32(body[:4])
	rest := body[4:]

	switch tag {
	case AttrDeviceId:
		if len(rest) < 4 {
			return PlayerAttribute{}, nil, errShort
		}
		v := binary.LittleEndian.Uint32(rest[:4])
		return PlayerAttribute{Tag: tag, DeviceID: v}, rest[4:], nil

	case AttrColor:
		if len(rest) < 3 {
			return PlayerAttribute{}, nil, errShort
		}
		c := Color{R: rest[0], G: rest[1], B: rest[2]}
		return PlayerAttribute{Tag: tag, Color: c}, rest[3:], nil

	case AttrLanguage:
		s, tail, err := decodeShortString(rest)
		if err != nil {
			return PlayerAttribute{}, nil, err
		}
		return PlayerAttribute{Tag: tag, Language: s}, tail, nil

	case AttrEnvironment:
		s, tail, err := decodeShortString(rest)
		if err != nil {
			return PlayerAttribute{}, nil, err
		}
		return PlayerAttribute{Tag: tag, Environment: s}, tail, nil

	case AttrHands:
		if len(rest) < 2 {
			return PlayerAttribute{}, nil, errShort
		}
		left, right := rest[0], rest[1]
		if left > uint8(HandPredicted) || right > uint8(HandPredicted) {
			return PlayerAttribute{}, nil, UnsupportedType{What: "hand tracking state", Value: uint32(left)}
		}
		return PlayerAttribute{Tag: tag, HandLeft: HandTrackingState(left), HandRight: HandTrackingState(right)}, rest[2:], nil

	case AttrLevel:
		if len(rest) < 4 {
			return PlayerAttribute{}, nil, errShort
		}
		v := int32(binary.LittleEndian.Uint32(rest[:4]))
		return PlayerAttribute{Tag: tag, Level: v}, rest[4:], nil

	case AttrDevMode:
		if len(rest) < 1 {
			return PlayerAttribute{}, nil, errShort
		}
		return PlayerAttribute{Tag: tag, DevMode: rest[0] != 0}, rest[1:], nil

	case AttrVisibility:
		if len(rest) < 1 {
			return PlayerAttribute{}, nil, errShort
		}
		return PlayerAttribute{Tag: tag, Visible: rest[0] != 0}, rest[1:], nil

	case AttrDeviceStats:
		if len(rest) < 5 {
			return PlayerAttribute{}, nil, errShort
		}
		stats := DeviceStats{
			BatteryPct: rest[0],
			CPUPct:     rest[1],
			GPUPct:     rest[2],
			TempC10:    int16(binary.LittleEndian.Uint16(rest[3:5])),
		}
		return PlayerAttribute{Tag: tag, DeviceStats: stats}, rest[5:], nil

	case AttrAudioVolume:
		if len(rest) < 1 {
			return PlayerAttribute{}, nil, errShort
		}
		return PlayerAttribute{Tag: tag, AudioVolume: rest[0]}, rest[1:], nil

	case AttrEnvironmentData:
		if len(rest) < 4 {
			return PlayerAttribute{}, nil, errShort
		}
		n := binary.LittleEndian.Uint32(rest[:4])
		rest = rest[4:]
		if uint32(len(rest)) < n {
			return PlayerAttribute{}, nil, errShort
		}
		return PlayerAttribute{Tag: tag, EnvironmentData: rest[:n]}, rest[n:], nil

	default:
		return PlayerAttribute{}, nil, UnsupportedType{What: "player attribute tag", Value: tag}
	}
}

func decodeShortString(body []byte) (string, []byte, error) {
	if len(body) < 2 {
		return "", nil, errShort
	}
	n := binary.LittleEndian.Uint16(body[:2])
	body = body[2:]
	if len(body) < int(n) {
		return "", nil, errShort
	}
	return string(body[:n]), body[n:], nil
}

func appendShortString(dst []byte, s string) []byte {
	dst = appendU16(dst, uint16(len(s)))
	return append(dst, s...)
}

// EncodePlayerAttribute appends attr's tag-prefixed wire encoding to dst.
func EncodePlayerAttribute(dst []byte, attr PlayerAttribute) []byte {
	dst = appendU32(dst, attr.Tag)
	switch attr.Tag {
	case AttrDeviceId:
		return appendU32(dst, attr.DeviceID)
	case AttrColor:
		return append(dst, attr.Color.R, attr.Color.G, attr.Color.B)
	case AttrLanguage:
		return appendShortString(dst, attr.Language)
	case AttrEnvironment:
		return appendShortString(dst, attr.Environment)
	case AttrHands:
		return append(dst, uint8(attr.HandLeft), uint8(attr.HandRight))
	case AttrLevel:
		return appendU32(dst, uint32(attr.Level))
	case AttrDevMode:
		return append(dst, boolByte(attr.DevMode))
	case AttrVisibility:
		return append(dst, boolByte(attr.Visible))
	case AttrDeviceStats:
		dst = append(dst, attr.DeviceStats.BatteryPct, attr.DeviceStats.CPUPct, attr.DeviceStats.GPUPct)
		return appendU16(dst, uint16(attr.DeviceStats.TempC10))
	case AttrAudioVolume:
		return append(dst, attr.AudioVolume)
	case AttrEnvironmentData:
		dst = appendU32(dst, uint32(len(attr.EnvironmentData)))
		return append(dst, attr.EnvironmentData...)
	default:
		return dst
	}
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// PlayerDataMsg is the payload carried by inter-client kind 0 (PlayerData).
// Notify announces a changed attribute; Set requests the server-side model
// adopt it; Request asks a peer to re-announce one attribute tag.
type PlayerDataMsg struct {
	Kind  PlayerDataMsgKind
	Attr  PlayerAttribute // valid for Notify/Set
	Query uint32          // attribute tag, valid for Request
}

type PlayerDataMsgKind uint32

const (
	PlayerDataNotify PlayerDataMsgKind = iota
	PlayerDataSet
	PlayerDataRequest
)

// DecodePlayerDataMsg parses one PlayerDataMsg from the bytes following an
// inter-client kind-0 discriminant.
func DecodePlayerDataMsg(body []byte) (PlayerDataMsg, error) {
	if len(body) < 4 {
		return PlayerDataMsg{}, errShort
	}
	kind := binary.LittleEndian.Uint32(body[:4])
	rest := body[4:]

	switch PlayerDataMsgKind(kind) {
	case PlayerDataNotify:
		attr, _, err := DecodePlayerAttribute(rest)
		if err != nil {
			return PlayerDataMsg{}, err
		}
		return PlayerDataMsg{Kind: PlayerDataNotify, Attr: attr}, nil
	case PlayerDataSet:
		attr, _, err := DecodePlayerAttribute(rest)
		if err != nil {
			return PlayerDataMsg{}, err
		}
		return PlayerDataMsg{Kind: PlayerDataSet, Attr: attr}, nil
	case PlayerDataRequest:
		if len(rest) < 4 {
			return PlayerDataMsg{}, errShort
		}
		tag := binary.LittleEndian.Uint32(rest[:4])
		if tag > AttrEnvironmentData {
			return PlayerDataMsg{}, UnsupportedType{What: "player attribute tag", Value: tag}
		}
		return PlayerDataMsg{Kind: PlayerDataRequest, Query: tag}, nil
	default:
		return PlayerDataMsg{}, UnsupportedType{What: "player data message kind", Value: kind}
	}
}

// EncodePlayerDataMsg serializes msg as the body of an inter-client kind-0
// payload (the kind-0 discriminant itself is written by EncodeInterClient).
func EncodePlayerDataMsg(msg PlayerDataMsg) []byte {
	switch msg.Kind {
	case PlayerDataNotify, PlayerDataSet:
		dst := appendU32(nil, uint32(msg.Kind))
		return EncodePlayerAttribute(dst, msg.Attr)
	case PlayerDataRequest:
		dst := appendU32(nil, uint32(msg.Kind))
		return appendU32(dst, msg.Query)
	default:
		return nil
	}
}
