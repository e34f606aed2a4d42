package wire

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

func TestPlayerAttributeRoundtrip(t *testing.T) {
	cases := []PlayerAttribute{
		{Tag: AttrDeviceId, DeviceID: 0xabc123},
		{Tag: AttrColor, Color: Color{R: 1, G: 2, B: 3}},
		{Tag: AttrLanguage, Language: "en-GB"},
		{Tag: AttrEnvironment, Environment: "warehouse-3"},
		{Tag: AttrHands, HandLeft: HandTracked, HandRight: HandPredicted},
		{Tag: AttrLevel, Level: -42},
		{Tag: AttrDevMode, DevMode: true},
		{Tag: AttrVisibility, Visible: false},
		{Tag: AttrDeviceStats, DeviceStats: DeviceStats{BatteryPct: 80, CPUPct: 20, GPUPct: 55, TempC10: -15}},
		{Tag: AttrAudioVolume, AudioVolume: 75},
		{Tag: AttrEnvironmentData, EnvironmentData: []byte{1, 2, 3, 4}},
	}
	for _, c := range cases {
		raw := EncodePlayerAttribute(nil, c)
		got, rest, err := DecodePlayerAttribute(raw)
		if err != nil {
			t.Fatalf("tag %d: decode: %v", c.Tag, err)
		}
		if len(rest) != 0 {
			t.Fatalf("tag %d: leftover bytes %v", c.Tag, rest)
		}
		if !reflect.DeepEqual(got, c) {
			t.Fatalf("tag %d: got %+v, want %+v", c.Tag, got, c)
		}
	}
}

func TestPlayerAttributeUnknownTag(t *testing.T) {
	raw := appendU32(nil, 99)
	_, _, err := DecodePlayerAttribute(raw)
	var ut UnsupportedType
	if !errors.As(err, &ut) {
		t.Fatalf("expected UnsupportedType, got %v", err)
	}
}

func TestPlayerAttributeIllegalHandState(t *testing.T) {
	raw := appendU32(nil, AttrHands)
	raw = append(raw, 5, 0)
	_, _, err := DecodePlayerAttribute(raw)
	if err == nil {
		t.Fatalf("expected error for out-of-range hand tracking state")
	}
}

func TestPlayerDataMsgRoundtrip(t *testing.T) {
	notify := PlayerDataMsg{Kind: PlayerDataNotify, Attr: PlayerAttribute{Tag: AttrLevel, Level: 7}}
	raw := EncodePlayerDataMsg(notify)
	got, err := DecodePlayerDataMsg(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Kind != PlayerDataNotify || got.Attr.Level != 7 {
		t.Fatalf("mismatch: %+v", got)
	}

	req := PlayerDataMsg{Kind: PlayerDataRequest, Query: AttrColor}
	raw2 := EncodePlayerDataMsg(req)
	got2, err := DecodePlayerDataMsg(raw2)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got2.Kind != PlayerDataRequest || got2.Query != AttrColor {
		t.Fatalf("mismatch: %+v", got2)
	}
}

func TestInterClientPayloadRoundtrip(t *testing.T) {
	ping := InterClientPayload{Kind: InterClientPing}
	raw := EncodeInterClient(ping)
	got, err := DecodeInterClient(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Kind != InterClientPing {
		t.Fatalf("mismatch: %+v", got)
	}

	bulk := InterClientPayload{Kind: InterClientAllPlayerData, AllData: []byte{1, 2, 3}}
	raw2 := EncodeInterClient(bulk)
	got2, err := DecodeInterClient(raw2)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(got2.AllData, bulk.AllData) {
		t.Fatalf("mismatch: %+v", got2)
	}
}

func TestInterClientPayloadUnknownKind(t *testing.T) {
	raw := appendU32(nil, 77)
	_, err := DecodeInterClient(raw)
	var ut UnsupportedType
	if !errors.As(err, &ut) {
		t.Fatalf("expected UnsupportedType, got %v", err)
	}
}
