package controls

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeGlobalFixture(t *testing.T, dir string) {
	t.Helper()
	empty := file{}
	data, err := json.Marshal(empty)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range globalFiles {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestLoadMergesGlobalFiles(t *testing.T) {
	dir := t.TempDir()

	start := file{"CDU": {"CDU_PWR": {Identifier: "CDU_PWR", Category: "CDU", Outputs: []RawOutput{
		{Address: 0x10, Type: "integer", Mask: 0x0001},
	}}}}
	writeFixture(t, filepath.Join(dir, "MetadataStart.json"), start)
	writeFixture(t, filepath.Join(dir, "MetadataEnd.json"), file{})
	writeFixture(t, filepath.Join(dir, "CommonData.json"), file{})

	defs, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	mirror := make([]byte, 65536)
	mirror[0x10] = 0x01

	outs, err := defs.ControlOutputs("CDU_PWR", mirror)
	if err != nil {
		t.Fatalf("ControlOutputs: %v", err)
	}
	if len(outs) != 1 || outs[0].Integer == nil || *outs[0].Integer != 1 {
		t.Fatalf("unexpected outputs: %+v", outs)
	}
}

func TestLoadAircraftRejectsUnknownName(t *testing.T) {
	dir := t.TempDir()
	writeGlobalFixture(t, dir)

	defs, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := defs.LoadAircraft("NotARealJet"); err == nil {
		t.Fatal("expected error loading an unknown airframe")
	}
}

func TestGlobalTakesPrecedenceOverAirframe(t *testing.T) {
	dir := t.TempDir()

	globalData := file{"X": {"SHARED": {Identifier: "SHARED", Outputs: []RawOutput{
		{Address: 0, Type: "integer", Mask: 0xFFFF},
	}}}}
	writeFixture(t, filepath.Join(dir, "MetadataStart.json"), globalData)
	writeFixture(t, filepath.Join(dir, "MetadataEnd.json"), file{})
	writeFixture(t, filepath.Join(dir, "CommonData.json"), file{})

	airframeData := file{"X": {"SHARED": {Identifier: "SHARED", Outputs: []RawOutput{
		{Address: 2, Type: "integer", Mask: 0xFFFF},
	}}}}
	writeFixture(t, filepath.Join(dir, "F-14B.json"), airframeData)

	defs, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := defs.LoadAircraft("F-14B"); err != nil {
		t.Fatalf("LoadAircraft: %v", err)
	}

	mirror := make([]byte, 65536)
	mirror[0] = 0xAA
	mirror[1] = 0x00
	mirror[2] = 0xBB
	mirror[3] = 0x00

	outs, err := defs.ControlOutputs("SHARED", mirror)
	if err != nil {
		t.Fatalf("ControlOutputs: %v", err)
	}
	if *outs[0].Integer != 0xAA {
		t.Fatalf("expected global definition (address 0) to win, got %x", *outs[0].Integer)
	}
}

func TestDecodeStringTruncatesAtNUL(t *testing.T) {
	mirror := make([]byte, 65536)
	copy(mirror[100:], []byte("UFC\x00\x00\x00"))

	od := OutputDef{Kind: OutputString, Address: 100, MaxLength: 6}
	s, ok := decodeString(od, mirror)
	if !ok || s != "UFC" {
		t.Fatalf("expected %q, got %q ok=%v", "UFC", s, ok)
	}
}

func TestDecodeIntegerAppliesMaskAndShift(t *testing.T) {
	mirror := make([]byte, 65536)
	mirror[50] = 0b1111_0000
	mirror[51] = 0x00

	od := OutputDef{Kind: OutputInteger, Address: 50, Mask: 0b1111_0000, Shift: 4}
	v, ok := decodeInteger(od, mirror)
	if !ok || v != 0b1111 {
		t.Fatalf("expected 15, got %d ok=%v", v, ok)
	}
}

func TestInputValueWireRendering(t *testing.T) {
	cases := []struct {
		v    InputValue
		want string
	}{
		{InputValue{Kind: InputValueIncrease}, "INC"},
		{InputValue{Kind: InputValueDecrease}, "DEC"},
		{InputValue{Kind: InputValueToggle}, "TOGGLE"},
		{InputValue{Kind: InputValueInteger, Integer: 42}, "42"},
	}
	for _, c := range cases {
		if got := c.v.String(); got != c.want {
			t.Errorf("String() = %q, want %q", got, c.want)
		}
	}
}

func writeFixture(t *testing.T, path string, f file) {
	t.Helper()
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
}
