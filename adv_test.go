package pbgatt

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
)

func TestBeaconServiceData(t *testing.T) {
	b := Beacon{
		DeviceUUID: uuid.MustParse("70cf7c97-32a3-45b6-9149-4810d2e9cbf4"),
		OOBInfo:    OOBNumber | OOBOnBox,
	}

	sd := b.ServiceData()
	if len(sd) != 18 {
		t.Fatalf("len %v", len(sd))
	}
	if !bytes.Equal(sd[:16], b.DeviceUUID[:]) {
		t.Errorf("device uuid % X", sd[:16])
	}
	// oob information is big-endian
	if !bytes.Equal(sd[16:], []byte{0x08, 0x20}) {
		t.Errorf("oob info % X", sd[16:])
	}

	got, err := ParseBeacon(sd)
	if err != nil {
		t.Fatal(err)
	}
	if got != b {
		t.Errorf("got %+v want %+v", got, b)
	}
}

func TestParseBeacon(t *testing.T) {
	sd := append(make([]byte, 16), 0x80, 0x01)
	b, err := ParseBeacon(sd)
	if err != nil {
		t.Fatal(err)
	}
	if b.OOBInfo != OOBOnDevice|OOBOther {
		t.Errorf("oob info 0x%04x", b.OOBInfo)
	}

	if _, err := ParseBeacon(sd[:17]); err == nil {
		t.Error("short service data: no error")
	}
}
