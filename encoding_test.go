package fastmodbus

import (
	"bytes"
	"testing"
)

func TestUint16Conversions(t *testing.T) {
	var out []byte
	var values []uint16

	out = uint16ToBytes(0x1234)
	if !bytes.Equal(out, []byte{0x12, 0x34}) {
		t.Errorf("expected {0x12, 0x34}, got %v", out)
	}

	out = uint16sToBytes([]uint16{0x0102, 0xa0b0})
	if !bytes.Equal(out, []byte{0x01, 0x02, 0xa0, 0xb0}) {
		t.Errorf("unexpected bytes %v", out)
	}

	values = bytesToUint16s(out)
	if len(values) != 2 || values[0] != 0x0102 || values[1] != 0xa0b0 {
		t.Errorf("unexpected values %v", values)
	}

	// a trailing odd byte is ignored
	values = bytesToUint16s([]byte{0x01, 0x02, 0x03})
	if len(values) != 1 || values[0] != 0x0102 {
		t.Errorf("unexpected values %v", values)
	}

	out = uint32ToBytes(0x1234abcd)
	if !bytes.Equal(out, []byte{0x12, 0x34, 0xab, 0xcd}) {
		t.Errorf("unexpected bytes %v", out)
	}

	return
}

func TestDecodeBits(t *testing.T) {
	var out []bool

	// low bit first within each byte
	out = decodeBits(10, []byte{0x05, 0x02})
	for i, expected := range []bool{
		true, false, true, false, false, false, false, false,
		false, true,
	} {
		if out[i] != expected {
			t.Errorf("expected %v at bit %v, got %v", expected, i, out[i])
		}
	}

	if len(decodeBits(0, nil)) != 0 {
		t.Error("expected no entries for a zero quantity")
	}

	return
}

func TestBytesToString(t *testing.T) {
	if s := bytesToString([]byte("WB-MR6C\x00\x00\x00")); s != "WB-MR6C" {
		t.Errorf("expected 'WB-MR6C', got '%s'", s)
	}

	if s := bytesToString([]byte("WB-MSW v.3   ")); s != "WB-MSW v.3" {
		t.Errorf("expected 'WB-MSW v.3', got '%s'", s)
	}

	if s := bytesToString(nil); s != "" {
		t.Errorf("expected an empty string, got '%s'", s)
	}

	return
}

func TestHexDump(t *testing.T) {
	if s := hexDump([]byte{0xfd, 0x46, 0x08}); s != "0xFD 0x46 0x08" {
		t.Errorf("unexpected dump '%s'", s)
	}

	if s := hexDump(nil); s != "" {
		t.Errorf("expected an empty dump, got '%s'", s)
	}

	return
}
