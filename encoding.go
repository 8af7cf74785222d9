package fastmodbus

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// All multi-byte protocol fields are big-endian; only the trailing CRC is
// little-endian. The asymmetry is part of the wire format.

func uint16ToBytes(in uint16) (out []byte) {
	out = make([]byte, 2)
	binary.BigEndian.PutUint16(out, in)

	return
}

func uint16sToBytes(in []uint16) (out []byte) {
	for i := range in {
		out = append(out, uint16ToBytes(in[i])...)
	}

	return
}

func bytesToUint16s(in []byte) (out []uint16) {
	for i := 0; i+2 <= len(in); i += 2 {
		out = append(out, binary.BigEndian.Uint16(in[i:i+2]))
	}

	return
}

func uint32ToBytes(in uint32) (out []byte) {
	out = make([]byte, 4)
	binary.BigEndian.PutUint32(out, in)

	return
}

// Unpacks quantity bits out of a low-bit-first bitmap, one bool per bit.
func decodeBits(quantity uint, in []byte) (out []bool) {
	for i := uint(0); i < quantity; i++ {
		out = append(out, in[i/8]>>(i%8)&0x01 == 0x01)
	}

	return
}

// Decodes a register block holding an ASCII string, dropping trailing
// padding (spaces and NULs).
func bytesToString(in []byte) (out string) {
	out = strings.TrimRight(string(in), " \x00")

	return
}

// Renders a frame the way the bus tools print them, e.g. "0xFD 0x46 0x08".
func hexDump(in []byte) (out string) {
	var sb strings.Builder

	for i, b := range in {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "0x%02X", b)
	}
	out = sb.String()

	return
}
