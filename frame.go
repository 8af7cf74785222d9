package fastmodbus

import (
	"bytes"
)

const minFrameLength int = 3

// Appends the little-endian CRC16 of the payload, producing a wire-ready
// frame.
func encodeFrame(payload []byte) (adu []byte) {
	var c crc

	adu = append(adu, payload...)

	c.init()
	c.add(adu)
	adu = append(adu, c.value()...)

	return
}

// Checks the trailing little-endian CRC16 of a frame.
func verifyFrame(frame []byte) (ok bool) {
	var c crc

	if len(frame) < minFrameLength {
		return
	}

	c.init()
	c.add(frame[:len(frame)-2])
	ok = c.isEqual(frame[len(frame)-2], frame[len(frame)-1])

	return
}

// Strips leading idle-line fill, enforces the function-specific minimum
// length and validates the trailing CRC. Returns the frame without fill
// and CRC.
// minLength is the minimum acceptable frame size after fill removal, CRC
// included.
func decodeFrame(raw []byte, minLength int) (payload []byte, err error) {
	var frame []byte

	// transports may buffer 0xff bytes emitted while the bus is idle
	// ahead of the actual frame
	frame = bytes.TrimLeft(raw, "\xff")

	if minLength < minFrameLength {
		minLength = minFrameLength
	}

	// length is checked before any CRC math: a frame below the minimum
	// cannot even carry a checksum
	if len(frame) < minLength {
		err = ErrShortFrame
		return
	}

	if !verifyFrame(frame) {
		err = ErrBadCRC
		return
	}

	payload = frame[:len(frame)-2]

	return
}
