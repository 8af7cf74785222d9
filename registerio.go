package fastmodbus

// Serial-number addressed register access.
//
// Requests open with the extended addressing prefix (broadcast byte,
// extended function, sub-function 0x08) followed by the device serial
// number, which plays the role of the modbus slave id.

const readResponseHeaderLength int = 9

// Builds a read-registers request addressed by device serial number.
func buildReadRequest(serialNumber uint32, functionCode uint8, register uint16, count uint16) (adu []byte, err error) {
	var payload []byte

	switch functionCode {
	case fcReadHoldingRegisters, fcReadInputRegisters:
	default:
		err = ErrUnknownCommand
		return
	}

	payload = []byte{broadcastAddr, fcFastModbus, sfSerialAccess}
	payload = append(payload, uint32ToBytes(serialNumber)...)
	payload = append(payload, functionCode)
	payload = append(payload, uint16ToBytes(register)...)
	payload = append(payload, uint16ToBytes(count)...)

	adu = encodeFrame(payload)

	return
}

// Extracts the register values out of a read response, as bytes
// (2 per register, big-endian, in increasing address order).
func parseReadResponse(raw []byte, count uint16) (regBytes []byte, err error) {
	var payload []byte
	var expected int

	expected = readResponseHeaderLength + 2*int(count)

	payload, err = decodeFrame(raw, expected)
	if err != nil {
		return
	}

	if len(payload) < expected {
		err = ErrShortResponse
		return
	}

	regBytes = payload[readResponseHeaderLength:expected]

	return
}

// Builds a write-registers request addressed by device serial number.
// The register count is a 16-bit field followed by an 8-bit byte count,
// as in the standard write-multiple-registers layout.
func buildWriteRequest(serialNumber uint32, functionCode uint8, register uint16, values []uint16) (adu []byte, err error) {
	var payload []byte

	if functionCode != fcWriteMultipleRegisters {
		err = ErrUnknownCommand
		return
	}

	if len(values) == 0 || len(values) > 0x7b {
		err = ErrConfigurationError
		return
	}

	payload = []byte{broadcastAddr, fcFastModbus, sfSerialAccess}
	payload = append(payload, uint32ToBytes(serialNumber)...)
	payload = append(payload, functionCode)
	payload = append(payload, uint16ToBytes(register)...)
	payload = append(payload, uint16ToBytes(uint16(len(values)))...)
	payload = append(payload, uint8(2*len(values)))
	payload = append(payload, uint16sToBytes(values)...)

	adu = encodeFrame(payload)

	return
}

// Validates a write acknowledgment. Devices acknowledge a write by echoing
// a CRC-valid frame; no payload interpretation is performed.
func parseWriteResponse(raw []byte) (err error) {
	_, err = decodeFrame(raw, minFrameLength)

	return
}
