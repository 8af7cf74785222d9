package fastmodbus

import (
	"encoding/binary"
)

// Bus discovery. Devices with no assigned bus address answer a broadcast
// scan one at a time: each device found is told to go silent for the rest
// of the scan session, letting the next one respond. The loop ends on an
// explicit "scan complete" frame or once the bus goes quiet.

const (
	// a "device found" frame carries at least the 3-byte header, a
	// 32-bit serial number, a bus id and the CRC
	minScanFoundLength int = 10

	// device model string, readable by serial number
	modelRegisterBase  uint16 = 200
	modelRegisterCount uint16 = 20
)

// DeviceRecord describes one device discovered during a bus scan.
type DeviceRecord struct {
	Serial uint32
	BusId  uint8
	Model  string
}

type scanEvent uint

const (
	scanDeviceFound scanEvent = 1
	scanComplete    scanEvent = 2
)

// Builds a scan-init or continue-scan broadcast.
func buildScanRequest(scanCommand uint8, subCommand uint8) (adu []byte, err error) {
	switch scanCommand {
	case fcFastModbus, fcFastModbusAlt:
	default:
		err = ErrUnknownCommand
		return
	}

	adu = encodeFrame([]byte{broadcastAddr, scanCommand, subCommand})

	return
}

// Classifies a scan response into "device found" (with its serial number
// and bus id) or "scan complete". Any other shape is a malformed response.
func parseScanResponse(raw []byte) (ev scanEvent, serialNumber uint32, busId uint8, err error) {
	var payload []byte

	// the shortest well-formed scan frame is the 3-byte "scan complete"
	// header plus CRC
	payload, err = decodeFrame(raw, 5)
	if err != nil {
		return
	}

	switch {
	case payload[2] == sfScanFound && len(payload) >= minScanFoundLength-2:
		ev = scanDeviceFound
		serialNumber = binary.BigEndian.Uint32(payload[3:7])
		busId = payload[7]

	case payload[2] == sfScanDone:
		ev = scanComplete

	default:
		err = ErrMalformedScanResponse
	}

	return
}
