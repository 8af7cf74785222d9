// Package fastmodbus implements the "Fast Modbus" vendor extension layered
// on top of Modbus RTU framing for RS-485 buses: register access addressed
// by 32-bit device serial number, collision-arbitrated bus discovery and
// per-register change event subscription/polling.
//
// The engine is synchronous and single-owner per bus: every operation writes
// one frame, blocks for the reply with a bounded timeout and returns a typed
// result or a typed error. Retry policy belongs to the caller.
package fastmodbus

const (
	// every extended-addressing request carries this byte in place of a
	// regular modbus slave id
	broadcastAddr uint8 = 0xfd

	// extended function codes; 0x60 is the alternate scan variant
	// implemented by older devices
	fcFastModbus    uint8 = 0x46
	fcFastModbusAlt uint8 = 0x60

	// sub-functions of the extended function code
	sfSerialAccess uint8 = 0x08
	sfEventPoll    uint8 = 0x10
	sfEventConfig  uint8 = 0x18

	// scan sub-commands and response discriminators
	sfScanInit     uint8 = 0x01
	sfScanContinue uint8 = 0x02
	sfScanFound    uint8 = 0x03
	sfScanDone     uint8 = 0x04

	// standard modbus function codes usable over extended addressing
	fcReadHoldingRegisters   uint8 = 0x03
	fcReadInputRegisters     uint8 = 0x04
	fcWriteSingleRegister    uint8 = 0x06
	fcWriteMultipleRegisters uint8 = 0x10

	maxFrameLength int = 256
)

type Error string

// Error implements the error interface.
func (e Error) Error() (s string) {
	s = string(e)
	return
}

const (
	ErrConfigurationError    Error = "configuration error"
	ErrRequestTimedOut       Error = "request timed out"
	ErrBadCRC                Error = "bad crc"
	ErrShortFrame            Error = "short frame"
	ErrShortResponse         Error = "short response"
	ErrMalformedScanResponse Error = "malformed scan response"
	ErrInvalidRegisterType   Error = "invalid register type"
	ErrUnknownCommand        Error = "unknown command"
)
