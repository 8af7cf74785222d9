package fastmodbus

import (
	"bytes"
	"encoding/binary"
	"strconv"
	"strings"
)

// Event subscription and polling.
//
// Subscriptions are configured per contiguous register range, with one
// priority byte per register (the wire format requires the duplication).
// Devices answer with a bitmap of which registers actually got events
// enabled. Events are then retrieved by broadcast poll with host-driven
// acknowledgment of the previously delivered packet.

// RegType identifies the register table an event range refers to.
type RegType uint8

const (
	RegCoil     RegType = 0x01
	RegDiscrete RegType = 0x02
	RegHolding  RegType = 0x03
	RegInput    RegType = 0x04
)

// Converts a register type name to its wire value. Unrecognized names are
// rejected rather than silently dropped.
func RegTypeFromString(name string) (rt RegType, err error) {
	switch strings.ToLower(name) {
	case "coil":
		rt = RegCoil
	case "discrete":
		rt = RegDiscrete
	case "holding":
		rt = RegHolding
	case "input":
		rt = RegInput
	default:
		err = ErrInvalidRegisterType
	}

	return
}

func (rt RegType) String() (name string) {
	switch rt {
	case RegCoil:
		name = "coil"
	case RegDiscrete:
		name = "discrete"
	case RegHolding:
		name = "holding"
	case RegInput:
		name = "input"
	default:
		name = "<unknown>"
	}

	return
}

// EventRangeConfig describes one contiguous register range to subscribe to.
type EventRangeConfig struct {
	Type     RegType
	Address  uint16
	Count    uint8
	Priority uint8
}

// EventMask is a device's acknowledgment of one configured range: one entry
// per register, in increasing address order, true when event notifications
// are enabled.
type EventMask struct {
	Range   EventRangeConfig
	Enabled []bool
}

// EventRecord is one discrete event returned by a poll.
type EventRecord struct {
	DeviceId uint8
	Type     uint16
	Id       uint16
	Payload  uint16
}

// PollResult carries the events returned by one poll exchange, plus the
// fields the caller must echo back in the next poll's acknowledgment.
type PollResult struct {
	DeviceId uint8
	Flag     uint8
	Events   []EventRecord
}

// NoEvents reports whether the poll came back empty, the normal idle case.
func (pr *PollResult) NoEvents() (empty bool) {
	empty = len(pr.Events) == 0

	return
}

// ParseRangeSpecs parses a comma-delimited range configuration string of
// the form "type:address:count:priority[,...]", e.g.
// "input:60:2:1,discrete:0:8:1".
func ParseRangeSpecs(spec string) (ranges []EventRangeConfig, err error) {
	for _, field := range strings.Split(spec, ",") {
		var parts []string
		var rng EventRangeConfig
		var address, count, priority uint64

		parts = strings.Split(strings.TrimSpace(field), ":")
		if len(parts) != 4 {
			err = ErrConfigurationError
			return
		}

		rng.Type, err = RegTypeFromString(parts[0])
		if err != nil {
			return
		}

		address, err = strconv.ParseUint(parts[1], 0, 16)
		if err != nil {
			err = ErrConfigurationError
			return
		}
		count, err = strconv.ParseUint(parts[2], 0, 8)
		if err != nil || count == 0 {
			err = ErrConfigurationError
			return
		}
		priority, err = strconv.ParseUint(parts[3], 0, 8)
		if err != nil {
			err = ErrConfigurationError
			return
		}

		rng.Address = uint16(address)
		rng.Count = uint8(count)
		rng.Priority = uint8(priority)
		ranges = append(ranges, rng)
	}

	return
}

// Builds an event subscription request for a device identified by its bus
// id. Each range contributes its type byte, start address, register count
// and one priority byte per register.
func buildEventConfigRequest(busId uint8, ranges []EventRangeConfig) (adu []byte, err error) {
	var payload []byte
	var data []byte

	if len(ranges) == 0 {
		err = ErrConfigurationError
		return
	}

	for _, rng := range ranges {
		switch rng.Type {
		case RegCoil, RegDiscrete, RegHolding, RegInput:
		default:
			err = ErrInvalidRegisterType
			return
		}

		if rng.Count == 0 {
			err = ErrConfigurationError
			return
		}

		data = append(data, uint8(rng.Type))
		data = append(data, uint16ToBytes(rng.Address)...)
		data = append(data, rng.Count)
		for i := uint8(0); i < rng.Count; i++ {
			data = append(data, rng.Priority)
		}
	}

	// the data length field is a single byte
	if len(data) > 0xff {
		err = ErrConfigurationError
		return
	}

	payload = []byte{busId, fcFastModbus, sfEventConfig, uint8(len(data))}
	payload = append(payload, data...)

	adu = encodeFrame(payload)

	return
}

// Extracts the per-register enable bitmap out of a subscription response.
// Bit i (low bit first within each byte) maps to the i-th register of the
// configured range, in address order.
func parseEventConfigResponse(raw []byte, count uint8) (enabled []bool, err error) {
	var frame []byte
	var maskLength int

	frame = bytes.TrimLeft(raw, "\xff")

	// bus id, function, sub-function, mask length
	if len(frame) < 4 {
		err = ErrShortFrame
		return
	}

	maskLength = int(frame[3])
	if len(frame)-4 < maskLength || int(count) > 8*maskLength {
		err = ErrShortResponse
		return
	}

	enabled = decodeBits(uint(count), frame[4:4+maskLength])

	return
}

// Builds an event poll broadcast. minBusId is the lowest bus id eligible
// to answer, maxDataLength caps the response's event data field, and
// ackBusId/ackFlag confirm receipt of the previously delivered packet.
func buildEventPollRequest(minBusId uint8, maxDataLength uint8, ackBusId uint8, ackFlag uint8) (adu []byte) {
	adu = encodeFrame([]byte{
		broadcastAddr, fcFastModbus, sfEventPoll,
		minBusId, maxDataLength, ackBusId, ackFlag,
	})

	return
}

// Parses an event poll response into the ordered event list. A frame too
// short to carry the response header is the normal "no events" outcome,
// not an error.
func parseEventPollResponse(raw []byte) (res *PollResult, err error) {
	var frame []byte
	var payload []byte
	var data []byte
	var eventCount int
	var dataLength int

	frame = bytes.TrimLeft(raw, "\xff")

	if len(frame) < minFrameLength {
		err = ErrShortFrame
		return
	}

	// devices with nothing to report answer with a stub frame
	if len(frame) < 7 {
		res = &PollResult{}
		return
	}

	if !verifyFrame(frame) {
		err = ErrBadCRC
		return
	}

	if len(frame) < 12 {
		err = ErrShortResponse
		return
	}

	payload = frame[:len(frame)-2]
	res = &PollResult{
		DeviceId: payload[0],
		Flag:     payload[3],
	}

	eventCount = int(payload[4])
	dataLength = int(binary.BigEndian.Uint16(payload[5:7]))

	data = payload[7:]
	if dataLength < len(data) {
		data = data[:dataLength]
	}

	// each entry is three big-endian words: type, id, payload
	for i := 0; i+6 <= len(data) && len(res.Events) < eventCount; i += 6 {
		res.Events = append(res.Events, EventRecord{
			DeviceId: res.DeviceId,
			Type:     binary.BigEndian.Uint16(data[i : i+2]),
			Id:       binary.BigEndian.Uint16(data[i+2 : i+4]),
			Payload:  binary.BigEndian.Uint16(data[i+4 : i+6]),
		})
	}

	return
}
