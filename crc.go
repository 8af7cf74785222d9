package fastmodbus

// Modbus CRC16 accumulator (polynomial 0xa001, reflected, seed 0xffff).
type crc struct {
	crc uint16
}

// Resets the CRC to its initial value.
func (c *crc) init() {
	c.crc = 0xffff

	return
}

// Feeds bytes through the CRC generator.
func (c *crc) add(in []byte) {
	for _, b := range in {
		c.crc ^= uint16(b)

		for i := 0; i < 8; i++ {
			if c.crc&0x0001 == 0x0001 {
				c.crc = (c.crc >> 1) ^ 0xa001
			} else {
				c.crc >>= 1
			}
		}
	}

	return
}

// Returns the current CRC value in wire order (low byte first).
func (c *crc) value() (out []byte) {
	out = []byte{
		uint8(c.crc & 0xff),
		uint8(c.crc >> 8),
	}

	return
}

// Compares the current CRC value against the two trailing frame bytes
// (low byte first, as found on the wire).
func (c *crc) isEqual(loByte uint8, hiByte uint8) (match bool) {
	if uint16(loByte)|uint16(hiByte)<<8 == c.crc {
		match = true
	}

	return
}

// One-shot CRC16 of an arbitrary byte sequence.
func crc16(in []byte) (value uint16) {
	var c crc

	c.init()
	c.add(in)
	value = c.crc

	return
}
