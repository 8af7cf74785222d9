package fastmodbus

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

const (
	PARITY_NONE uint = 0
	PARITY_EVEN uint = 1
	PARITY_ODD  uint = 2

	// once a reply has started arriving, it is considered complete after
	// the line stays quiet for this long
	interFrameTimeout time.Duration = 50 * time.Millisecond
)

type ClientConfiguration struct {
	// URL sets the target, e.g. rtu:///dev/ttyUSB0
	URL      string
	Speed    uint
	DataBits uint
	Parity   uint
	StopBits uint
	// Timeout bounds the wait for each reply (default 2s)
	Timeout time.Duration
	// Debug dumps every frame sent and received through the logger
	Debug bool
	// Logger provides a custom sink for log messages
	Logger *log.Logger
}

// Client drives one half-duplex bus. All operations are blocking and
// serialized: a single request is outstanding at any time.
type Client struct {
	conf        ClientConfiguration
	logger      *logger
	lock        sync.Mutex
	link        BusLink
	scanCommand uint8
}

// NewClient returns a client for the given serial target.
func NewClient(conf *ClientConfiguration) (c *Client, err error) {
	var spc serialPortConfig
	var clientType string
	var splitURL []string

	c = &Client{
		conf:        *conf,
		scanCommand: fcFastModbus,
	}

	splitURL = strings.SplitN(c.conf.URL, "://", 2)
	if len(splitURL) == 2 {
		clientType = splitURL[0]
		c.conf.URL = splitURL[1]
	}

	c.logger = newLogger(
		fmt.Sprintf("fastmodbus-client(%s)", c.conf.URL), conf.Logger)

	if clientType != "rtu" {
		err = ErrConfigurationError
		c.logger.Errorf("unsupported client type '%s'", clientType)
		return
	}

	// set useful defaults
	if c.conf.Speed == 0 {
		c.conf.Speed = 9600
	}

	if c.conf.DataBits == 0 {
		c.conf.DataBits = 8
	}

	if c.conf.StopBits == 0 {
		if c.conf.Parity == PARITY_NONE {
			c.conf.StopBits = 2
		} else {
			c.conf.StopBits = 1
		}
	}

	if c.conf.Timeout == 0 {
		c.conf.Timeout = 2 * time.Second
	}

	spc = serialPortConfig{
		Device:   c.conf.URL,
		Speed:    int(c.conf.Speed),
		DataBits: int(c.conf.DataBits),
	}

	switch c.conf.Parity {
	case PARITY_NONE:
		spc.Parity = serial.NoParity
	case PARITY_EVEN:
		spc.Parity = serial.EvenParity
	case PARITY_ODD:
		spc.Parity = serial.OddParity
	default:
		err = ErrConfigurationError
		c.logger.Errorf("unsupported parity setting (%v)", c.conf.Parity)
		return
	}

	switch c.conf.StopBits {
	case 1:
		spc.StopBits = serial.OneStopBit
	case 2:
		spc.StopBits = serial.TwoStopBits
	default:
		err = ErrConfigurationError
		c.logger.Errorf("unsupported stop bits setting (%v)", c.conf.StopBits)
		return
	}

	c.link = newSerialPortWrapper(&spc)

	return
}

// NewClientWithLink returns a client driving a caller-supplied bus link.
// Only the Timeout, Debug and Logger configuration fields apply.
func NewClientWithLink(link BusLink, conf *ClientConfiguration) (c *Client, err error) {
	if link == nil {
		err = ErrConfigurationError
		return
	}

	c = &Client{
		link:        link,
		scanCommand: fcFastModbus,
	}
	if conf != nil {
		c.conf = *conf
	}
	if c.conf.Timeout == 0 {
		c.conf.Timeout = 2 * time.Second
	}
	c.logger = newLogger("fastmodbus-client(link)", c.conf.Logger)

	return
}

// Opens the underlying serial line. A no-op for caller-supplied links.
func (c *Client) Open() (err error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if spw, ok := c.link.(*serialPortWrapper); ok {
		err = spw.Open()
	}

	return
}

// Closes the underlying bus link.
func (c *Client) Close() (err error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	err = c.link.Close()

	return
}

// Selects the scan command variant used by subsequent Scan calls
// (0x46 standard, 0x60 alternate).
func (c *Client) SetScanCommand(scanCommand uint8) (err error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	switch scanCommand {
	case fcFastModbus, fcFastModbusAlt:
		c.scanCommand = scanCommand
	default:
		err = ErrUnknownCommand
	}

	return
}

// Reads count registers from the device with the given serial number.
// functionCode selects the register table (0x03 holding, 0x04 input).
func (c *Client) ReadRegisters(serialNumber uint32, functionCode uint8, register uint16, count uint16) (values []uint16, err error) {
	var regBytes []byte

	c.lock.Lock()
	defer c.lock.Unlock()

	regBytes, err = c.readRegisterBytes(serialNumber, functionCode, register, count)
	if err != nil {
		return
	}

	values = bytesToUint16s(regBytes)

	return
}

// Writes values to consecutive registers of the device with the given
// serial number, starting at register.
func (c *Client) WriteRegisters(serialNumber uint32, register uint16, values []uint16) (err error) {
	var adu []byte
	var raw []byte

	c.lock.Lock()
	defer c.lock.Unlock()

	adu, err = buildWriteRequest(serialNumber, fcWriteMultipleRegisters, register, values)
	if err != nil {
		return
	}

	raw, err = c.execute(adu)
	if err != nil {
		return
	}

	err = parseWriteResponse(raw)

	return
}

// Reads the device model string (registers 200..219, ASCII).
func (c *Client) ReadDeviceModel(serialNumber uint32) (model string, err error) {
	var regBytes []byte

	c.lock.Lock()
	defer c.lock.Unlock()

	regBytes, err = c.readRegisterBytes(
		serialNumber, fcReadHoldingRegisters, modelRegisterBase, modelRegisterCount)
	if err != nil {
		return
	}

	model = bytesToString(regBytes)

	return
}

// Scan walks the bus discovery arbitration until every device has been
// found and silenced, or a terminal "scan complete" frame arrives. The
// returned records are in discovery order. On a malformed response the
// scan aborts, returning the devices collected so far along with the error.
func (c *Client) Scan() (devices []DeviceRecord, err error) {
	var adu []byte
	var raw []byte
	var ev scanEvent
	var serialNumber uint32
	var busId uint8

	c.lock.Lock()
	defer c.lock.Unlock()

	adu, err = buildScanRequest(c.scanCommand, sfScanInit)
	if err != nil {
		return
	}

	raw, err = c.execute(adu)

	for {
		if err == ErrRequestTimedOut {
			// the bus went quiet: every unacknowledged device has
			// had its say
			err = nil
			return
		}
		if err != nil {
			return
		}

		ev, serialNumber, busId, err = parseScanResponse(raw)
		if err != nil {
			return
		}

		if ev == scanComplete {
			c.logger.Info("scan complete")
			return
		}

		devices = append(devices, DeviceRecord{
			Serial: serialNumber,
			BusId:  busId,
			Model:  c.lookupModel(serialNumber),
		})
		c.logger.Infof("found device %d (bus id %d)", serialNumber, busId)

		// silence the device we just recorded and wait for the next
		// one to win arbitration
		adu, err = buildScanRequest(c.scanCommand, sfScanContinue)
		if err != nil {
			return
		}

		raw, err = c.execute(adu)
	}
}

// ConfigureEvents subscribes a device (addressed by bus id) to change
// events for each given register range, one request/response exchange per
// range. The returned masks parallel the ranges argument.
func (c *Client) ConfigureEvents(busId uint8, ranges []EventRangeConfig) (masks []EventMask, err error) {
	var adu []byte
	var raw []byte
	var enabled []bool

	c.lock.Lock()
	defer c.lock.Unlock()

	if len(ranges) == 0 {
		err = ErrConfigurationError
		return
	}

	for _, rng := range ranges {
		adu, err = buildEventConfigRequest(busId, []EventRangeConfig{rng})
		if err != nil {
			return
		}

		raw, err = c.execute(adu)
		if err != nil {
			return
		}

		enabled, err = parseEventConfigResponse(raw, rng.Count)
		if err != nil {
			return
		}

		masks = append(masks, EventMask{
			Range:   rng,
			Enabled: enabled,
		})
	}

	return
}

// PollEvents performs one event poll exchange. minBusId is the lowest bus
// id eligible to answer, maxDataLength caps the event data field, and
// ackBusId/ackFlag echo the previous result's DeviceId/Flag to confirm
// delivery (pass zeroes on the first poll).
func (c *Client) PollEvents(minBusId uint8, maxDataLength uint8, ackBusId uint8, ackFlag uint8) (res *PollResult, err error) {
	var raw []byte

	c.lock.Lock()
	defer c.lock.Unlock()

	raw, err = c.execute(buildEventPollRequest(minBusId, maxDataLength, ackBusId, ackFlag))
	if err != nil {
		return
	}

	res, err = parseEventPollResponse(raw)

	return
}

/*** unexported methods ***/

// Reads count registers as bytes. Callers hold the lock.
func (c *Client) readRegisterBytes(serialNumber uint32, functionCode uint8, register uint16, count uint16) (regBytes []byte, err error) {
	var adu []byte
	var raw []byte

	adu, err = buildReadRequest(serialNumber, functionCode, register, count)
	if err != nil {
		return
	}

	raw, err = c.execute(adu)
	if err != nil {
		return
	}

	regBytes, err = parseReadResponse(raw, count)

	return
}

// Reads the device model during a scan. Lookup failures degrade to a
// marker string so one unreadable device cannot abort the whole scan.
func (c *Client) lookupModel(serialNumber uint32) (model string) {
	var regBytes []byte
	var err error

	regBytes, err = c.readRegisterBytes(
		serialNumber, fcReadHoldingRegisters, modelRegisterBase, modelRegisterCount)

	switch err {
	case nil:
		model = bytesToString(regBytes)
	case ErrRequestTimedOut:
		model = "Unknown"
	default:
		model = "Invalid CRC"
	}

	return
}

// Sends a frame and waits for the raw reply bytes. Callers hold the lock.
func (c *Client) execute(adu []byte) (raw []byte, err error) {
	if c.conf.Debug {
		c.logger.Infof("SND: %s", hexDump(adu))
	}

	_, err = c.link.Write(adu)
	if err != nil {
		return
	}

	raw, err = c.readResponse()
	if err == nil && c.conf.Debug {
		c.logger.Infof("RCV: %s", hexDump(raw))
	}

	return
}

// Blocks until reply bytes show up on the bus or the timeout elapses,
// then keeps draining until the line goes idle for an inter-frame gap.
func (c *Client) readResponse() (raw []byte, err error) {
	var rxbuf []byte
	var count int
	var n int

	rxbuf = make([]byte, maxFrameLength)

	c.link.SetDeadline(time.Now().Add(c.conf.Timeout))

	for count < maxFrameLength {
		n, err = c.link.Read(rxbuf[count:])
		count += n
		if err != nil {
			break
		}

		if n > 0 {
			// the head of the reply has arrived: from here on only
			// wait out the inter-frame gap
			c.link.SetDeadline(time.Now().Add(interFrameTimeout))
		}
	}

	if count == 0 {
		err = ErrRequestTimedOut
		return
	}

	err = nil
	raw = rxbuf[:count]

	return
}
