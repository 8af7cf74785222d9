package fastmodbus

import (
	"bytes"
	"log"
	"net"
	"testing"
	"time"
)

// Starts a one-shot responder mapping each received request to the next
// canned reply. A nil reply leaves the bus quiet for that request.
func startTestResponder(t *testing.T, conn net.Conn, replies [][]byte) {
	go func() {
		var rxbuf []byte
		var err error

		rxbuf = make([]byte, maxFrameLength)

		for _, reply := range replies {
			_, err = conn.Read(rxbuf)
			if err != nil {
				return
			}
			if reply != nil {
				conn.Write(reply)
			}
		}
	}()

	return
}

func newTestClient(t *testing.T, replies [][]byte) (c *Client) {
	var p1, p2 net.Conn
	var err error

	p1, p2 = net.Pipe()
	startTestResponder(t, p1, replies)

	c, err = NewClientWithLink(p2, &ClientConfiguration{
		Timeout: 200 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewClientWithLink() should have succeeded, got %v", err)
	}

	return
}

func TestClientReadRegisters(t *testing.T) {
	var c *Client
	var values []uint16
	var err error

	c = newTestClient(t, [][]byte{
		encodeFrame([]byte{
			0xfd, 0x46, 0x09,
			0x12, 0x34, 0xab, 0xcd,
			0x03, 0x06,
			0x00, 0x01,
			0x00, 0x02,
			0x00, 0x03,
		}),
	})
	defer c.Close()

	values, err = c.ReadRegisters(0x1234abcd, fcReadHoldingRegisters, 100, 3)
	if err != nil {
		t.Errorf("ReadRegisters() should have succeeded, got %v", err)
	}
	if len(values) != 3 || values[0] != 1 || values[1] != 2 || values[2] != 3 {
		t.Errorf("expected [1 2 3], got %v", values)
	}

	return
}

func TestClientReadRegistersTimeout(t *testing.T) {
	var c *Client
	var err error

	// a quiet bus surfaces as a timeout, terminal for the call
	c = newTestClient(t, [][]byte{nil})
	defer c.Close()

	_, err = c.ReadRegisters(0x1234abcd, fcReadHoldingRegisters, 100, 1)
	if err != ErrRequestTimedOut {
		t.Errorf("expected ErrRequestTimedOut, got %v", err)
	}

	return
}

func TestClientWriteRegisters(t *testing.T) {
	var c *Client
	var ack []byte
	var err error

	// devices acknowledge a write by echoing the request frame
	ack, err = buildWriteRequest(0x1234abcd, fcWriteMultipleRegisters, 100, []uint16{7, 8})
	if err != nil {
		t.Fatalf("buildWriteRequest() should have succeeded, got %v", err)
	}

	c = newTestClient(t, [][]byte{ack})
	defer c.Close()

	err = c.WriteRegisters(0x1234abcd, 100, []uint16{7, 8})
	if err != nil {
		t.Errorf("WriteRegisters() should have succeeded, got %v", err)
	}

	return
}

func TestClientReadDeviceModel(t *testing.T) {
	var c *Client
	var payload []byte
	var model string
	var err error

	payload = []byte{0xfd, 0x46, 0x09, 0x12, 0x34, 0xab, 0xcd, 0x03, 0x28}
	payload = append(payload, "WB-MR6C"...)
	payload = append(payload, make([]byte, 2*int(modelRegisterCount)-len("WB-MR6C"))...)

	c = newTestClient(t, [][]byte{encodeFrame(payload)})
	defer c.Close()

	model, err = c.ReadDeviceModel(0x1234abcd)
	if err != nil {
		t.Errorf("ReadDeviceModel() should have succeeded, got %v", err)
	}
	if model != "WB-MR6C" {
		t.Errorf("expected model 'WB-MR6C', got '%s'", model)
	}

	return
}

func TestClientPollEvents(t *testing.T) {
	var c *Client
	var res *PollResult
	var err error

	c = newTestClient(t, [][]byte{
		encodeFrame([]byte{
			0x05, 0x46, 0x11, 0x01,
			0x01,
			0x00, 0x06,
			0x00, 0x02, 0x00, 0x07, 0x00, 0x2a,
		}),
		{0xfd, 0x46, 0x12, 0x00, 0x00},
	})
	defer c.Close()

	res, err = c.PollEvents(1, 100, 0, 0)
	if err != nil {
		t.Errorf("PollEvents() should have succeeded, got %v", err)
	}
	if len(res.Events) != 1 || res.DeviceId != 5 || res.Flag != 1 {
		t.Errorf("unexpected poll result: %+v", res)
	}

	// acknowledge the packet; the device now has nothing to report
	res, err = c.PollEvents(1, 100, res.DeviceId, res.Flag)
	if err != nil {
		t.Errorf("PollEvents() should have succeeded, got %v", err)
	}
	if !res.NoEvents() {
		t.Errorf("expected an empty result, got %+v", res)
	}

	return
}

func TestClientConfigureEvents(t *testing.T) {
	var c *Client
	var masks []EventMask
	var err error

	// one exchange per range, one mask byte each
	c = newTestClient(t, [][]byte{
		encodeFrame([]byte{12, 0x46, 0x18, 0x01, 0x05}),
		encodeFrame([]byte{12, 0x46, 0x18, 0x01, 0x03}),
	})
	defer c.Close()

	masks, err = c.ConfigureEvents(12, []EventRangeConfig{
		{Type: RegDiscrete, Address: 0, Count: 8, Priority: 1},
		{Type: RegInput, Address: 60, Count: 2, Priority: 2},
	})
	if err != nil {
		t.Errorf("ConfigureEvents() should have succeeded, got %v", err)
	}
	if len(masks) != 2 {
		t.Fatalf("expected 2 masks, got %v", len(masks))
	}

	if len(masks[0].Enabled) != 8 || !masks[0].Enabled[0] ||
		masks[0].Enabled[1] || !masks[0].Enabled[2] {
		t.Errorf("unexpected first mask: %v", masks[0].Enabled)
	}
	if len(masks[1].Enabled) != 2 || !masks[1].Enabled[0] || !masks[1].Enabled[1] {
		t.Errorf("unexpected second mask: %v", masks[1].Enabled)
	}

	return
}

func TestNewClientConfiguration(t *testing.T) {
	var err error

	_, err = NewClient(&ClientConfiguration{URL: "rtu:///dev/ttyUSB0"})
	if err != nil {
		t.Errorf("NewClient() should have succeeded, got %v", err)
	}

	_, err = NewClient(&ClientConfiguration{URL: "tcp://somehost:502"})
	if err != ErrConfigurationError {
		t.Errorf("expected ErrConfigurationError, got %v", err)
	}

	_, err = NewClient(&ClientConfiguration{URL: "rtu:///dev/ttyUSB0", Parity: 7})
	if err != ErrConfigurationError {
		t.Errorf("expected ErrConfigurationError, got %v", err)
	}

	_, err = NewClient(&ClientConfiguration{URL: "rtu:///dev/ttyUSB0", StopBits: 3})
	if err != ErrConfigurationError {
		t.Errorf("expected ErrConfigurationError, got %v", err)
	}

	_, err = NewClientWithLink(nil, nil)
	if err != ErrConfigurationError {
		t.Errorf("expected ErrConfigurationError, got %v", err)
	}

	return
}

func TestClientSetScanCommand(t *testing.T) {
	var c *Client
	var err error

	c, err = NewClientWithLink(&nopLink{}, nil)
	if err != nil {
		t.Fatalf("NewClientWithLink() should have succeeded, got %v", err)
	}

	if err = c.SetScanCommand(0x60); err != nil {
		t.Errorf("SetScanCommand(0x60) should have succeeded, got %v", err)
	}
	if err = c.SetScanCommand(0x46); err != nil {
		t.Errorf("SetScanCommand(0x46) should have succeeded, got %v", err)
	}
	if err = c.SetScanCommand(0x03); err != ErrUnknownCommand {
		t.Errorf("expected ErrUnknownCommand, got %v", err)
	}

	return
}

func TestClientCustomLogger(t *testing.T) {
	var buf bytes.Buffer

	logger := log.New(&buf, "external-prefix: ", 0)

	_, _ = NewClient(&ClientConfiguration{
		Logger: logger,
		URL:    "sometype://sometarget",
	})

	if buf.String() != "external-prefix: fastmodbus-client(sometarget) [error]: unsupported client type 'sometype'\n" {
		t.Errorf("unexpected logger output '%s'", buf.String())
	}

	return
}

// nopLink satisfies BusLink for tests that never touch the wire.
type nopLink struct{}

func (nl *nopLink) Close() (err error)                      { return }
func (nl *nopLink) Read(p []byte) (cnt int, err error)      { err = ErrRequestTimedOut; return }
func (nl *nopLink) Write(p []byte) (cnt int, err error)     { cnt = len(p); return }
func (nl *nopLink) SetDeadline(dl time.Time) (err error)    { return }
