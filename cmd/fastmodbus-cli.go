package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wbtools/fastmodbus"
)

func main() {
	var err error
	var help bool
	var client *fastmodbus.Client
	var config *fastmodbus.ClientConfiguration
	var target string
	var speed uint
	var dataBits uint
	var parity string
	var stopBits uint
	var timeout string
	var scanCommand string
	var debug bool
	var decimal bool

	flag.StringVar(&target, "target", "rtu:///dev/ttyUSB0",
		"serial device to connect to (e.g. rtu:///dev/ttyUSB0)")
	flag.UintVar(&speed, "speed", 9600, "serial bus speed in bps")
	flag.UintVar(&dataBits, "data-bits", 8, "number of bits per character on the serial bus")
	flag.StringVar(&parity, "parity", "none", "parity bit <none|even|odd> on the serial bus")
	flag.UintVar(&stopBits, "stop-bits", 2, "number of stop bits <1|2> on the serial bus")
	flag.StringVar(&timeout, "timeout", "2s", "per-exchange response timeout")
	flag.StringVar(&scanCommand, "scan-command", "0x46", "scan command variant <0x46|0x60>")
	flag.BoolVar(&debug, "debug", false, "dump every frame sent and received")
	flag.BoolVar(&decimal, "decimal", false, "display register values in decimal rather than hex")
	flag.BoolVar(&help, "help", false, "show a help message")
	flag.Parse()

	if help {
		displayHelp()
		os.Exit(0)
	}

	config = &fastmodbus.ClientConfiguration{
		URL:      target,
		Speed:    speed,
		DataBits: dataBits,
		StopBits: stopBits,
		Debug:    debug,
	}

	switch parity {
	case "none":
		config.Parity = fastmodbus.PARITY_NONE
	case "odd":
		config.Parity = fastmodbus.PARITY_ODD
	case "even":
		config.Parity = fastmodbus.PARITY_EVEN
	default:
		fmt.Printf("unknown parity setting '%s' (should be one of none, odd or even)\n", parity)
		os.Exit(1)
	}

	config.Timeout, err = time.ParseDuration(timeout)
	if err != nil {
		fmt.Printf("failed to parse timeout setting '%s': %v\n", timeout, err)
		os.Exit(1)
	}

	if len(flag.Args()) == 0 {
		fmt.Printf("nothing to do.\n")
		os.Exit(0)
	}

	client, err = fastmodbus.NewClient(config)
	if err != nil {
		fmt.Printf("failed to create client: %v\n", err)
		os.Exit(1)
	}

	switch scanCommand {
	case "0x46":
	case "0x60":
		client.SetScanCommand(0x60)
	default:
		fmt.Printf("unknown scan command '%s' (should be 0x46 or 0x60)\n", scanCommand)
		os.Exit(1)
	}

	err = client.Open()
	if err != nil {
		fmt.Printf("failed to open %s: %v\n", target, err)
		os.Exit(1)
	}
	defer client.Close()

	for _, arg := range flag.Args() {
		var splitArgs []string

		splitArgs = strings.Split(arg, ":")

		switch splitArgs[0] {
		case "scan":
			runScan(client)

		case "read", "r":
			// read:<serial>:<fc>:<reg>[+count]
			if len(splitArgs) != 4 {
				fmt.Printf("need exactly 3 arguments after read (read:serial:fc:reg[+count])\n")
				os.Exit(2)
			}
			runRead(client, splitArgs[1], splitArgs[2], splitArgs[3], decimal)

		case "write", "w":
			// write:<serial>:<reg>:<v1>[,v2...]
			if len(splitArgs) != 4 {
				fmt.Printf("need exactly 3 arguments after write (write:serial:reg:v1[,v2...])\n")
				os.Exit(2)
			}
			runWrite(client, splitArgs[1], splitArgs[2], splitArgs[3])

		case "model":
			// model:<serial>
			if len(splitArgs) != 2 {
				fmt.Printf("need exactly 1 argument after model (model:serial)\n")
				os.Exit(2)
			}
			runModel(client, splitArgs[1])

		case "poll", "events":
			// poll[:minBusId:maxDataLength:ackBusId:ackFlag]
			runPoll(client, splitArgs[1:])

		case "configure-events", "ce":
			// configure-events:<busid>:<type:addr:count:prio[,...]>
			// configure-events:@<file.yaml>
			runConfigureEvents(client, splitArgs[1:])

		default:
			fmt.Printf("unknown command '%s'\n", splitArgs[0])
			os.Exit(2)
		}
	}

	return
}

func runScan(client *fastmodbus.Client) {
	var devices []fastmodbus.DeviceRecord
	var err error

	fmt.Printf("scanning the bus...\n")
	devices, err = client.Scan()
	if err != nil {
		fmt.Printf("scan aborted: %v (%d devices found so far)\n", err, len(devices))
	}

	if len(devices) == 0 {
		fmt.Printf("no devices found.\n")
		return
	}

	fmt.Printf("%-15s %-10s %s\n", "serial number", "bus id", "model")
	for _, dev := range devices {
		fmt.Printf("%-15d %-10d %s\n", dev.Serial, dev.BusId, dev.Model)
	}

	return
}

func runRead(client *fastmodbus.Client, serialArg string, fcArg string, regArg string, decimal bool) {
	var serialNumber uint64
	var fc uint64
	var register uint64
	var count uint64 = 1
	var values []uint16
	var out []string
	var err error

	serialNumber = parseUint(serialArg, 32, "serial number")
	fc = parseUint(fcArg, 8, "function code")

	if idx := strings.Index(regArg, "+"); idx >= 0 {
		count = parseUint(regArg[idx+1:], 16, "register count")
		regArg = regArg[:idx]
	}
	register = parseUint(regArg, 16, "register address")

	values, err = client.ReadRegisters(
		uint32(serialNumber), uint8(fc), uint16(register), uint16(count))
	if err != nil {
		fmt.Printf("failed to read registers: %v\n", err)
		return
	}

	for _, v := range values {
		if decimal {
			out = append(out, strconv.FormatUint(uint64(v), 10))
		} else {
			out = append(out, fmt.Sprintf("0x%04X", v))
		}
	}
	fmt.Printf("read %d registers from device %d: %s\n",
		count, serialNumber, strings.Join(out, " "))

	return
}

func runWrite(client *fastmodbus.Client, serialArg string, regArg string, valuesArg string) {
	var serialNumber uint64
	var register uint64
	var values []uint16
	var err error

	serialNumber = parseUint(serialArg, 32, "serial number")
	register = parseUint(regArg, 16, "register address")

	for _, field := range strings.Split(valuesArg, ",") {
		values = append(values, uint16(parseUint(field, 16, "register value")))
	}

	err = client.WriteRegisters(uint32(serialNumber), uint16(register), values)
	if err != nil {
		fmt.Printf("failed to write registers: %v\n", err)
		return
	}

	fmt.Printf("successfully wrote %d registers.\n", len(values))

	return
}

func runModel(client *fastmodbus.Client, serialArg string) {
	var model string
	var err error

	model, err = client.ReadDeviceModel(uint32(parseUint(serialArg, 32, "serial number")))
	if err != nil {
		fmt.Printf("failed to read device model: %v\n", err)
		return
	}

	fmt.Printf("%s\n", model)

	return
}

func runPoll(client *fastmodbus.Client, args []string) {
	var minBusId uint64 = 1
	var maxDataLength uint64 = 100
	var ackBusId uint64
	var ackFlag uint64
	var res *fastmodbus.PollResult
	var err error

	if len(args) != 0 && len(args) != 4 {
		fmt.Printf("need 0 or 4 arguments after poll (poll[:minBusId:maxDataLength:ackBusId:ackFlag])\n")
		os.Exit(2)
	}

	if len(args) == 4 {
		minBusId = parseUint(args[0], 8, "minimum bus id")
		maxDataLength = parseUint(args[1], 8, "max data length")
		ackBusId = parseUint(args[2], 8, "ack bus id")
		ackFlag = parseUint(args[3], 8, "ack flag")
	}

	res, err = client.PollEvents(
		uint8(minBusId), uint8(maxDataLength), uint8(ackBusId), uint8(ackFlag))
	if err != nil {
		fmt.Printf("failed to poll events: %v\n", err)
		return
	}

	if res.NoEvents() {
		fmt.Printf("no events\n")
		return
	}

	fmt.Printf("device: %3d   events: %3d   flag: %d\n",
		res.DeviceId, len(res.Events), res.Flag)
	for _, ev := range res.Events {
		fmt.Printf("event type: %3d   id: %5d   payload: %5d   device %d\n",
			ev.Type, ev.Id, ev.Payload, ev.DeviceId)
	}

	return
}

func runConfigureEvents(client *fastmodbus.Client, args []string) {
	var busId uint8
	var ranges []fastmodbus.EventRangeConfig
	var masks []fastmodbus.EventMask
	var err error

	switch {
	case len(args) == 1 && strings.HasPrefix(args[0], "@"):
		busId, ranges, err = fastmodbus.LoadEventConfig(strings.TrimPrefix(args[0], "@"))
		if err != nil {
			fmt.Printf("failed to load event config: %v\n", err)
			os.Exit(2)
		}

	case len(args) >= 2:
		busId = uint8(parseUint(args[0], 8, "bus id"))
		ranges, err = fastmodbus.ParseRangeSpecs(strings.Join(args[1:], ":"))
		if err != nil {
			fmt.Printf("failed to parse range config: %v\n", err)
			os.Exit(2)
		}

	default:
		fmt.Printf("need a bus id and range spec, or an @file.yaml reference\n")
		os.Exit(2)
	}

	masks, err = client.ConfigureEvents(busId, ranges)
	if err != nil {
		fmt.Printf("failed to configure events: %v (%d ranges acknowledged)\n",
			err, len(masks))
		if len(masks) == 0 {
			return
		}
	}

	fmt.Printf("device: %d\n", busId)
	for _, mask := range masks {
		fmt.Printf("settings for %s registers:\n", mask.Range.Type)
		for i, enabled := range mask.Enabled {
			status := "disabled"
			if enabled {
				status = "enabled"
			}
			fmt.Printf("- register %d: %s\n", mask.Range.Address+uint16(i), status)
		}
	}

	return
}

func parseUint(in string, bits int, what string) (out uint64) {
	var err error

	out, err = strconv.ParseUint(in, 0, bits)
	if err != nil {
		fmt.Printf("failed to parse %s ('%s'): %v\n", what, in, err)
		os.Exit(2)
	}

	return
}

func displayHelp() {
	fmt.Printf(
		"usage: fastmodbus-cli [flags] command[:arg[:arg...]]...\n\n" +
			"commands:\n" +
			"  scan                              discover devices on the bus\n" +
			"  read:<serial>:<fc>:<reg>[+count]  read registers by device serial number\n" +
			"                                    (fc 0x03 holding, 0x04 input)\n" +
			"  write:<serial>:<reg>:<v1>[,v2..]  write registers by device serial number\n" +
			"  model:<serial>                    read the device model string\n" +
			"  poll[:min:maxlen:ackid:ackflag]   poll for events (defaults 1:100:0:0)\n" +
			"  configure-events:<busid>:<spec>   subscribe to register change events,\n" +
			"                                    spec being type:addr:count:priority[,...]\n" +
			"  configure-events:@<file.yaml>     same, from a yaml file\n\n" +
			"numeric arguments accept decimal or hex (0x...) notation.\n\n" +
			"flags:\n")
	flag.PrintDefaults()

	return
}
