package fastmodbus

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Declarative event subscription files, e.g.:
//
//	bus_id: 12
//	ranges:
//	  - type: discrete
//	    address: 0
//	    count: 8
//	    priority: 1
//	  - type: input
//	    address: 60
//	    count: 2
//	    priority: 2

type EventConfigFile struct {
	BusId  uint8             `yaml:"bus_id"`
	Ranges []EventRangeEntry `yaml:"ranges"`
}

type EventRangeEntry struct {
	Type     string `yaml:"type"`
	Address  uint16 `yaml:"address"`
	Count    uint8  `yaml:"count"`
	Priority uint8  `yaml:"priority"`
}

// LoadEventConfig reads and validates an event subscription file, returning
// the target bus id and the ranges ready to hand to ConfigureEvents.
func LoadEventConfig(path string) (busId uint8, ranges []EventRangeConfig, err error) {
	var buf []byte
	var cfg EventConfigFile

	buf, err = os.ReadFile(path)
	if err != nil {
		return
	}

	err = yaml.Unmarshal(buf, &cfg)
	if err != nil {
		err = fmt.Errorf("failed to parse %s: %w", path, err)
		return
	}

	err = validateEventConfig(&cfg)
	if err != nil {
		return
	}

	busId = cfg.BusId
	for _, entry := range cfg.Ranges {
		var rt RegType

		// validated above, cannot fail here
		rt, _ = RegTypeFromString(entry.Type)

		ranges = append(ranges, EventRangeConfig{
			Type:     rt,
			Address:  entry.Address,
			Count:    entry.Count,
			Priority: entry.Priority,
		})
	}

	return
}

// Checks configuration correctness. It performs declarative validation
// only and does not mutate the configuration.
func validateEventConfig(cfg *EventConfigFile) (err error) {
	type span struct {
		start uint16
		end   uint16
	}

	var spans map[string][]span

	if len(cfg.Ranges) == 0 {
		err = fmt.Errorf("no register ranges defined")
		return
	}

	spans = make(map[string][]span)

	for i, entry := range cfg.Ranges {
		_, err = RegTypeFromString(entry.Type)
		if err != nil {
			err = fmt.Errorf("range %d: unknown register type %q", i, entry.Type)
			return
		}

		if entry.Count == 0 {
			err = fmt.Errorf("range %d: count must be at least 1", i)
			return
		}

		if int(entry.Address)+int(entry.Count)-1 > 0xffff {
			err = fmt.Errorf("range %d: registers %d+%d exceed the address space",
				i, entry.Address, entry.Count)
			return
		}

		key := strings.ToLower(entry.Type)
		start := entry.Address
		end := entry.Address + uint16(entry.Count) - 1

		// ranges of the same register table must not overlap
		for _, s := range spans[key] {
			if !(end < s.start || start > s.end) {
				err = fmt.Errorf(
					"range %d: %s registers %d-%d overlap an earlier range %d-%d",
					i, entry.Type, start, end, s.start, s.end)
				return
			}
		}

		spans[key] = append(spans[key], span{start: start, end: end})
	}

	return
}
