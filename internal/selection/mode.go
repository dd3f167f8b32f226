package selection

import (
	"fmt"
	"strings"
)

// Mode is the closed set of selection policies.
type Mode int

const (
	Random Mode = iota
	RoundRobin
	Shuffle
)

func (m Mode) String() string {
	switch m {
	case Random:
		return "random"
	case RoundRobin:
		return "round_robin"
	case Shuffle:
		return "shuffle"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	return m >= Random && m <= Shuffle
}

// ParseMode accepts the persisted names ("random", "round_robin",
// "shuffle") as well as the display spellings ("Round-Robin").
func ParseMode(s string) (Mode, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	switch norm {
	case "", "random":
		return Random, nil
	case "round_robin", "roundrobin", "rr":
		return RoundRobin, nil
	case "shuffle":
		return Shuffle, nil
	default:
		return Random, fmt.Errorf("unknown selection mode %q", s)
	}
}

func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid selection mode %d", int(m))
	}
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

