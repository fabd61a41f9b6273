package coupling

import (
	"fmt"
	"strings"
)

// Mode selects how the lattice and the oscillator field influence each other.
type Mode int

const (
	// ModeNone runs the oscillators on the lattice geometry with random
	// natural frequencies; neither side feeds the other.
	ModeNone Mode = iota

	// ModeFeatureDriven derives natural frequencies (and, when dynamic,
	// coupling weights) from the lattice's weight vectors.
	ModeFeatureDriven

	// ModeOscillatorDriven feeds every unit's phase back into the lattice
	// as a synthetic feature vector after each oscillator tick.
	ModeOscillatorDriven
)

// String returns the config name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeFeatureDriven:
		return "feature_driven"
	case ModeOscillatorDriven:
		return "oscillator_driven"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m >= ModeNone && m <= ModeOscillatorDriven
}

// ParseMode maps a config name to a Mode (case-insensitive, '-' or '_').
func ParseMode(s string) (Mode, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_") {
	case "none", "":
		return ModeNone, nil
	case "feature_driven", "feature":
		return ModeFeatureDriven, nil
	case "oscillator_driven", "oscillator":
		return ModeOscillatorDriven, nil
	default:
		return 0, fmt.Errorf("unknown coupling mode: %q (valid: none, feature_driven, oscillator_driven)", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("unknown coupling mode %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	v, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
