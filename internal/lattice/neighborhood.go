package lattice

import (
	"fmt"
	"math"
	"strings"
)

// NeighborhoodKind selects the spatial decay applied around the BMU during
// an update. It is fixed per engine instance.
type NeighborhoodKind int

const (
	// Gaussian weights units by exp(-d²/(2·radius²)).
	Gaussian NeighborhoodKind = iota

	// HardCutoff gives full influence to units with d < radius and none
	// to the rest.
	HardCutoff
)

// Influence returns the neighborhood weight for a unit at grid distance d
// from the BMU.
//
// A Gaussian with zero radius degenerates to a delta on the BMU itself.
func (k NeighborhoodKind) Influence(d, radius float64) float64 {
	switch k {
	case HardCutoff:
		if d < radius {
			return 1
		}
		return 0
	default:
		if radius <= 0 {
			if d == 0 {
				return 1
			}
			return 0
		}
		return math.Exp(-(d * d) / (2 * radius * radius))
	}
}

// Valid reports whether k is a known kind.
func (k NeighborhoodKind) Valid() bool {
	return k == Gaussian || k == HardCutoff
}

// String returns the config name of the kind.
func (k NeighborhoodKind) String() string {
	switch k {
	case Gaussian:
		return "gaussian"
	case HardCutoff:
		return "hard_cutoff"
	default:
		return fmt.Sprintf("NeighborhoodKind(%d)", int(k))
	}
}

// ParseNeighborhoodKind maps a config name to a kind (case-insensitive).
// Accepts "gaussian", "hard_cutoff", "hard-cutoff" and "cutoff".
func ParseNeighborhoodKind(s string) (NeighborhoodKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gaussian", "":
		return Gaussian, nil
	case "hard_cutoff", "hard-cutoff", "cutoff":
		return HardCutoff, nil
	default:
		return 0, fmt.Errorf("unknown neighborhood kind: %q (valid: gaussian, hard_cutoff)", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k NeighborhoodKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("unknown neighborhood kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *NeighborhoodKind) UnmarshalText(text []byte) error {
	v, err := ParseNeighborhoodKind(string(text))
	if err != nil {
		return err
	}
	*k = v
	return nil
}
