package terrain

import (
	"fmt"
	"strings"
)

// Medium is the environmental zone tag of a chunk or entity. It selects gravity and drag.
type Medium int

const (
	MediumAir Medium = iota
	MediumWater
	MediumGround
	MediumVacuum
)

// MediumProperties holds the physics constants of a medium.
// Drag is the fraction of horizontal velocity retained per second.
type MediumProperties struct {
	Gravity float32
	Drag    float32
}

var mediumProperties = map[Medium]MediumProperties{
	MediumAir:    {Gravity: -9.81, Drag: 0.05},
	MediumWater:  {Gravity: -2.0, Drag: 0.1},
	MediumGround: {Gravity: -9.81, Drag: 0.01},
	MediumVacuum: {Gravity: 0, Drag: 0.9},
}

// Properties returns the gravity and drag for m. Unknown values behave like air.
func (m Medium) Properties() MediumProperties {
	if p, ok := mediumProperties[m]; ok {
		return p
	}
	return mediumProperties[MediumAir]
}

// IsSolid reports whether entities cannot pass through the medium.
func (m Medium) IsSolid() bool {
	return m == MediumGround
}

// IsFluid reports whether the medium is a gas or liquid.
func (m Medium) IsFluid() bool {
	return m == MediumAir || m == MediumWater
}

func (m Medium) String() string {
	switch m {
	case MediumAir:
		return "air"
	case MediumWater:
		return "water"
	case MediumGround:
		return "ground"
	case MediumVacuum:
		return "vacuum"
	default:
		return fmt.Sprintf("medium(%d)", int(m))
	}
}

// ParseMedium maps a config string to a Medium.
func ParseMedium(s string) (Medium, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "air":
		return MediumAir, nil
	case "water":
		return MediumWater, nil
	case "ground":
		return MediumGround, nil
	case "vacuum":
		return MediumVacuum, nil
	default:
		return MediumAir, fmt.Errorf("unknown medium %q", s)
	}
}
