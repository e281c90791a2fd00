package kts1622

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

type Direction int

const (
	Output = Direction(iota) // CONFIG bit 0
	Input                    // CONFIG bit 1
)

type Pull int

const (
	PullDisabled = Pull(iota)
	PullUp
	PullDown
)

type DriveMode int

const (
	PushPull = DriveMode(iota)
	OpenDrain
)

// Output current of a pin relative to the maximum
type DriveStrength int

const (
	DriveQuarter = DriveStrength(iota)
	DriveHalf
	DriveThreeQuarters
	DriveFull // Default after reset
)

type EdgeType int

const (
	EdgeNone = EdgeType(iota) // No interrupt requested. Not accepted by SetEdgeType(), see Shutdown().
	EdgeRising
	EdgeFalling
	EdgeBoth

	// The chip only detects edges. Level types are accepted, but disable edge detection for the pin.
	LevelLow
	LevelHigh
)

var (
	directionNames = []string{"out", "in"}
	pullNames      = []string{"none", "up", "down"}
	driveNames     = []string{"push-pull", "open-drain"}
	strengthNames  = []string{"quarter", "half", "three-quarters", "full"}
	edgeNames      = []string{"none", "rising", "falling", "both", "low", "high"}
)

func enumString(names []string, val int, typeName string) string {
	if val >= 0 && val < len(names) {
		return names[val]
	}
	return fmt.Sprintf("%v(%d)", typeName, val)
}

func parseEnum(names []string, str string, typeName string) (int, error) {
	str = strings.ToLower(strings.TrimSpace(str))
	for i, name := range names {
		if name == str {
			return i, nil
		}
	}
	return 0, errors.Wrapf(ErrInvalidArgument, "unknown %v '%v', valid values: %v", typeName, str, names)
}

func (d Direction) String() string { return enumString(directionNames, int(d), "Direction") }
func (p Pull) String() string      { return enumString(pullNames, int(p), "Pull") }
func (d DriveMode) String() string { return enumString(driveNames, int(d), "DriveMode") }
func (e EdgeType) String() string  { return enumString(edgeNames, int(e), "EdgeType") }
func (s DriveStrength) String() string {
	return enumString(strengthNames, int(s), "DriveStrength")
}

func ParseDirection(str string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(str)) {
	case "output":
		return Output, nil
	case "input":
		return Input, nil
	}
	val, err := parseEnum(directionNames, str, "direction")
	return Direction(val), err
}

func ParsePull(str string) (Pull, error) {
	if strings.ToLower(strings.TrimSpace(str)) == "disabled" {
		return PullDisabled, nil
	}
	val, err := parseEnum(pullNames, str, "pull")
	return Pull(val), err
}

func ParseDriveMode(str string) (DriveMode, error) {
	val, err := parseEnum(driveNames, str, "drive mode")
	return DriveMode(val), err
}

func ParseDriveStrength(str string) (DriveStrength, error) {
	val, err := parseEnum(strengthNames, str, "drive strength")
	return DriveStrength(val), err
}

func ParseEdgeType(str string) (EdgeType, error) {
	val, err := parseEnum(edgeNames, str, "edge type")
	return EdgeType(val), err
}

// Value of the 2 bit INTERRUPT_EDGE field
func (e EdgeType) registerValue() (byte, bool) {
	switch e {
	case LevelLow, LevelHigh:
		return EDGE_NONE, true
	case EdgeRising:
		return EDGE_RISING, true
	case EdgeFalling:
		return EDGE_FALLING, true
	case EdgeBoth:
		return EDGE_BOTH, true
	default:
		return 0, false
	}
}
