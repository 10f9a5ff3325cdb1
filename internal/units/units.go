// Package units provides shared constants and validation for acceleration units
package units

import "fmt"

// Unit constants
const (
	G    = "g"    // standard gravity
	MPS2 = "mps2" // metres per second squared
)

// StandardGravity is 1 g in m/s².
const StandardGravity = 9.80665

// ValidUnits contains all valid unit values
var ValidUnits = []string{G, MPS2}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "g, mps2"
}

// ConvertAccel converts an acceleration between units. Recordings carry no
// unit of their own; the caller states which unit the samples were logged in.
func ConvertAccel(value float64, from, to string) (float64, error) {
	if !IsValid(from) {
		return 0, fmt.Errorf("invalid source unit %q: must be one of %s", from, GetValidUnitsString())
	}
	if !IsValid(to) {
		return 0, fmt.Errorf("invalid target unit %q: must be one of %s", to, GetValidUnitsString())
	}
	if from == to {
		return value, nil
	}
	if from == G {
		return value * StandardGravity, nil
	}
	return value / StandardGravity, nil
}

// Symbol returns the display symbol for unit.
func Symbol(unit string) string {
	switch unit {
	case MPS2:
		return "m/s²"
	default:
		return "g"
	}
}
