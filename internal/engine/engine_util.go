package engine

import (
	"math"
	"strconv"
	"strings"
)

func NewState() State {
	return State{}
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

// ToCanonicalFrequencyString renders n the way the web client's runtime
// prints numbers: shortest round-trip digits, exponent form outside
// [1e-6, 1e21), and literal NaN/Infinity.
func ToCanonicalFrequencyString(n float64) string {
	switch {
	case math.IsNaN(n):
		return "NaN"
	case math.IsInf(n, 1):
		return "Infinity"
	case math.IsInf(n, -1):
		return "-Infinity"
	case n == 0:
		return "0" // covers -0
	}

	abs := math.Abs(n)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(n, 'e', -1, 64)
		mantissa, exp, _ := strings.Cut(s, "e")
		digits := strings.TrimLeft(exp[1:], "0")
		return mantissa + "e" + exp[:1] + digits
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func CanonicalizeAll(ds []FrequencyDescriptor) []CanonicalFrequency {
	out := make([]CanonicalFrequency, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.Canonical())
	}
	return out
}
