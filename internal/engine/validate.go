package engine

import (
	"encoding/json"
	"math"
)

type EarSide int

const (
	EarLeft  EarSide = 0
	EarRight EarSide = 1
	EarBoth  EarSide = 2
)

func (e EarSide) String() string {
	switch e {
	case EarLeft:
		return "left"
	case EarRight:
		return "right"
	case EarBoth:
		return "both"
	default:
		return "unknown"
	}
}

// FrequencyDescriptor is a frequency and the ear it is routed to.
type FrequencyDescriptor struct {
	FrequencyValue float64
	EarSide        EarSide
}

// CanonicalFrequency is the string-typed form the presentation surface
// understands.
type CanonicalFrequency struct {
	Frequency string  `json:"frequency"`
	EarSide   EarSide `json:"earSide"`
}

func (d FrequencyDescriptor) Canonical() CanonicalFrequency {
	return CanonicalFrequency{
		Frequency: ToCanonicalFrequencyString(d.FrequencyValue),
		EarSide:   d.EarSide,
	}
}

// AsNumber accepts the numeric shapes a decoded JSON body or a Go caller can
// produce. Booleans and numeric strings are not numbers.
func AsNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// ParseEarSide accepts only the integers 0, 1 and 2.
func ParseEarSide(v any) (EarSide, bool) {
	n, ok := AsNumber(v)
	if !ok || n != math.Trunc(n) || n < float64(EarLeft) || n > float64(EarBoth) {
		return 0, false
	}
	return EarSide(n), true
}

// ParseFrequencyDescriptor reads {"frequency": number, "earSide": 0|1|2}.
func ParseFrequencyDescriptor(x any) (FrequencyDescriptor, bool) {
	obj, ok := x.(map[string]any)
	if !ok {
		return FrequencyDescriptor{}, false
	}
	freq, ok := AsNumber(obj["frequency"])
	if !ok {
		return FrequencyDescriptor{}, false
	}
	side, ok := ParseEarSide(obj["earSide"])
	if !ok {
		return FrequencyDescriptor{}, false
	}
	return FrequencyDescriptor{FrequencyValue: freq, EarSide: side}, true
}

func IsValidFrequencyDescriptor(x any) bool {
	_, ok := ParseFrequencyDescriptor(x)
	return ok
}

func IsValidFrequencyDescriptorList(xs any) bool {
	_, ok := ParseFrequencyDescriptorList(xs)
	return ok
}

// ParseFrequencyDescriptorList requires a sequence. An empty one is valid.
func ParseFrequencyDescriptorList(xs any) ([]FrequencyDescriptor, bool) {
	items, ok := xs.([]any)
	if !ok {
		return nil, false
	}
	out := make([]FrequencyDescriptor, 0, len(items))
	for _, item := range items {
		d, ok := ParseFrequencyDescriptor(item)
		if !ok {
			return nil, false
		}
		out = append(out, d)
	}
	return out, true
}
