package nova

import (
	"fmt"
	"strings"
)

// RangeError reports a value outside its legal range.
type RangeError struct {
	Param  Param
	Offset int
	Value  int
	Min    int
	Max    int
}

func (e *RangeError) Error() string {
	if e.Offset > 0 {
		return fmt.Sprintf("%s (byte %d): value %d out of range %d..%d", e.Param, e.Offset, e.Value, e.Min, e.Max)
	}
	return fmt.Sprintf("%s: value %d out of range %d..%d", e.Param, e.Value, e.Min, e.Max)
}

// ValidationErrors collects every rejected field of a decode or batch update.
type ValidationErrors []error

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, err := range v {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d invalid field(s): %s", len(v), strings.Join(msgs, "; "))
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (v ValidationErrors) Unwrap() []error {
	return v
}

// AggregateError is returned when a bank cannot be assembled.
type AggregateError struct {
	Reason string
	Number int
}

func (e *AggregateError) Error() string {
	if e.Number != 0 {
		return fmt.Sprintf("bank: %s (preset %d)", e.Reason, e.Number)
	}
	return "bank: " + e.Reason
}
