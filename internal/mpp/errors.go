package mpp

import "fmt"

// SchemaError is returned when a registry payload lacks a required key or
// carries a value of the wrong JSON type.
type SchemaError struct {
	Key string
	Err error
}

func (e SchemaError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("payload did not contain the key %q", e.Key)
	}
	return fmt.Sprintf("payload key %q: %v", e.Key, e.Err)
}

func (e SchemaError) Unwrap() error { return e.Err }

// DateFormatError is returned when a non-null date or timestamp field does
// not match its expected format.
type DateFormatError struct {
	Key   string
	Value string
	Err   error
}

func (e DateFormatError) Error() string {
	return fmt.Sprintf("payload key %q: invalid date %q: %v", e.Key, e.Value, e.Err)
}

func (e DateFormatError) Unwrap() error { return e.Err }
