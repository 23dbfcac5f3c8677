package crtp

import "fmt"

// DecodeError reports a frame whose length does not match its kind.
type DecodeError struct {
	Kind     Kind
	Expected int
	Actual   int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: expected %d bytes, got %d", e.Kind, e.Expected, e.Actual)
}

// HeaderError reports a frame of the right size with the wrong port or channel.
type HeaderError struct {
	Kind     Kind
	Expected byte
	Actual   byte
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("decode %s: expected header %.2x, got %.2x", e.Kind, e.Expected, e.Actual)
}
