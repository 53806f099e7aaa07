// File: cmd/minidump_errors.go

package cmd

import (
	"fmt"
)

// ProtocolError means no response could be read for a command before the
// debugger went away or the caller's deadline expired.
type ProtocolError struct {
	Command string
	Err     error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("debugger protocol error on %q: %v", e.Command, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// FrameNotFoundError means the crash stack does not contain the frame that
// holds the error-info structure.
type FrameNotFoundError struct {
	Frame string
	Dump  string
}

func (e *FrameNotFoundError) Error() string {
	return fmt.Sprintf("Unable to find the %s frame for %s.", e.Frame, e.Dump)
}
