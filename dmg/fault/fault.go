// Package fault holds the error types shared by the emulator core.
//
// Three kinds of failure exist:
//   - LoadError: the program image cannot become a session. Returned before
//     anything runs.
//   - UnsupportedOpError: the running program hit something the hardware
//     itself refuses to do (an undefined opcode). The session stops advancing
//     and reports it.
//   - InvariantViolation: an internal bug, e.g. an address that resolves to no
//     region. Raised with panic, never recovered by the core.
package fault

import (
	"errors"
	"fmt"
)

// Causes wrapped by LoadError.
var (
	ErrTruncatedHeader      = errors.New("image is too small to contain a cartridge header")
	ErrUnsupportedCartridge = errors.New("unsupported cartridge type")
	ErrBadSizeCode          = errors.New("invalid ROM or RAM size code")
	ErrImageSize            = errors.New("image is smaller than its declared ROM size")
	ErrHeaderChecksum       = errors.New("header checksum mismatch")
	ErrBootROMSize          = errors.New("boot ROM must be exactly 256 bytes")
)

// LoadError is returned when a program image cannot be loaded.
type LoadError struct {
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("load error: %v", e.Err)
	}
	return fmt.Sprintf("load error: %v (%s)", e.Err, e.Reason)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Load builds a LoadError for the given cause.
func Load(cause error, format string, args ...any) *LoadError {
	return &LoadError{Reason: fmt.Sprintf(format, args...), Err: cause}
}

// UnsupportedOpError describes an operation the emulated hardware does not
// perform, along with where the program attempted it.
type UnsupportedOpError struct {
	Kind    string
	Address uint16
	Opcode  uint16
}

func (e *UnsupportedOpError) Error() string {
	return fmt.Sprintf("unsupported %s 0x%02X at 0x%04X", e.Kind, e.Opcode, e.Address)
}

// InvariantViolation reports an internal inconsistency in the core.
type InvariantViolation struct {
	Component string
	Detail    string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation in %s: %s", e.Component, e.Detail)
}

// Violation panics with an InvariantViolation.
func Violation(component, format string, args ...any) {
	panic(&InvariantViolation{Component: component, Detail: fmt.Sprintf(format, args...)})
}
