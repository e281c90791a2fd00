package kts1622

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// The pin index is outside [0, NUM_PINS)
	ErrInvalidPin = errors.New("invalid pin")

	// A value outside of a supported enumeration, e.g. an unknown interrupt edge type
	ErrInvalidArgument = errors.New("invalid argument")

	// A configuration the hardware cannot implement
	ErrUnsupported = errors.New("unsupported")
)

// TransportError is returned when the I2C bus failed. The bus error is available via errors.Cause().
type TransportError struct {
	Op   string // "read", "write" or "reset"
	Addr byte   // Slave address
	Reg  byte   // Register address (the command byte for "reset")
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("kts1622 %#02x: %v of register %#02x failed: %v", e.Addr, e.Op, e.Reg, e.Err)
}

func (e *TransportError) Cause() error {
	return e.Err
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func checkPin(pin int) error {
	if pin < 0 || pin >= NUM_PINS {
		return errors.Wrapf(ErrInvalidPin, "pin %v (valid: 0..%v)", pin, NUM_PINS-1)
	}
	return nil
}

func checkPort(port int) error {
	if port < 0 || port >= NUM_PORTS {
		return errors.Wrapf(ErrInvalidArgument, "port %v (valid: 0..%v)", port, NUM_PORTS-1)
	}
	return nil
}
