package kts1622

import (
	"github.com/pkg/errors"
)

func pinPort(pin int) (port int, bit uint) {
	return pin / NUM_PINS_PER_PORT, uint(pin % NUM_PINS_PER_PORT)
}

// Read-modify-write of the pin's bit in a register with one register per port
func (c *Chip) setPinBit(port0Reg byte, pin int, val bool) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	port, bit := pinPort(pin)
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	return c.transport.setBit(portRegister(port0Reg, port), bit, val)
}

func (c *Chip) getPinBit(port0Reg byte, pin int) (bool, error) {
	if err := checkPin(pin); err != nil {
		return false, err
	}
	port, bit := pinPort(pin)
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	return c.transport.getBit(portRegister(port0Reg, port), bit)
}

// Get returns the level of the pin, regardless of its direction
func (c *Chip) Get(pin int) (bool, error) {
	return c.getPinBit(INPUT_0, pin)
}

// Set writes the output latch of the pin. The level is only driven if the pin is an output.
func (c *Chip) Set(pin int, value bool) error {
	return c.setPinBit(OUTPUT_0, pin, value)
}

// OutputValue returns the output latch of the pin
func (c *Chip) OutputValue(pin int) (bool, error) {
	return c.getPinBit(OUTPUT_0, pin)
}

func (c *Chip) SetDirection(pin int, dir Direction) error {
	switch dir {
	case Output:
		return c.setPinBit(CONFIG_0, pin, false)
	case Input:
		return c.setPinBit(CONFIG_0, pin, true)
	default:
		if err := checkPin(pin); err != nil {
			return err
		}
		return errors.Wrapf(ErrUnsupported, "pin %v: direction %v", pin, dir)
	}
}

func (c *Chip) DirectionInput(pin int) error {
	return c.SetDirection(pin, Input)
}

// DirectionOutput sets the output latch before switching the direction,
// so the pin never drives the previous latch value.
func (c *Chip) DirectionOutput(pin int, value bool) error {
	if err := c.Set(pin, value); err != nil {
		return err
	}
	return c.SetDirection(pin, Output)
}

func (c *Chip) Direction(pin int) (Direction, error) {
	input, err := c.getPinBit(CONFIG_0, pin)
	if err != nil {
		return Input, err
	}
	if input {
		return Input, nil
	}
	return Output, nil
}

// SetPull always disables the resistor first. When enabling, the selection is written before
// enabling again, so the pin never sees the old selection enabled. If a step fails, the pull is
// left disabled.
func (c *Chip) SetPull(pin int, pull Pull) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	var pullUp bool
	switch pull {
	case PullDisabled:
	case PullUp:
		pullUp = true
	case PullDown:
		pullUp = false
	default:
		return errors.Wrapf(ErrUnsupported, "pin %v: pull %v", pin, pull)
	}

	port, bit := pinPort(pin)
	enableReg := portRegister(PULL_ENABLE_0, port)
	c.stateLock.Lock()
	defer c.stateLock.Unlock()

	if err := c.transport.setBit(enableReg, bit, false); err != nil {
		return err
	}
	if pull == PullDisabled {
		return nil
	}
	if err := c.transport.setBit(portRegister(PULL_SELECTION_0, port), bit, pullUp); err != nil {
		return err
	}
	return c.transport.setBit(enableReg, bit, true)
}

// SetDriveMode configures the output stage. The INDIVIDUAL_PIN_OUTPUT bit is 0 for open-drain.
func (c *Chip) SetDriveMode(pin int, mode DriveMode) error {
	switch mode {
	case OpenDrain:
		return c.setPinBit(INDIVIDUAL_PIN_OUTPUT_0, pin, false)
	case PushPull:
		return c.setPinBit(INDIVIDUAL_PIN_OUTPUT_0, pin, true)
	default:
		if err := checkPin(pin); err != nil {
			return err
		}
		return errors.Wrapf(ErrUnsupported, "pin %v: drive mode %v", pin, mode)
	}
}

func (c *Chip) SetDriveStrength(pin int, strength DriveStrength) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	if strength < DriveQuarter || strength > DriveFull {
		return errors.Wrapf(ErrUnsupported, "pin %v: drive strength %v", pin, strength)
	}
	reg, shift := twoBitRegister(DRIVE_STRENGTH_0A, pin)
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	return c.transport.setField(reg, shift, 0x03, byte(strength))
}

// SetPolarityInversion makes Get() return the inverted pin level
func (c *Chip) SetPolarityInversion(pin int, invert bool) error {
	return c.setPinBit(POLARITY_INVERSION_0, pin, invert)
}

// SetInputLatch keeps input changes latched until the INPUT register is read
func (c *Chip) SetInputLatch(pin int, latch bool) error {
	return c.setPinBit(INPUT_LATCH_0, pin, latch)
}

// SetDebounce enables the hardware switch debouncing of all pins of a port
func (c *Chip) SetDebounce(port int, enable bool) error {
	if err := checkPort(port); err != nil {
		return err
	}
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	return c.transport.setBit(SWITCH_DEBOUNCE_ENABLE, uint(port), enable)
}

// LatchedStatus returns the latched input levels of all pins of a port
func (c *Chip) LatchedStatus(port int) (byte, error) {
	if err := checkPort(port); err != nil {
		return 0, err
	}
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	return c.transport.readReg(portRegister(INPUT_STATUS_0, port))
}
