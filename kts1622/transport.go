package kts1622

import (
	"github.com/antongulenko/kts1622/i2cbus"
	"github.com/pkg/errors"
)

// Single byte register access on one slave address. Not synchronized, see Chip.stateLock.
type transport struct {
	bus  i2cbus.Bus
	addr byte
}

func (t *transport) writeReg(reg byte, val byte) error {
	if err := t.bus.I2cWrite(t.addr, reg, val); err != nil {
		return &TransportError{Op: "write", Addr: t.addr, Reg: reg, Err: err}
	}
	return nil
}

func (t *transport) readReg(reg byte) (byte, error) {
	data, err := t.bus.I2cGet(t.addr, reg, 1)
	if err == nil && len(data) != 1 {
		err = errors.Errorf("expected 1 byte, received %v", len(data))
	}
	if err != nil {
		return 0, &TransportError{Op: "read", Addr: t.addr, Reg: reg, Err: err}
	}
	return data[0], nil
}

// The reset command is sent to the general call address, the configured address is restored
// afterwards even if the write fails.
func (t *transport) softwareReset() error {
	origAddr := t.addr
	defer func() {
		t.addr = origAddr
	}()
	t.addr = GENERAL_CALL_ADDRESS
	if err := t.bus.I2cWrite(t.addr, SOFTWARE_RESET); err != nil {
		return &TransportError{Op: "reset", Addr: t.addr, Reg: SOFTWARE_RESET, Err: err}
	}
	return nil
}

// Read-modify-write of one bit. Two bus transactions.
func (t *transport) setBit(reg byte, bit uint, val bool) error {
	regVal, err := t.readReg(reg)
	if err != nil {
		return err
	}
	if val {
		regVal |= 1 << bit
	} else {
		regVal &^= 1 << bit
	}
	return t.writeReg(reg, regVal)
}

// Read-modify-write of the bits selected by mask<<shift
func (t *transport) setField(reg byte, shift uint, mask byte, val byte) error {
	regVal, err := t.readReg(reg)
	if err != nil {
		return err
	}
	regVal = regVal&^(mask<<shift) | (val&mask)<<shift
	return t.writeReg(reg, regVal)
}

func (t *transport) getBit(reg byte, bit uint) (bool, error) {
	regVal, err := t.readReg(reg)
	return regVal&(1<<bit) != 0, err
}
