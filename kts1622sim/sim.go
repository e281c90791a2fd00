// Package kts1622sim simulates the register file of a KTS1622 behind an I2C bus.
//
// The simulator records every register transaction, so tests can check the exact bus traffic of the
// driver. External pin levels are driven with SetLevel(), which also raises interrupts according to
// the mask and edge registers. The simulated INT line is available through WaitForEdge().
package kts1622sim

import (
	"fmt"
	"sync"
	"time"

	"github.com/antongulenko/kts1622/kts1622"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var (
	ErrNoAck      = errors.New("no acknowledge from slave")
	ErrNoRegister = errors.New("register does not exist")
	ErrBurst      = errors.New("multi-byte register access not supported")
)

type Op int

const (
	OpRead = Op(iota)
	OpWrite
	OpReset
)

func (o Op) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpReset:
		return "reset"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// Transaction is one single-byte register access, or a software reset
type Transaction struct {
	Op    Op
	Addr  byte
	Reg   byte
	Value byte
}

func (t Transaction) String() string {
	return fmt.Sprintf("%v %#02x[%#02x]=%#02x", t.Op, t.Addr, t.Reg, t.Value)
}

func Write(addr, reg, val byte) Transaction {
	return Transaction{Op: OpWrite, Addr: addr, Reg: reg, Value: val}
}

func Read(addr, reg, val byte) Transaction {
	return Transaction{Op: OpRead, Addr: addr, Reg: reg, Value: val}
}

// Sim is a KTS1622 on its own I2C bus. It implements i2cbus.Bus and kts1622.IrqLine.
type Sim struct {
	Addr byte

	// If set and returning true, the transaction fails with ErrNoAck and has no effect.
	// Failed transactions are not recorded.
	FailWhen func(t Transaction) bool

	lock         sync.Mutex
	regs         [int(kts1622.LAST_REGISTER) + 1]byte
	levels       [kts1622.NUM_PORTS]byte // Externally driven pin levels
	pointer      byte
	transactions []Transaction
	irq          chan struct{}
}

func New(addr byte) *Sim {
	s := &Sim{
		Addr: addr,
		irq:  make(chan struct{}, 1),
	}
	s.reset()
	return s
}

func (s *Sim) reset() {
	s.regs = [len(s.regs)]byte{}
	for port := 0; port < kts1622.NUM_PORTS; port++ {
		s.regs[kts1622.OUTPUT_0+byte(port)] = 0xFF
		s.regs[kts1622.CONFIG_0+byte(port)] = 0xFF
		s.regs[kts1622.PULL_SELECTION_0+byte(port)] = 0xFF
		s.regs[kts1622.INTERRUPT_MASK_0+byte(port)] = 0xFF
	}
	for reg := kts1622.DRIVE_STRENGTH_0A; reg <= kts1622.DRIVE_STRENGTH_1B; reg++ {
		s.regs[reg] = 0xFF
	}
	s.pointer = 0
}

func (s *Sim) validRegister(reg byte) bool {
	return reg <= kts1622.LAST_STANDARD_REGISTER ||
		(reg >= kts1622.FIRST_EXTENDED_REGISTER && reg <= kts1622.LAST_REGISTER && reg != kts1622.RESERVED_REGISTER)
}

func (s *Sim) fail(t Transaction) bool {
	return s.FailWhen != nil && s.FailWhen(t)
}

func (s *Sim) I2cWrite(addr byte, data ...byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if addr == kts1622.GENERAL_CALL_ADDRESS {
		if len(data) != 1 || data[0] != kts1622.SOFTWARE_RESET {
			return errors.Wrapf(ErrNoAck, "general call %#02v", data)
		}
		t := Transaction{Op: OpReset, Addr: addr, Reg: data[0]}
		if s.fail(t) {
			return ErrNoAck
		}
		s.reset()
		s.transactions = append(s.transactions, t)
		return nil
	}
	if addr != s.Addr {
		return errors.Wrapf(ErrNoAck, "address %#02x", addr)
	}
	switch len(data) {
	case 0:
		return nil
	case 1:
		if !s.validRegister(data[0]) {
			return errors.Wrapf(ErrNoRegister, "%#02x", data[0])
		}
		s.pointer = data[0]
		return nil
	case 2:
		return s.writeRegister(data[0], data[1])
	default:
		return ErrBurst
	}
}

func (s *Sim) I2cRead(addr byte, data []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if addr != s.Addr {
		return errors.Wrapf(ErrNoAck, "address %#02x", addr)
	}
	if len(data) > 1 {
		return ErrBurst
	}
	for i := range data {
		val, err := s.readRegister(s.pointer)
		if err != nil {
			return err
		}
		data[i] = val
	}
	return nil
}

func (s *Sim) I2cWriteRead(addr byte, out, in []byte) error {
	if len(out) > 1 {
		return ErrBurst
	}
	if err := s.I2cWrite(addr, out...); err != nil {
		return err
	}
	return s.I2cRead(addr, in)
}

func (s *Sim) I2cGet(addr byte, registerAddr byte, size int) ([]byte, error) {
	data := make([]byte, size)
	return data, s.I2cWriteRead(addr, []byte{registerAddr}, data)
}

// Caller holds the lock
func (s *Sim) writeRegister(reg, val byte) error {
	if !s.validRegister(reg) {
		return errors.Wrapf(ErrNoRegister, "%#02x", reg)
	}
	t := Write(s.Addr, reg, val)
	if s.fail(t) {
		return ErrNoAck
	}
	s.transactions = append(s.transactions, t)
	switch reg {
	case kts1622.INPUT_0, kts1622.INPUT_1,
		kts1622.INTERRUPT_STATUS_0, kts1622.INTERRUPT_STATUS_1,
		kts1622.INPUT_STATUS_0, kts1622.INPUT_STATUS_1:
		// Read only
	case kts1622.INTERRUPT_CLEAR_0, kts1622.INTERRUPT_CLEAR_1:
		s.regs[kts1622.INTERRUPT_STATUS_0+(reg-kts1622.INTERRUPT_CLEAR_0)] &^= val
	default:
		s.regs[reg] = val
	}
	s.pointer = reg
	return nil
}

// Caller holds the lock
func (s *Sim) readRegister(reg byte) (byte, error) {
	if !s.validRegister(reg) {
		return 0, errors.Wrapf(ErrNoRegister, "%#02x", reg)
	}
	var val byte
	switch reg {
	case kts1622.INPUT_0, kts1622.INPUT_1:
		port := int(reg - kts1622.INPUT_0)
		val = s.pinLevels(port) ^ s.regs[kts1622.POLARITY_INVERSION_0+byte(port)]
	case kts1622.INPUT_STATUS_0, kts1622.INPUT_STATUS_1:
		val = s.pinLevels(int(reg - kts1622.INPUT_STATUS_0))
	case kts1622.INTERRUPT_CLEAR_0, kts1622.INTERRUPT_CLEAR_1:
		val = 0
	default:
		val = s.regs[reg]
	}
	t := Read(s.Addr, reg, val)
	if s.fail(t) {
		return 0, ErrNoAck
	}
	s.transactions = append(s.transactions, t)
	return val, nil
}

// Input pins show the external level, output pins their output latch
func (s *Sim) pinLevels(port int) byte {
	config := s.regs[kts1622.CONFIG_0+byte(port)]
	return s.levels[port]&config | s.regs[kts1622.OUTPUT_0+byte(port)]&^config
}

// SetLevel drives an input pin from the outside. If the change matches the edge configuration of an
// unmasked pin, its interrupt status bit is set and the INT line is asserted.
func (s *Sim) SetLevel(pin int, level bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	port, bit := pin/kts1622.NUM_PINS_PER_PORT, uint(pin%kts1622.NUM_PINS_PER_PORT)
	old := s.levels[port]&(1<<bit) != 0
	if level {
		s.levels[port] |= 1 << bit
	} else {
		s.levels[port] &^= 1 << bit
	}
	if old == level {
		return
	}
	if s.regs[kts1622.CONFIG_0+byte(port)]&(1<<bit) == 0 {
		return // Output
	}
	if s.regs[kts1622.INTERRUPT_MASK_0+byte(port)]&(1<<bit) != 0 {
		return
	}
	edgeReg := kts1622.INTERRUPT_EDGE_0A + byte(pin/kts1622.PINS_PER_2BIT_REG)
	edge := (s.regs[edgeReg] >> (uint(pin%kts1622.PINS_PER_2BIT_REG) * 2)) & 0x03
	if (level && edge&kts1622.EDGE_RISING != 0) || (!level && edge&kts1622.EDGE_FALLING != 0) {
		log.Debugf("Simulated KTS1622 %#02x: interrupt on pin %v", s.Addr, pin)
		s.raiseLocked(port, 1<<bit)
	}
}

// RaiseStatus sets interrupt status bits directly and asserts the INT line
func (s *Sim) RaiseStatus(port int, bits byte) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.raiseLocked(port, bits)
}

func (s *Sim) raiseLocked(port int, bits byte) {
	s.regs[kts1622.INTERRUPT_STATUS_0+byte(port)] |= bits
	select {
	case s.irq <- struct{}{}:
	default:
	}
}

// WaitForEdge returns true when an interrupt was raised before the timeout
func (s *Sim) WaitForEdge(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-s.irq:
		return true
	case <-timer.C:
		return false
	}
}

// Register returns a register value without recording a transaction
func (s *Sim) Register(reg byte) byte {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.regs[reg]
}

// SetRegister modifies a register without recording a transaction
func (s *Sim) SetRegister(reg, val byte) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.regs[reg] = val
}

func (s *Sim) Transactions() []Transaction {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]Transaction(nil), s.transactions...)
}

// Writes returns the recorded register writes, optionally only those to the given registers
func (s *Sim) Writes(regs ...byte) []Transaction {
	var res []Transaction
	for _, t := range s.Transactions() {
		if t.Op != OpWrite {
			continue
		}
		if len(regs) == 0 {
			res = append(res, t)
			continue
		}
		for _, reg := range regs {
			if t.Reg == reg {
				res = append(res, t)
				break
			}
		}
	}
	return res
}

func (s *Sim) ClearTransactions() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.transactions = nil
}
