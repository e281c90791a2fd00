// Package kts1622 drives the Kinetic KTS1622 16 bit I2C GPIO expander.
//
// The 16 pins are split into two ports of 8 pins. Pin n belongs to port n/8, bit n%8.
// Interrupt configuration (mask, edge type) is cached and written to the chip in batches,
// see BeginBatch() and Commit(). The single INT output of the chip is demultiplexed
// into per-pin handlers by Dispatch().
package kts1622

import (
	"fmt"
	"io"
	"sync"

	"github.com/antongulenko/kts1622/i2cbus"
	log "github.com/sirupsen/logrus"
)

// PinController is the per-pin GPIO interface
type PinController interface {
	Get(pin int) (bool, error)
	Set(pin int, value bool) error
	SetDirection(pin int, dir Direction) error
	DirectionInput(pin int) error
	DirectionOutput(pin int, value bool) error
	Direction(pin int) (Direction, error)
	SetPull(pin int, pull Pull) error
	SetDriveMode(pin int, mode DriveMode) error
}

// IrqController is the interrupt virtualization interface. Mask, Unmask, SetEdgeType and Shutdown
// only modify the cache and must be called between BeginBatch and Commit.
type IrqController interface {
	Mask(pin int) error
	Unmask(pin int) error
	SetEdgeType(pin int, edge EdgeType) error
	Shutdown(pin int) error
	BeginBatch()
	// Commit ends the batch started by BeginBatch. Calling it without a batch unlocks an
	// unlocked mutex, which is a fatal runtime error.
	Commit() error
	Dispatch() (IrqReturn, error)
}

var (
	_ PinController = new(Chip)
	_ IrqController = new(Chip)
)

type Chip struct {
	transport transport

	// Held for every register read-modify-write sequence
	stateLock sync.Mutex

	// Held between BeginBatch() and Commit()
	cacheLock  sync.Mutex
	irqMask    [NUM_PORTS]byte // 1 bit per pin, 1: masked
	irqEdge    [4]byte         // 2 bit per pin, 4 pins per byte: EDGE_...
	irqEnabled bool
	domain     LineDomain
}

// New returns an uninitialized chip. Init() resets the chip to the default configuration.
func New(bus i2cbus.Bus, addr byte) *Chip {
	c := &Chip{
		transport: transport{
			bus:  bus,
			addr: addr,
		},
	}
	// Reset state of the INTERRUPT_MASK registers
	c.irqMask[0], c.irqMask[1] = 0xFF, 0xFF
	return c
}

func (c *Chip) Addr() byte {
	return c.transport.addr
}

func (c *Chip) String() string {
	return fmt.Sprintf("KTS1622 at %#02x", c.transport.addr)
}

// Init performs a software reset and configures all pins as push-pull when used as output.
// The reset is sent to the general call address and affects all devices on the bus that support it.
func (c *Chip) Init() error {
	log.Printf("Initializing KTS1622 GPIO expander at %#02x...", c.transport.addr)
	c.stateLock.Lock()
	defer c.stateLock.Unlock()

	err := c.transport.softwareReset()
	c.writeReg(&err, OUTPUT_PORT_CONFIG, OUTPUT_PORT_CONFIG_DEFAULT)
	c.writeReg(&err, INDIVIDUAL_PIN_OUTPUT_0, 0xFF)
	c.writeReg(&err, INDIVIDUAL_PIN_OUTPUT_1, 0xFF)
	return err
}

// Skips the write if a previous write failed
func (c *Chip) writeReg(outErr *error, reg byte, val byte) {
	if *outErr == nil {
		*outErr = c.transport.writeReg(reg, val)
	}
}

// DumpRegisters prints all readable registers, one per line
func (c *Chip) DumpRegisters(w io.Writer) error {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()

	dump := func(reg byte) error {
		val, err := c.transport.readReg(reg)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, " 0x%02X: 0x%02X\n", reg, val)
		return err
	}
	if _, err := fmt.Fprintln(w, "regs:"); err != nil {
		return err
	}
	for reg := INPUT_0; reg <= LAST_STANDARD_REGISTER; reg++ {
		if err := dump(reg); err != nil {
			return err
		}
	}
	for reg := FIRST_EXTENDED_REGISTER; reg <= LAST_REGISTER; reg++ {
		if reg == RESERVED_REGISTER {
			continue
		}
		if err := dump(reg); err != nil {
			return err
		}
	}
	return nil
}
