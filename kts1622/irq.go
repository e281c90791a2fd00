package kts1622

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type IrqReturn int

const (
	NotHandled = IrqReturn(iota)
	Handled
)

func (r IrqReturn) String() string {
	if r == Handled {
		return "handled"
	}
	return "not handled"
}

// IrqLine is the host input connected to the INT output of the chip
type IrqLine interface {
	// Returns true if the line was asserted before the timeout
	WaitForEdge(timeout time.Duration) bool
}

// SetupIrq loads the current mask and edge configuration of the chip into the cache and enables
// RequestIrq() and ServeIrq(). Dispatch() resolves pins through the given domain.
func (c *Chip) SetupIrq(domain LineDomain) error {
	c.cacheLock.Lock()
	defer c.cacheLock.Unlock()
	c.stateLock.Lock()
	defer c.stateLock.Unlock()

	var irqMask [NUM_PORTS]byte
	var irqEdge [4]byte
	for port := 0; port < NUM_PORTS; port++ {
		var err error
		if irqMask[port], err = c.transport.readReg(portRegister(INTERRUPT_MASK_0, port)); err != nil {
			return err
		}
		for i := 0; i < 2; i++ {
			if irqEdge[port*2+i], err = c.transport.readReg(INTERRUPT_EDGE_0A + byte(port*2+i)); err != nil {
				return err
			}
		}
	}
	c.irqMask, c.irqEdge = irqMask, irqEdge
	c.domain = domain
	c.irqEnabled = true
	log.Debugf("%v: interrupts enabled, mask %08b %08b, edge %02x", c, irqMask[1], irqMask[0], irqEdge)
	return nil
}

func (c *Chip) IrqEnabled() bool {
	c.cacheLock.Lock()
	defer c.cacheLock.Unlock()
	return c.irqEnabled
}

// Mask disables the interrupt of the pin in the cache. Caller holds the batch.
func (c *Chip) Mask(pin int) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	port, bit := pinPort(pin)
	c.irqMask[port] |= 1 << bit
	return nil
}

// Unmask enables the interrupt of the pin in the cache. Caller holds the batch.
func (c *Chip) Unmask(pin int) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	port, bit := pinPort(pin)
	c.irqMask[port] &^= 1 << bit
	return nil
}

// SetEdgeType stores the trigger of the pin in the cache. Caller holds the batch.
// LevelLow and LevelHigh are accepted, but the pin will not trigger at all.
func (c *Chip) SetEdgeType(pin int, edge EdgeType) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	val, ok := edge.registerValue()
	if !ok {
		return errors.Wrapf(ErrInvalidArgument, "pin %v: unsupported irq type %v", pin, edge)
	}
	if edge == LevelLow || edge == LevelHigh {
		log.Warnf("%v: pin %v: level triggered interrupts (%v) are not supported, edge detection disabled", c, pin, edge)
	}
	c.setEdgeSlot(pin, val)
	return nil
}

// Shutdown disables edge detection of the pin in the cache. Caller holds the batch.
func (c *Chip) Shutdown(pin int) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	c.setEdgeSlot(pin, EDGE_NONE)
	return nil
}

func (c *Chip) setEdgeSlot(pin int, val byte) {
	index, shift := pin/PINS_PER_2BIT_REG, uint(pin%PINS_PER_2BIT_REG)*2
	c.irqEdge[index] = c.irqEdge[index]&^(0x03<<shift) | val<<shift
}

// BeginBatch must be followed by Commit
func (c *Chip) BeginBatch() {
	c.cacheLock.Lock()
}

// Commit writes the complete cached mask and edge configuration to the chip and ends the batch.
// If a write fails, the following writes are skipped. The cache is kept, so the next Commit
// writes all registers again. Commit without a preceding BeginBatch is a fatal error.
func (c *Chip) Commit() error {
	defer c.cacheLock.Unlock()
	c.stateLock.Lock()
	defer c.stateLock.Unlock()

	var err error
	for port := 0; port < NUM_PORTS; port++ {
		c.writeReg(&err, portRegister(INTERRUPT_MASK_0, port), c.irqMask[port])
		c.writeReg(&err, INTERRUPT_EDGE_0A+byte(port*2), c.irqEdge[port*2])
		c.writeReg(&err, INTERRUPT_EDGE_0A+byte(port*2+1), c.irqEdge[port*2+1])
	}
	return err
}

// Dispatch reads and acknowledges the interrupt status of both ports, then calls the handlers
// of all pins that were flagged. Status bits set between reading and acknowledging remain
// set and cause the next interrupt.
func (c *Chip) Dispatch() (IrqReturn, error) {
	status, domain, err := c.readAndClearStatus()
	if err != nil && status == [NUM_PORTS]byte{} {
		return NotHandled, err
	}

	nhandled := 0
	for port := 0; port < NUM_PORTS; port++ {
		for bit := 0; bit < NUM_PINS_PER_PORT; bit++ {
			if (status[port]>>uint(bit))&0x01 == 0 {
				continue
			}
			nhandled++
			pin := port*NUM_PINS_PER_PORT + bit
			c.handleNested(domain, pin)
		}
	}
	if nhandled > 0 {
		return Handled, err
	}
	return NotHandled, err
}

func (c *Chip) readAndClearStatus() (status [NUM_PORTS]byte, domain LineDomain, err error) {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	domain = c.domain

	for port := 0; port < NUM_PORTS; port++ {
		if status[port], err = c.transport.readReg(portRegister(INTERRUPT_STATUS_0, port)); err != nil {
			return [NUM_PORTS]byte{}, domain, err
		}
	}
	for port := 0; port < NUM_PORTS; port++ {
		if status[port] != 0 {
			if clearErr := c.transport.writeReg(portRegister(INTERRUPT_CLEAR_0, port), status[port]); clearErr != nil && err == nil {
				err = clearErr
			}
		}
	}
	return
}

func (c *Chip) handleNested(domain LineDomain, pin int) {
	if domain == nil {
		log.Debugf("%v: interrupt on pin %v, but no line domain configured", c, pin)
		return
	}
	line, handler, ok := domain.Lookup(pin)
	if !ok || handler == nil {
		log.Debugf("%v: interrupt on unmapped pin %v", c, pin)
		return
	}
	handler(line, pin)
}

// RequestIrq maps the pin in the domain (which must be an *IrqDomain) and enables
// its interrupt with the given trigger.
func (c *Chip) RequestIrq(pin int, edge EdgeType, handler IrqHandler) (VirtualLine, error) {
	domain, err := c.irqDomain()
	if err != nil {
		return 0, err
	}
	line, err := domain.Map(pin, handler)
	if err != nil {
		return 0, err
	}

	c.BeginBatch()
	err = c.SetEdgeType(pin, edge)
	if err == nil {
		err = c.Unmask(pin)
	}
	if err != nil {
		c.cacheLock.Unlock()
		domain.Unmap(pin)
		return 0, err
	}
	if err := c.Commit(); err != nil {
		// Roll back the cache so a later Commit does not enable the line
		c.BeginBatch()
		c.Mask(pin)
		c.Shutdown(pin)
		c.cacheLock.Unlock()
		domain.Unmap(pin)
		return 0, err
	}
	log.Debugf("%v: requested %v interrupt on pin %v (line %v)", c, edge, pin, line)
	return line, nil
}

// FreeIrq masks the interrupt of the pin, disables its edge detection and removes the mapping
func (c *Chip) FreeIrq(pin int) error {
	domain, err := c.irqDomain()
	if err != nil {
		return err
	}
	if err := checkPin(pin); err != nil {
		return err
	}
	c.BeginBatch()
	c.Mask(pin)
	c.Shutdown(pin)
	err = c.Commit()
	domain.Unmap(pin)
	return err
}

func (c *Chip) irqDomain() (*IrqDomain, error) {
	c.cacheLock.Lock()
	defer c.cacheLock.Unlock()
	if !c.irqEnabled {
		return nil, errors.Wrapf(ErrUnsupported, "%v: interrupts not set up", c)
	}
	domain, ok := c.domain.(*IrqDomain)
	if !ok {
		return nil, errors.Wrapf(ErrUnsupported, "%v: line domain %T does not support mapping", c, c.domain)
	}
	return domain, nil
}

// ServeIrq calls Dispatch() whenever the INT line is asserted, until the context is done.
// The line is checked for cancellation at least every pollTimeout.
func (c *Chip) ServeIrq(ctx context.Context, line IrqLine, pollTimeout time.Duration) error {
	if !c.IrqEnabled() {
		return errors.Wrapf(ErrUnsupported, "%v: interrupts not set up", c)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !line.WaitForEdge(pollTimeout) {
			continue
		}
		result, err := c.Dispatch()
		if err != nil {
			log.Errorf("%v: interrupt dispatch failed: %v", c, err)
		} else if result == NotHandled {
			log.Debugf("%v: stray interrupt", c)
		}
	}
}

// CachedIrqConfig returns a copy of the cached interrupt configuration that the next Commit() writes
func (c *Chip) CachedIrqConfig() (mask [NUM_PORTS]byte, edge [4]byte) {
	c.cacheLock.Lock()
	defer c.cacheLock.Unlock()
	return c.irqMask, c.irqEdge
}
