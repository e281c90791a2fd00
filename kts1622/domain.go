package kts1622

import "sync"

// VirtualLine identifies the interrupt of one pin towards the consumer
type VirtualLine int

// IrqHandler is invoked from the interrupt service context, outside of all chip locks.
// It may call methods of the chip.
type IrqHandler func(line VirtualLine, pin int)

// LineDomain resolves pins to the consumer's virtual lines and handlers
type LineDomain interface {
	Lookup(pin int) (VirtualLine, IrqHandler, bool)
}

type mappedLine struct {
	line    VirtualLine
	handler IrqHandler
}

// IrqDomain maps pin n to the virtual line Base+n
type IrqDomain struct {
	Base VirtualLine

	lock  sync.RWMutex
	lines map[int]mappedLine
}

func NewIrqDomain(base VirtualLine) *IrqDomain {
	return &IrqDomain{
		Base:  base,
		lines: make(map[int]mappedLine, NUM_PINS),
	}
}

func (d *IrqDomain) Map(pin int, handler IrqHandler) (VirtualLine, error) {
	if err := checkPin(pin); err != nil {
		return 0, err
	}
	line := d.Base + VirtualLine(pin)
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.lines == nil {
		d.lines = make(map[int]mappedLine, NUM_PINS)
	}
	d.lines[pin] = mappedLine{line: line, handler: handler}
	return line, nil
}

func (d *IrqDomain) Unmap(pin int) {
	d.lock.Lock()
	defer d.lock.Unlock()
	delete(d.lines, pin)
}

func (d *IrqDomain) Lookup(pin int) (VirtualLine, IrqHandler, bool) {
	d.lock.RLock()
	defer d.lock.RUnlock()
	m, ok := d.lines[pin]
	return m.line, m.handler, ok
}
