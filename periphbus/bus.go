// Package periphbus connects the driver to I2C buses and GPIO pins of the host through periph.io,
// for example /dev/i2c-1 and the GPIO header of a Raspberry Pi.
package periphbus

import (
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// Bus implements i2cbus.Bus on top of a periph.io I2C bus
type Bus struct {
	bus i2c.BusCloser
}

func New(bus i2c.BusCloser) *Bus {
	return &Bus{bus: bus}
}

func initHost() error {
	state, err := host.Init()
	if err != nil {
		return errors.Wrap(err, "failed to initialize periph.io host drivers")
	}
	log.Debugf("periph.io: loaded %v host driver(s), %v skipped, %v failed", len(state.Loaded), len(state.Skipped), len(state.Failed))
	return nil
}

// Open opens an I2C bus by name ("1", "/dev/i2c-1", or empty for the first bus) and sets its speed in kHz.
// A speed of zero leaves the bus speed unchanged.
func Open(name string, speedKHz uint) (*Bus, error) {
	if err := initHost(); err != nil {
		return nil, err
	}
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open I2C bus %q", name)
	}
	log.Printf("Opened I2C bus %v", bus)
	b := New(bus)
	if speedKHz > 0 {
		if err := b.SetSpeed(speedKHz); err != nil {
			log.Warnf("Failed to set speed of I2C bus %v to %v kHz: %v", bus, speedKHz, err)
		}
	}
	return b, nil
}

func (b *Bus) SetSpeed(speedKHz uint) error {
	return b.bus.SetSpeed(physic.Frequency(speedKHz) * physic.KiloHertz)
}

func (b *Bus) String() string {
	return b.bus.String()
}

func (b *Bus) Close() error {
	return b.bus.Close()
}

func (b *Bus) I2cWrite(addr byte, data ...byte) error {
	return b.bus.Tx(uint16(addr), data, nil)
}

func (b *Bus) I2cRead(addr byte, data []byte) error {
	return b.bus.Tx(uint16(addr), nil, data)
}

func (b *Bus) I2cWriteRead(addr byte, out, in []byte) error {
	return b.bus.Tx(uint16(addr), out, in)
}

func (b *Bus) I2cGet(addr byte, registerAddr byte, size int) ([]byte, error) {
	data := make([]byte, size)
	return data, b.bus.Tx(uint16(addr), []byte{registerAddr}, data)
}

// IrqPin is a host GPIO input connected to the active-low INT output of the chip.
// It implements kts1622.IrqLine.
type IrqPin struct {
	gpio.PinIn
}

// OpenIrqPin configures the named GPIO pin (for example "GPIO17") as input with pull-up,
// reporting falling edges.
func OpenIrqPin(name string) (*IrqPin, error) {
	if err := initHost(); err != nil {
		return nil, err
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, errors.Errorf("GPIO pin %q not found", name)
	}
	if err := pin.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return nil, errors.Wrapf(err, "failed to configure GPIO pin %v as interrupt input", pin)
	}
	log.Printf("Using GPIO pin %v as interrupt input", pin)
	return &IrqPin{PinIn: pin}, nil
}

// WaitForEdge also returns true if the pin is already low, so an interrupt raised while
// the previous one was dispatched is not lost.
func (p *IrqPin) WaitForEdge(timeout time.Duration) bool {
	if p.PinIn.Read() == gpio.Low {
		return true
	}
	return p.PinIn.WaitForEdge(timeout)
}
