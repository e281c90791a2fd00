// Package board sets up a KTS1622 behind one of the supported I2C backends, configured
// through command line flags and an optional YAML board file.
package board

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"time"

	"github.com/antongulenko/golib"
	"github.com/antongulenko/hid"
	"github.com/antongulenko/kts1622/ft260"
	"github.com/antongulenko/kts1622/i2cbus"
	"github.com/antongulenko/kts1622/kts1622"
	"github.com/antongulenko/kts1622/kts1622sim"
	"github.com/antongulenko/kts1622/periphbus"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	BackendFt260  = "ft260"
	BackendPeriph = "periph"
	BackendSim    = "sim"
	BackendDummy  = "dummy"
)

var Backends = []string{BackendFt260, BackendPeriph, BackendSim, BackendDummy}

var DefaultBoard = Board{
	Backend:         BackendFt260,
	UsbDevice:       "",
	I2cBus:          "",
	I2cFreq:         uint(400),
	I2cRequestQueue: 20,
	Address:         uint(kts1622.ADDRESS),
	IrqPollTimeout:  200 * time.Millisecond,
	IrqPollInterval: 2 * time.Millisecond,
}

type Board struct {
	Backend         string
	UsbDevice       string
	I2cBus          string
	I2cFreq         uint
	I2cRequestQueue int
	NoI2cSequencer  bool
	Address         uint
	IrqPin          string // Empty: interrupts disabled
	IrqPollTimeout  time.Duration
	IrqPollInterval time.Duration // Only for FT260 GPIO pins
	ConfigFile      string

	Debounce []int
	Pins     []PinConfig

	// Called for interrupts of pins with an edge in the board file. Nil: log the event.
	IrqHandler kts1622.IrqHandler

	usb       *ft260.Ft260
	periph    *periphbus.Bus
	sim       *kts1622sim.Sim
	rawBus    i2cbus.Bus
	sequencer *i2cbus.Sequencer
	chip      *kts1622.Chip
	irqLine   kts1622.IrqLine
}

func (b *Board) RegisterFlags() {
	flag.StringVar(&b.Backend, "backend", b.Backend, fmt.Sprintf("I2C backend, one of %v", Backends))
	flag.StringVar(&b.UsbDevice, "dev", b.UsbDevice, "Specify a USB path for FT260")
	flag.StringVar(&b.I2cBus, "bus", b.I2cBus, "Name of the I2C bus for the periph backend (empty: first bus)")
	flag.UintVar(&b.I2cFreq, "freq", b.I2cFreq, "The I2C bus frequency in kHz (60 - 3400)")
	flag.BoolVar(&b.NoI2cSequencer, "no-i2c-sequencer", b.NoI2cSequencer, "Disable the extra goroutine for sequencing I2C commands")
	flag.UintVar(&b.Address, "addr", b.Address, fmt.Sprintf("I2C address of the KTS1622 (%#02x - %#02x)", kts1622.ADDRESS, kts1622.MAX_ADDRESS))
	flag.StringVar(&b.IrqPin, "irq-pin", b.IrqPin, "Host pin connected to INT (FT260: gpio0-5 or gpioA-H, periph: GPIO name)")
	flag.DurationVar(&b.IrqPollTimeout, "irq-poll", b.IrqPollTimeout, "Timeout when waiting for interrupts")
	flag.StringVar(&b.ConfigFile, "config", b.ConfigFile, "YAML board file with backend and pin configuration")
}

// ApplyFile overrides the settings that are present in the board file
func (b *Board) ApplyFile(file *File) {
	if file.Backend != "" {
		b.Backend = file.Backend
	}
	if file.Device != "" {
		b.UsbDevice = file.Device
	}
	if file.Bus != "" {
		b.I2cBus = file.Bus
	}
	if file.Frequency != 0 {
		b.I2cFreq = file.Frequency
	}
	if file.Address != 0 {
		b.Address = file.Address
	}
	if file.IrqPin != "" {
		b.IrqPin = file.IrqPin
	}
	b.Debounce = append(b.Debounce, file.Debounce...)
	b.Pins = append(b.Pins, file.Pins...)
}

// SetupBus loads the board file and opens the I2C backend, without touching the chip
func (b *Board) SetupBus() error {
	if b.ConfigFile != "" {
		file, err := LoadFile(b.ConfigFile)
		if err != nil {
			return err
		}
		b.ApplyFile(file)
	}
	if err := b.openBackend(); err != nil {
		return err
	}
	if !b.NoI2cSequencer {
		b.sequencer = i2cbus.NewSequencer(b.rawBus, b.I2cRequestQueue)
		b.sequencer.Start()
	}
	return nil
}

// Setup opens the bus, initializes the chip and applies the pin configuration
func (b *Board) Setup() error {
	if err := b.SetupBus(); err != nil {
		return err
	}
	if b.Address < uint(kts1622.ADDRESS) || b.Address > uint(kts1622.MAX_ADDRESS) {
		log.Warnf("I2C address %#02x is outside the KTS1622 address range", b.Address)
	}
	b.chip = kts1622.New(b.Bus(), byte(b.Address))
	if err := b.chip.Init(); err != nil {
		return err
	}
	if b.irqLine != nil {
		if err := b.chip.SetupIrq(kts1622.NewIrqDomain(0)); err != nil {
			return err
		}
	}
	if err := b.configurePins(); err != nil {
		return err
	}
	log.Printf("Successfully initialized %v (%v backend)", b.chip, b.Backend)
	return nil
}

func (b *Board) openBackend() error {
	switch b.Backend {
	case BackendFt260:
		return b.openFt260()
	case BackendPeriph:
		bus, err := periphbus.Open(b.I2cBus, b.I2cFreq)
		if err != nil {
			return err
		}
		b.periph = bus
		b.rawBus = bus
		if b.IrqPin != "" {
			pin, err := periphbus.OpenIrqPin(b.IrqPin)
			if err != nil {
				return err
			}
			b.irqLine = pin
		}
	case BackendSim:
		log.Println("Simulated board: no USB/I2C peripherals are used")
		b.sim = kts1622sim.New(byte(b.Address))
		b.rawBus = b.sim
		b.irqLine = b.sim
	case BackendDummy:
		log.Println("Dummy board: I2C writes are only logged")
		b.rawBus = new(i2cbus.Dummy)
	default:
		return errors.Errorf("Unknown backend '%v', available: %v", b.Backend, Backends)
	}
	return nil
}

func (b *Board) openFt260() error {
	// Prepare Usb HID library, open FT260 device
	if err := hid.Init(); err != nil {
		return err
	}
	usb, err := ft260.OpenPath(b.UsbDevice)
	if err != nil {
		return err
	}
	b.usb = usb
	b.rawBus = usb

	// Configure and validate system settings
	if err := usb.Configure(b.I2cFreq); err != nil {
		return err
	}
	if err := usb.Validate(b.I2cFreq); err != nil {
		return err
	}
	if b.IrqPin != "" {
		pin, extended, err := ft260.ParseGpio(b.IrqPin)
		if err != nil {
			return err
		}
		line := &ft260.GpioLine{
			Dev:          usb,
			Pin:          pin,
			Extended:     extended,
			PollInterval: b.IrqPollInterval,
		}
		if err := line.Init(); err != nil {
			return err
		}
		b.irqLine = line
	}
	return nil
}

func (b *Board) configurePins() error {
	for _, port := range b.Debounce {
		if err := b.chip.SetDebounce(port, true); err != nil {
			return err
		}
	}
	for _, pin := range b.Pins {
		if err := pin.Apply(b.chip); err != nil {
			return err
		}
		edge, ok := pin.EdgeType()
		if !ok {
			continue
		}
		if b.irqLine == nil {
			log.Warnf("%v: no interrupt pin configured, ignoring %v edge of %v", b.chip, edge, pin)
			continue
		}
		if _, err := b.chip.RequestIrq(pin.Pin, edge, b.irqHandler(pin)); err != nil {
			return errors.Wrapf(err, "failed to request interrupt for %v", pin)
		}
	}
	return nil
}

func (b *Board) irqHandler(pin PinConfig) kts1622.IrqHandler {
	if b.IrqHandler != nil {
		return b.IrqHandler
	}
	return func(line kts1622.VirtualLine, _ int) {
		log.Printf("Interrupt on %v (line %v)", pin, line)
	}
}

// Bus returns the bus used by the chip
func (b *Board) Bus() i2cbus.Bus {
	if b.sequencer != nil {
		return b.sequencer
	}
	return b.rawBus
}

func (b *Board) Chip() *kts1622.Chip {
	return b.chip
}

// Sim returns the simulated chip for the sim backend, otherwise nil
func (b *Board) Sim() *kts1622sim.Sim {
	return b.sim
}

// PinByName looks up a pin of the board file by its name or number
func (b *Board) PinByName(name string) (int, error) {
	for _, p := range b.Pins {
		if p.Name != "" && p.Name == name {
			return p.Pin, nil
		}
	}
	pin, err := strconv.Atoi(name)
	if err != nil {
		return 0, errors.Wrapf(kts1622.ErrInvalidPin, "unknown pin '%v'", name)
	}
	if pin < 0 || pin >= kts1622.NUM_PINS {
		return 0, errors.Wrapf(kts1622.ErrInvalidPin, "pin %v", pin)
	}
	return pin, nil
}

// ServeIrq dispatches interrupts until the context is done
func (b *Board) ServeIrq(ctx context.Context) error {
	if b.irqLine == nil {
		return errors.Wrap(kts1622.ErrUnsupported, "no interrupt pin configured")
	}
	return b.chip.ServeIrq(ctx, b.irqLine, b.IrqPollTimeout)
}

// Cleanup switches the configured output pins back to inputs and closes the backend
func (b *Board) Cleanup() {
	if b.chip != nil {
		for _, pin := range b.Pins {
			if _, ok := pin.EdgeType(); ok && b.chip.IrqEnabled() {
				golib.Printerr(b.chip.FreeIrq(pin.Pin))
			}
			if dir, err := b.chip.Direction(pin.Pin); err == nil && dir == kts1622.Output {
				golib.Printerr(b.chip.DirectionInput(pin.Pin))
			}
		}
	}
	if b.sequencer != nil {
		b.sequencer.Stop()
	}
	if b.usb != nil {
		golib.Printerr(b.usb.Close())
		golib.Printerr(hid.Shutdown())
	}
	if b.periph != nil {
		golib.Printerr(b.periph.Close())
	}
}
