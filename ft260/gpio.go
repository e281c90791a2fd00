package ft260

import (
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	ReportID_GPIO = 0xB0 // Feature
)

// ReportID_GPIO Feature In and Out
type ReportGpio struct {
	Value   byte // GPIO 0-5 bits
	Dir     byte // GPIO 0-5 direction bits
	ValueEx byte // GPIO A-H bits
	DirEx   byte // GPIO A-H direction bits
}

func (r *ReportGpio) ReportID() byte {
	return ReportID_GPIO
}

func (r *ReportGpio) ReportLen() int {
	return 4
}

func (r *ReportGpio) Marshall(b []byte) error {
	b[0] = r.Value
	b[1] = r.Dir
	b[2] = r.ValueEx
	b[3] = r.DirEx
	return nil
}

func (r *ReportGpio) Unmarshall(b []byte) error {
	r.Value = b[0]
	r.Dir = b[1]
	r.ValueEx = b[2]
	r.DirEx = b[3]
	return nil
}

// ParseGpio parses pin names like "gpio3" or "gpioH"
func ParseGpio(name string) (pin byte, extended bool, err error) {
	if len(name) != 5 || !strings.HasPrefix(strings.ToLower(name), "gpio") {
		return 0, false, fmt.Errorf("Invalid FT260 GPIO name %q", name)
	}
	switch c := name[4]; {
	case c >= '0' && c <= '5':
		return c - '0', false, nil
	case c >= 'A' && c <= 'H':
		return c - 'A', true, nil
	case c >= 'a' && c <= 'h':
		return c - 'a', true, nil
	default:
		return 0, false, fmt.Errorf("Invalid FT260 GPIO name %q", name)
	}
}

// GpioLine is an active-low interrupt input on one of the FT260 GPIO pins.
// The HID interface does not report pin changes, so the pin is polled.
type GpioLine struct {
	Dev          *Ft260
	Pin          byte // 0..5, or 0..7 for GPIO A-H
	Extended     bool
	PollInterval time.Duration
}

// Init configures the pin as input
func (l *GpioLine) Init() error {
	l.Dev.lock.Lock()
	defer l.Dev.lock.Unlock()
	var gpio ReportGpio
	if err := l.Dev.read(&gpio); err != nil {
		return err
	}
	if l.Extended {
		gpio.DirEx &^= 1 << l.Pin
	} else {
		gpio.Dir &^= 1 << l.Pin
	}
	log.Debugf("FT260: configuring %v as interrupt input", l)
	return l.Dev.write(&gpio)
}

func (l *GpioLine) String() string {
	if l.Extended {
		return fmt.Sprintf("GPIO %c", 'A'+l.Pin)
	}
	return fmt.Sprintf("GPIO %v", l.Pin)
}

// Asserted returns true while the pin is low
func (l *GpioLine) Asserted() (bool, error) {
	var gpio ReportGpio
	if err := l.Dev.Read(&gpio); err != nil {
		return false, err
	}
	value := gpio.Value
	if l.Extended {
		value = gpio.ValueEx
	}
	return value&(1<<l.Pin) == 0, nil
}

// WaitForEdge implements kts1622.IrqLine. It returns true as soon as the pin is low.
func (l *GpioLine) WaitForEdge(timeout time.Duration) bool {
	interval := l.PollInterval
	if interval <= 0 {
		interval = time.Millisecond
	}
	deadline := time.Now().Add(timeout)
	for {
		asserted, err := l.Asserted()
		if err != nil {
			log.Errorf("FT260: failed to read %v: %v", l, err)
		} else if asserted {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(interval)
	}
}
