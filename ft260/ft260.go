package ft260

import (
	"fmt"
	"sync"

	"github.com/antongulenko/hid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	FTDIVendorId   = 0x0403
	FT260ProductId = 0x6030

	// Largest HID report including the report ID
	MaxReportLen = 64
)

// Device is the subset of *hid.Device used to exchange reports
type Device interface {
	Write(b []byte) (int, error)
	Read(b []byte) (int, error)
	Close() error
}

type Ft260Driver struct {
	Vendor  uint16
	Product uint16
	Path    string // Empty: use the first matching device
}

func (d *Ft260Driver) Open() (*Ft260, error) {
	if !hid.Supported() {
		return nil, errors.New("USB HID is not supported on this platform")
	}
	vendor, product := d.Vendor, d.Product
	if vendor == 0 {
		vendor = FTDIVendorId
	}
	if product == 0 {
		product = FT260ProductId
	}
	devices := hid.Enumerate(vendor, product)
	if d.Path != "" {
		var matching []hid.DeviceInfo
		for _, info := range devices {
			if info.Path == d.Path {
				matching = append(matching, info)
			}
		}
		devices = matching
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("No USB HID device found with vendorID=%04x productID=%04x path=%q", vendor, product, d.Path)
	}
	if len(devices) > 1 {
		log.Warnf("Multiple devices connected with vendorID=%04x productID=%04x, using first", vendor, product)
	}
	info := devices[0]
	log.Printf("Opening USB HID device %v (USB %v): %v (%04x) from %v (%04x), Release %v",
		info.Path, info.Interface, info.Product, info.ProductID, info.Manufacturer, info.VendorID, info.Release)
	dev, err := info.Open()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open USB HID device %v", info.Path)
	}
	return New(dev), nil
}

func Open() (*Ft260, error) {
	return (&Ft260Driver{}).Open()
}

func OpenPath(path string) (*Ft260, error) {
	return (&Ft260Driver{Path: path}).Open()
}

// Ft260 is a USB-to-I2C bridge. It implements i2cbus.Bus, all methods are safe for concurrent use.
type Ft260 struct {
	dev  Device
	lock sync.Mutex
}

func New(dev Device) *Ft260 {
	return &Ft260{dev: dev}
}

func (f *Ft260) Close() error {
	return f.dev.Close()
}

type ReportIn interface {
	// Receives the report data without the report ID
	Unmarshall(data []byte) error
	ReportID() byte
	ReportLen() int // Without report ID
}

type ReportOut interface {
	// Fills the report data without the report ID
	Marshall(data []byte) error
	ReportID() byte
	ReportLen() int // Without report ID
}

// Reports with a length depending on their content. Input reports implementing this can be shorter than ReportLen().
type variableSizeReport interface {
	IsVariableSize() bool
}

// Input reports with a range of valid report IDs
type variableIdReport interface {
	ValidReportID(id byte) bool
}

func (f *Ft260) Write(report ReportOut) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.write(report)
}

func (f *Ft260) Read(report ReportIn) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.read(report)
}

// Caller holds the lock
func (f *Ft260) write(report ReportOut) error {
	data := make([]byte, report.ReportLen()+1)
	data[0] = report.ReportID()
	if err := report.Marshall(data[1:]); err != nil {
		return err
	}
	n, err := f.dev.Write(data)
	if err == nil && n != len(data) {
		err = fmt.Errorf("ft260: wrong write len (%v instead of %v)", n, len(data))
	}
	return err
}

// Caller holds the lock
func (f *Ft260) read(report ReportIn) error {
	data := make([]byte, report.ReportLen()+1)
	data[0] = report.ReportID()
	n, err := f.dev.Read(data)
	if err != nil {
		return err
	}
	if variable, ok := report.(variableSizeReport); ok && variable.IsVariableSize() {
		if n < 2 {
			return fmt.Errorf("ft260: short read (%v byte)", n)
		}
	} else if n != len(data) {
		return fmt.Errorf("ft260: wrong read len (%v instead of %v)", n, len(data))
	}
	id := data[0]
	if variable, ok := report.(variableIdReport); ok {
		if !variable.ValidReportID(id) {
			return fmt.Errorf("Unexpected report id %02x", id)
		}
	} else if id != report.ReportID() {
		return fmt.Errorf("Unexpected report id (expected %02x, received %02x)", report.ReportID(), id)
	}
	return report.Unmarshall(data[1:n])
}

func _readBool(b []byte, index int, e *error) bool {
	if *e == nil {
		val := b[index]
		if val == 0 {
			return false
		} else if val == 1 {
			return true
		} else {
			*e = fmt.Errorf("Expected 0 or 1 for byte at index %v, but got %02x", index, val)
		}
	}
	return false
}
