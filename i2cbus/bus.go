package i2cbus

import log "github.com/sirupsen/logrus"

const (
	// Addresses outside this range are reserved by the I2C specification
	ScanFirstAddress = byte(0x08)
	ScanLastAddress  = byte(0x77)
)

// Bus is implemented by all I2C masters. Addresses are 7 bit.
type Bus interface {
	I2cWrite(addr byte, data ...byte) error
	I2cRead(addr byte, data []byte) error
	I2cWriteRead(addr byte, out, in []byte) error

	// Write registerAddr, then read size bytes with a repeated start
	I2cGet(addr byte, registerAddr byte, size int) ([]byte, error)
}

// Scan returns the addresses of all slaves acknowledging a single byte read
func Scan(bus Bus) ([]byte, error) {
	var result []byte
	buf := make([]byte, 1)
	for addr := ScanFirstAddress; addr <= ScanLastAddress; addr++ {
		if err := bus.I2cRead(addr, buf); err == nil {
			result = append(result, addr)
		} else {
			log.Debugf("No response from I2C address %#02x: %v", addr, err)
		}
	}
	return result, nil
}
