package i2cbus

import log "github.com/sirupsen/logrus"

// Dummy logs all writes and reads zeros
type Dummy struct {
}

func (d *Dummy) I2cWrite(addr byte, data ...byte) error {
	log.Printf("Dummy I2C write to %#02x: %#02v", addr, data)
	return nil
}

func (d *Dummy) I2cRead(addr byte, data []byte) error {
	for i := range data {
		data[i] = 0
	}
	log.Printf("Dummy I2C read of %v byte(s) from %#02x", len(data), addr)
	return nil
}

func (d *Dummy) I2cWriteRead(addr byte, out, in []byte) error {
	if err := d.I2cWrite(addr, out...); err != nil {
		return err
	}
	return d.I2cRead(addr, in)
}

func (d *Dummy) I2cGet(addr byte, registerAddr byte, size int) ([]byte, error) {
	data := make([]byte, size)
	return data, d.I2cWriteRead(addr, []byte{registerAddr}, data)
}
