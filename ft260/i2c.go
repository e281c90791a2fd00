package ft260

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	ReportID_I2CStatus    = 0xC0 // Feature In
	ReportID_I2CRead      = 0xC2 // Output
	ReportID_I2CInOut     = 0xD0 // 0xD0 - 0xDE, Input, Output
	ReportID_I2CInOut_Max = 0xDE
	// Max size of I2C write payload: (1 + Report ID - 0xD0) * 4 byte

	I2CMaxPayload = (1 + ReportID_I2CInOut_Max - ReportID_I2CInOut) * 4
)

const (
	I2C_StatusControllerBusy = byte(1 << iota)
	I2C_StatusError
	I2C_StatusNoSlaveAck
	I2C_StatusNoDataAck
	I2C_StatusArbitrationLost
	I2C_StatusControllerIdle
	I2C_StatusBusBusy
)

const (
	I2C_MasterNone         = 0x0
	I2C_MasterStart        = 0x2
	I2C_MasterRepStart     = 0x3
	I2C_MasterStop         = 0x4
	I2C_MasterStartStop    = 0x6
	I2C_MasterRepStartStop = 0x7
)

var (
	I2cTimeout      = 200 * time.Millisecond
	I2cPollInterval = 500 * time.Microsecond

	ErrNoSlaveAck = errors.New("no acknowledge from I2C slave")
)

func I2cMasterCodeString(code byte) string {
	switch code {
	case I2C_MasterNone:
		return "Nothing"
	case I2C_MasterStart:
		return "Start"
	case I2C_MasterRepStart:
		return "Repeated Start"
	case I2C_MasterStop:
		return "Stop"
	case I2C_MasterStartStop:
		return "Start + Stop"
	case I2C_MasterRepStartStop:
		return "Repeated Start + Stop"
	default:
		return fmt.Sprintf("Unknown I2C Master code %v", code)
	}
}

// Result of ReportID_I2CStatus Feature In
type ReportI2cStatus struct {
	BusStatus byte   // Bitmask of I2C_Status...
	BusSpeed  uint16 // 2 byte: LSB+MSB
	// 1 reserved
}

func (r *ReportI2cStatus) ReportID() byte {
	return ReportID_I2CStatus
}

func (r *ReportI2cStatus) ReportLen() int {
	return 4
}

func (r *ReportI2cStatus) Unmarshall(b []byte) error {
	r.BusStatus = b[0]
	r.BusSpeed = uint16(b[1]) + uint16(b[2])<<8
	return nil
}

func (r *ReportI2cStatus) Busy() bool {
	return r.BusStatus&I2C_StatusControllerBusy != 0
}

// Err returns the error flagged by the controller after the last transaction
func (r *ReportI2cStatus) Err() error {
	if r.BusStatus&I2C_StatusError == 0 {
		return nil
	}
	switch {
	case r.BusStatus&I2C_StatusNoSlaveAck != 0:
		return ErrNoSlaveAck
	case r.BusStatus&I2C_StatusNoDataAck != 0:
		return errors.New("no acknowledge for I2C data")
	case r.BusStatus&I2C_StatusArbitrationLost != 0:
		return errors.New("I2C arbitration lost")
	default:
		return fmt.Errorf("I2C controller error (status %08b)", r.BusStatus)
	}
}

// Data of ReportID_I2CRead Interrupt Out
type OperationI2cRead struct {
	SlaveAddr byte   // 0..127
	Condition byte   // I2C_Master...
	Len       uint16 // data length (little endian)
}

func (r *OperationI2cRead) ReportID() byte {
	return ReportID_I2CRead
}

func (r *OperationI2cRead) ReportLen() int {
	return 4
}

func (r *OperationI2cRead) Marshall(b []byte) error {
	if r.SlaveAddr&0x80 != 0 {
		return fmt.Errorf("Invalid I2C slave address: %02x", r.SlaveAddr)
	}
	b[0] = r.SlaveAddr
	b[1] = r.Condition
	b[2], b[3] = byte(r.Len), byte(r.Len>>8)
	return nil
}

// Data of ReportID_I2CInOut Interrupt Out
type OperationI2cWrite struct {
	SlaveAddr byte // 0..127
	Condition byte // I2C_Master...
	// 1 byte payload len
	Payload []byte
}

func (r *OperationI2cWrite) ReportID() byte {
	if len(r.Payload) == 0 {
		return ReportID_I2CInOut
	}
	return ReportID_I2CInOut + byte((len(r.Payload)-1)/4)
}

func (r *OperationI2cWrite) ReportLen() int {
	return len(r.Payload) + 3
}

func (r *OperationI2cWrite) Marshall(b []byte) error {
	if len(r.Payload) > I2CMaxPayload {
		return fmt.Errorf("Payload len %v exceeds maximum size of %v", len(r.Payload), I2CMaxPayload)
	}
	if r.SlaveAddr&0x80 != 0 {
		return fmt.Errorf("Invalid I2C slave address: %02x", r.SlaveAddr)
	}
	b[0] = r.SlaveAddr
	b[1] = r.Condition
	b[2] = byte(len(r.Payload))
	copy(b[3:], r.Payload)
	return nil
}

// Data of ReportID_I2CInOut Interrupt In
type OperationI2cInput struct {
	// 1 byte payload length
	Data []byte
}

func (r *OperationI2cInput) IsVariableSize() bool {
	return true
}

func (r *OperationI2cInput) ValidReportID(id byte) bool {
	return id >= ReportID_I2CInOut && id <= ReportID_I2CInOut_Max
}

func (r *OperationI2cInput) ReportID() byte {
	return ReportID_I2CInOut
}

func (r *OperationI2cInput) ReportLen() int {
	return I2CMaxPayload + 1
}

func (r *OperationI2cInput) Unmarshall(d []byte) error {
	l := int(d[0])
	if len(d) < l+1 {
		return fmt.Errorf("Short I2C read (%v, needed at least %v)", len(d), l+1)
	}
	r.Data = append(r.Data[:0], d[1:1+l]...)
	return nil
}

// i2cSplitTransaction splits data into chunks fitting into one write report, and returns the
// master condition for each chunk. Without stop, the bus is kept for a following repeated start.
func i2cSplitTransaction(stop bool, data []byte) ([][]byte, []byte) {
	if len(data) == 0 {
		return nil, nil
	}
	var payloads [][]byte
	var conditions []byte
	for start := 0; start < len(data); start += I2CMaxPayload {
		end := start + I2CMaxPayload
		if end > len(data) {
			end = len(data)
		}
		payloads = append(payloads, data[start:end])
		conditions = append(conditions, I2C_MasterNone)
	}
	last := len(conditions) - 1
	if last == 0 {
		if stop {
			conditions[0] = I2C_MasterStartStop
		} else {
			conditions[0] = I2C_MasterStart
		}
	} else {
		conditions[0] = I2C_MasterStart
		if stop {
			conditions[last] = I2C_MasterStop
		}
	}
	return payloads, conditions
}

func (f *Ft260) I2cWrite(addr byte, data ...byte) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.i2cWrite(addr, true, data)
}

func (f *Ft260) I2cRead(addr byte, data []byte) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.i2cRead(addr, I2C_MasterStartStop, data)
}

func (f *Ft260) I2cWriteRead(addr byte, out, in []byte) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if len(out) == 0 {
		return f.i2cRead(addr, I2C_MasterStartStop, in)
	}
	if err := f.i2cWrite(addr, false, out); err != nil {
		return err
	}
	return f.i2cRead(addr, I2C_MasterRepStartStop, in)
}

func (f *Ft260) I2cGet(addr byte, registerAddr byte, size int) ([]byte, error) {
	data := make([]byte, size)
	return data, f.I2cWriteRead(addr, []byte{registerAddr}, data)
}

// Caller holds the lock
func (f *Ft260) i2cWrite(addr byte, stop bool, data []byte) error {
	payloads, conditions := i2cSplitTransaction(stop, data)
	for i, payload := range payloads {
		log.Debugf("FT260 I2C write to %#02x (%v): %#02v", addr, I2cMasterCodeString(conditions[i]), payload)
		err := f.write(&OperationI2cWrite{
			SlaveAddr: addr,
			Condition: conditions[i],
			Payload:   payload,
		})
		if err == nil {
			err = f.waitI2cDone()
		}
		if err != nil {
			return errors.Wrapf(err, "I2C write to %#02x failed", addr)
		}
	}
	return nil
}

// Caller holds the lock
func (f *Ft260) i2cRead(addr byte, condition byte, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	log.Debugf("FT260 I2C read of %v byte(s) from %#02x (%v)", len(data), addr, I2cMasterCodeString(condition))
	err := f.write(&OperationI2cRead{
		SlaveAddr: addr,
		Condition: condition,
		Len:       uint16(len(data)),
	})
	deadline := time.Now().Add(I2cTimeout)
	for received := 0; err == nil && received < len(data); {
		var input OperationI2cInput
		if err = f.read(&input); err != nil {
			break
		}
		received += copy(data[received:], input.Data)
		if len(input.Data) == 0 && time.Now().After(deadline) {
			err = fmt.Errorf("received %v of %v byte(s) within %v", received, len(data), I2cTimeout)
		}
	}
	if err == nil {
		err = f.waitI2cDone()
	}
	return errors.Wrapf(err, "I2C read from %#02x failed", addr)
}

// Caller holds the lock
func (f *Ft260) waitI2cDone() error {
	deadline := time.Now().Add(I2cTimeout)
	for {
		var status ReportI2cStatus
		if err := f.read(&status); err != nil {
			return err
		}
		if !status.Busy() {
			return status.Err()
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("I2C controller still busy after %v (status %08b)", I2cTimeout, status.BusStatus)
		}
		time.Sleep(I2cPollInterval)
	}
}
