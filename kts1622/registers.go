package kts1622

// Register addresses. Every function has one register per port (port 1 = port 0 + 1),
// except DRIVE_STRENGTH and INTERRUPT_EDGE, which have two registers per port (2 bit per pin).
// All accesses are single byte, there is no auto increment.
const (
	INPUT_0              = byte(0x00) // (read only) pin levels
	INPUT_1              = byte(0x01)
	OUTPUT_0             = byte(0x02) // Output latches. Default: 0xFF
	OUTPUT_1             = byte(0x03)
	POLARITY_INVERSION_0 = byte(0x04) // 1: INPUT reflects the inverted pin level
	POLARITY_INVERSION_1 = byte(0x05)
	CONFIG_0             = byte(0x06) // 0: output, 1: input (default)
	CONFIG_1             = byte(0x07)

	DRIVE_STRENGTH_0A          = byte(0x40) // Pins 0-3, 2 bit each. Default: 0xFF (full strength)
	DRIVE_STRENGTH_0B          = byte(0x41) // Pins 4-7
	DRIVE_STRENGTH_1A          = byte(0x42) // Pins 8-11
	DRIVE_STRENGTH_1B          = byte(0x43) // Pins 12-15
	INPUT_LATCH_0              = byte(0x44) // 1: interrupt status is latched until INPUT is read
	INPUT_LATCH_1              = byte(0x45)
	PULL_ENABLE_0              = byte(0x46) // 1: pull-up/pull-down resistor enabled
	PULL_ENABLE_1              = byte(0x47)
	PULL_SELECTION_0           = byte(0x48) // 1: pull-up, 0: pull-down
	PULL_SELECTION_1           = byte(0x49)
	INTERRUPT_MASK_0           = byte(0x4A) // 1: interrupt masked (default)
	INTERRUPT_MASK_1           = byte(0x4B)
	INTERRUPT_STATUS_0         = byte(0x4C) // (read only) 1: pin caused the interrupt
	INTERRUPT_STATUS_1         = byte(0x4D)
	OUTPUT_PORT_CONFIG         = byte(0x4F) // Shared by both ports
	INTERRUPT_EDGE_0A          = byte(0x50) // Pins 0-3, 2 bit each: EDGE_...
	INTERRUPT_EDGE_0B          = byte(0x51) // Pins 4-7
	INTERRUPT_EDGE_1A          = byte(0x52) // Pins 8-11
	INTERRUPT_EDGE_1B          = byte(0x53) // Pins 12-15
	INTERRUPT_CLEAR_0          = byte(0x54) // (write only) 1: clear the status bit
	INTERRUPT_CLEAR_1          = byte(0x55)
	INPUT_STATUS_0             = byte(0x56) // (read only) latched input levels
	INPUT_STATUS_1             = byte(0x57)
	INDIVIDUAL_PIN_OUTPUT_0    = byte(0x58) // 0: open-drain, 1: push-pull
	INDIVIDUAL_PIN_OUTPUT_1    = byte(0x59)
	SWITCH_DEBOUNCE_ENABLE     = byte(0x5A) // Shared, bit n enables debouncing for port n
	LAST_REGISTER              = SWITCH_DEBOUNCE_ENABLE
	FIRST_EXTENDED_REGISTER    = DRIVE_STRENGTH_0A
	LAST_STANDARD_REGISTER     = CONFIG_1
	RESERVED_REGISTER          = byte(0x4E)
	OUTPUT_PORT_CONFIG_DEFAULT = byte(0x03) // Written at init, enables INDIVIDUAL_PIN_OUTPUT for both ports
)

// 2 bit values of the INTERRUPT_EDGE registers
const (
	EDGE_NONE    = byte(0x00)
	EDGE_RISING  = byte(0x01)
	EDGE_FALLING = byte(0x02)
	EDGE_BOTH    = byte(0x03)
)

const (
	// 7 bit slave addresses selected by the ADDR pin
	ADDRESS     = byte(0x20) // 0010 0000
	MAX_ADDRESS = byte(0x23) // 0010 0011

	// Writing SOFTWARE_RESET to GENERAL_CALL_ADDRESS resets all devices on the bus
	GENERAL_CALL_ADDRESS = byte(0x00)
	SOFTWARE_RESET       = byte(0x06)

	NUM_PINS          = 16
	NUM_PORTS         = 2
	NUM_PINS_PER_PORT = 8
	PINS_PER_2BIT_REG = 4
)

// Register of the given port for functions with one register per port
func portRegister(port0Reg byte, port int) byte {
	return port0Reg + byte(port)
}

// Register and bit shift of a pin for functions with 2 bit per pin (edge, drive strength)
func twoBitRegister(firstReg byte, pin int) (reg byte, shift uint) {
	return firstReg + byte(pin/PINS_PER_2BIT_REG), uint(pin%PINS_PER_2BIT_REG) * 2
}
