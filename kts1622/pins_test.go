package kts1622_test

import (
	"github.com/antongulenko/kts1622/kts1622"
	"github.com/antongulenko/kts1622/kts1622sim"
	"github.com/pkg/errors"
)

func (s *testSuite) TestDirectionOutputAllPins() {
	for pin := 0; pin < kts1622.NUM_PINS; pin++ {
		s.NoError(s.chip.DirectionOutput(pin, true))
		dir, err := s.chip.Direction(pin)
		s.NoError(err)
		s.Equal(kts1622.Output, dir, "pin %v", pin)
		val, err := s.chip.OutputValue(pin)
		s.NoError(err)
		s.True(val, "pin %v", pin)
	}
	s.Equal(byte(0x00), s.sim.Register(kts1622.CONFIG_0))
	s.Equal(byte(0x00), s.sim.Register(kts1622.CONFIG_1))
}

func (s *testSuite) TestDirectionOutputWritesValueFirst() {
	s.NoError(s.chip.DirectionOutput(10, false))
	s.Equal([]kts1622sim.Transaction{
		kts1622sim.Write(addr, kts1622.OUTPUT_1, 0xFB),
		kts1622sim.Write(addr, kts1622.CONFIG_1, 0xFB),
	}, s.sim.Writes())
}

func (s *testSuite) TestDirectionInput() {
	s.NoError(s.chip.DirectionOutput(3, true))
	s.NoError(s.chip.SetDirection(3, kts1622.Input))
	dir, err := s.chip.Direction(3)
	s.NoError(err)
	s.Equal(kts1622.Input, dir)

	s.NoError(s.chip.DirectionOutput(12, true))
	s.NoError(s.chip.DirectionInput(12))
	dir, err = s.chip.Direction(12)
	s.NoError(err)
	s.Equal(kts1622.Input, dir)
}

func (s *testSuite) TestGetSet() {
	s.sim.SetLevel(1, true)
	s.sim.SetLevel(14, true)
	for pin := 0; pin < kts1622.NUM_PINS; pin++ {
		val, err := s.chip.Get(pin)
		s.NoError(err)
		s.Equal(pin == 1 || pin == 14, val, "pin %v", pin)
	}

	s.NoError(s.chip.DirectionOutput(8, true))
	s.NoError(s.chip.Set(8, false))
	val, err := s.chip.Get(8)
	s.NoError(err)
	s.False(val)
	s.Equal(byte(0xFE), s.sim.Register(kts1622.OUTPUT_1))
	s.Equal(byte(0xFF), s.sim.Register(kts1622.OUTPUT_0))
}

func (s *testSuite) TestSetPullUp() {
	s.NoError(s.chip.SetPull(5, kts1622.PullUp))
	s.Equal([]kts1622sim.Transaction{
		kts1622sim.Write(addr, kts1622.PULL_ENABLE_0, 0x00),
		kts1622sim.Write(addr, kts1622.PULL_SELECTION_0, 0xFF),
		kts1622sim.Write(addr, kts1622.PULL_ENABLE_0, 0x20),
	}, s.sim.Writes())
}

func (s *testSuite) TestSetPullDown() {
	s.NoError(s.chip.SetPull(9, kts1622.PullDown))
	s.Equal([]kts1622sim.Transaction{
		kts1622sim.Write(addr, kts1622.PULL_ENABLE_1, 0x00),
		kts1622sim.Write(addr, kts1622.PULL_SELECTION_1, 0xFD),
		kts1622sim.Write(addr, kts1622.PULL_ENABLE_1, 0x02),
	}, s.sim.Writes())
}

func (s *testSuite) TestSetPullDisabled() {
	s.NoError(s.chip.SetPull(9, kts1622.PullUp))
	s.sim.ClearTransactions()
	s.NoError(s.chip.SetPull(9, kts1622.PullDisabled))
	s.Equal([]kts1622sim.Transaction{
		kts1622sim.Write(addr, kts1622.PULL_ENABLE_1, 0x00),
	}, s.sim.Writes())
}

func (s *testSuite) TestSetPullFailureLeavesPullDisabled() {
	s.NoError(s.chip.SetPull(2, kts1622.PullDown))
	s.sim.FailWhen = func(t kts1622sim.Transaction) bool {
		return t.Op == kts1622sim.OpWrite && t.Reg == kts1622.PULL_SELECTION_0
	}
	s.Error(s.chip.SetPull(2, kts1622.PullUp))
	s.Equal(byte(0x00), s.sim.Register(kts1622.PULL_ENABLE_0))
	s.Equal(byte(0xFB), s.sim.Register(kts1622.PULL_SELECTION_0), "old selection is kept")
}

func (s *testSuite) TestSetDriveMode() {
	s.NoError(s.chip.SetDriveMode(7, kts1622.OpenDrain))
	s.Equal(byte(0x7F), s.sim.Register(kts1622.INDIVIDUAL_PIN_OUTPUT_0))
	s.NoError(s.chip.SetDriveMode(7, kts1622.PushPull))
	s.Equal(byte(0xFF), s.sim.Register(kts1622.INDIVIDUAL_PIN_OUTPUT_0))
	s.NoError(s.chip.SetDriveMode(15, kts1622.OpenDrain))
	s.Equal(byte(0x7F), s.sim.Register(kts1622.INDIVIDUAL_PIN_OUTPUT_1))
}

func (s *testSuite) TestSetDriveStrength() {
	s.NoError(s.chip.SetDriveStrength(6, kts1622.DriveHalf))
	s.Equal(byte(0xDF), s.sim.Register(kts1622.DRIVE_STRENGTH_0B))
	s.NoError(s.chip.SetDriveStrength(12, kts1622.DriveQuarter))
	s.Equal(byte(0xFC), s.sim.Register(kts1622.DRIVE_STRENGTH_1B))
	s.Equal(byte(0xFF), s.sim.Register(kts1622.DRIVE_STRENGTH_0A))
	s.Equal(byte(0xFF), s.sim.Register(kts1622.DRIVE_STRENGTH_1A))
}

func (s *testSuite) TestPassThroughBits() {
	s.NoError(s.chip.SetPolarityInversion(0, true))
	s.Equal(byte(0x01), s.sim.Register(kts1622.POLARITY_INVERSION_0))
	val, err := s.chip.Get(0)
	s.NoError(err)
	s.True(val, "inverted low input")

	s.NoError(s.chip.SetInputLatch(11, true))
	s.Equal(byte(0x08), s.sim.Register(kts1622.INPUT_LATCH_1))

	s.NoError(s.chip.SetDebounce(1, true))
	s.Equal(byte(0x02), s.sim.Register(kts1622.SWITCH_DEBOUNCE_ENABLE))
	s.True(errors.Is(s.chip.SetDebounce(2, true), kts1622.ErrInvalidArgument))

	s.sim.SetLevel(13, true)
	status, err := s.chip.LatchedStatus(1)
	s.NoError(err)
	s.Equal(byte(0x20), status)
}

func (s *testSuite) TestInvalidPin() {
	for _, pin := range []int{-1, 16, 100} {
		_, err := s.chip.Get(pin)
		s.True(errors.Is(err, kts1622.ErrInvalidPin), "Get(%v)", pin)
		s.True(errors.Is(s.chip.Set(pin, true), kts1622.ErrInvalidPin))
		s.True(errors.Is(s.chip.DirectionOutput(pin, true), kts1622.ErrInvalidPin))
		s.True(errors.Is(s.chip.DirectionInput(pin), kts1622.ErrInvalidPin))
		_, err = s.chip.Direction(pin)
		s.True(errors.Is(err, kts1622.ErrInvalidPin))
		s.True(errors.Is(s.chip.SetPull(pin, kts1622.PullUp), kts1622.ErrInvalidPin))
		s.True(errors.Is(s.chip.SetPull(pin, kts1622.Pull(42)), kts1622.ErrInvalidPin))
		s.True(errors.Is(s.chip.SetDriveMode(pin, kts1622.OpenDrain), kts1622.ErrInvalidPin))
		s.True(errors.Is(s.chip.SetDriveStrength(pin, kts1622.DriveFull), kts1622.ErrInvalidPin))
	}
	s.Empty(s.sim.Transactions(), "no bus access for invalid pins")
}

func (s *testSuite) TestUnsupportedConfig() {
	s.True(errors.Is(s.chip.SetDirection(1, kts1622.Direction(2)), kts1622.ErrUnsupported))
	s.True(errors.Is(s.chip.SetPull(1, kts1622.Pull(3)), kts1622.ErrUnsupported))
	s.True(errors.Is(s.chip.SetDriveMode(1, kts1622.DriveMode(-1)), kts1622.ErrUnsupported))
	s.True(errors.Is(s.chip.SetDriveStrength(1, kts1622.DriveStrength(4)), kts1622.ErrUnsupported))
	s.Empty(s.sim.Transactions())
}
