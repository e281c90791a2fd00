package kts1622_test

import (
	"github.com/antongulenko/kts1622/kts1622"
	"github.com/antongulenko/kts1622/kts1622sim"
	"github.com/pkg/errors"
)

func (s *testSuite) TestSoftwareResetRestoresAddress() {
	s.NoError(s.chip.Init())
	s.Equal(kts1622sim.Transaction{Op: kts1622sim.OpReset, Addr: 0x00, Reg: 0x06}, s.sim.Transactions()[0])
	s.Equal(addr, s.chip.Addr())

	// A register read at the configured address still works
	s.sim.ClearTransactions()
	_, err := s.chip.Get(0)
	s.NoError(err)
	s.Equal(addr, s.sim.Transactions()[0].Addr)
}

func (s *testSuite) TestFailedSoftwareResetRestoresAddress() {
	s.sim.FailWhen = func(t kts1622sim.Transaction) bool {
		return t.Op == kts1622sim.OpReset
	}
	err := s.chip.Init()
	s.Error(err)
	var transportErr *kts1622.TransportError
	s.True(errors.As(err, &transportErr))
	s.Equal("reset", transportErr.Op)
	s.Equal(kts1622.GENERAL_CALL_ADDRESS, transportErr.Addr)
	s.Empty(s.sim.Transactions())

	s.sim.FailWhen = nil
	s.Equal(addr, s.chip.Addr())
	_, err = s.chip.Get(3)
	s.NoError(err)
}

func (s *testSuite) TestTransportErrorCause() {
	s.sim.FailWhen = func(t kts1622sim.Transaction) bool {
		return t.Op == kts1622sim.OpRead
	}
	_, err := s.chip.Get(9)
	s.Error(err)
	s.Equal(kts1622sim.ErrNoAck, errors.Cause(err))
	s.True(errors.Is(err, kts1622sim.ErrNoAck))
	s.Contains(err.Error(), "read of register")
}

func (s *testSuite) TestWrongAddress() {
	chip := kts1622.New(s.sim, addr+1)
	_, err := chip.Get(0)
	s.True(errors.Is(err, kts1622sim.ErrNoAck))
}
