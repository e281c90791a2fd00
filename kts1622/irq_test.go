package kts1622_test

import (
	"context"
	"sync"
	"time"

	"github.com/antongulenko/kts1622/kts1622"
	"github.com/antongulenko/kts1622/kts1622sim"
	"github.com/pkg/errors"
)

func (s *testSuite) commitWrites(mask0, mask1 byte, edge [4]byte) []kts1622sim.Transaction {
	return []kts1622sim.Transaction{
		kts1622sim.Write(addr, kts1622.INTERRUPT_MASK_0, mask0),
		kts1622sim.Write(addr, kts1622.INTERRUPT_EDGE_0A, edge[0]),
		kts1622sim.Write(addr, kts1622.INTERRUPT_EDGE_0B, edge[1]),
		kts1622sim.Write(addr, kts1622.INTERRUPT_MASK_1, mask1),
		kts1622sim.Write(addr, kts1622.INTERRUPT_EDGE_1A, edge[2]),
		kts1622sim.Write(addr, kts1622.INTERRUPT_EDGE_1B, edge[3]),
	}
}

func (s *testSuite) TestCacheHasNoBusAccess() {
	s.chip.BeginBatch()
	s.NoError(s.chip.Unmask(3))
	s.NoError(s.chip.SetEdgeType(3, kts1622.EdgeRising))
	s.NoError(s.chip.Mask(12))
	s.NoError(s.chip.Shutdown(12))
	s.Empty(s.sim.Transactions())
	s.NoError(s.chip.Commit())
	s.Len(s.sim.Transactions(), 6)
}

func (s *testSuite) TestSetEdgeTypeKeepsOtherPins() {
	s.chip.BeginBatch()
	s.NoError(s.chip.SetEdgeType(5, kts1622.EdgeRising))
	s.NoError(s.chip.SetEdgeType(6, kts1622.EdgeFalling))
	s.NoError(s.chip.SetEdgeType(7, kts1622.EdgeBoth))
	s.NoError(s.chip.Commit())
	_, edge := s.chip.CachedIrqConfig()
	s.Equal(byte(0xE4), edge[1])

	s.chip.BeginBatch()
	s.NoError(s.chip.SetEdgeType(4, kts1622.EdgeBoth))
	s.NoError(s.chip.Commit())
	_, edge = s.chip.CachedIrqConfig()
	s.Equal([4]byte{0, 0xE7, 0, 0}, edge)
	s.Equal(byte(0xE7), s.sim.Register(kts1622.INTERRUPT_EDGE_0B))

	s.chip.BeginBatch()
	s.NoError(s.chip.Shutdown(6))
	s.NoError(s.chip.Commit())
	_, edge = s.chip.CachedIrqConfig()
	s.Equal(byte(0xC7), edge[1])
}

func (s *testSuite) TestEdgeRegisterLayout() {
	s.chip.BeginBatch()
	s.NoError(s.chip.SetEdgeType(0, kts1622.EdgeRising))
	s.NoError(s.chip.SetEdgeType(3, kts1622.EdgeFalling))
	s.NoError(s.chip.SetEdgeType(8, kts1622.EdgeBoth))
	s.NoError(s.chip.SetEdgeType(15, kts1622.EdgeRising))
	s.NoError(s.chip.Commit())
	s.Equal(s.commitWrites(0xFF, 0xFF, [4]byte{0x81, 0x00, 0x03, 0x40}), s.sim.Writes())
}

func (s *testSuite) TestLevelTriggersDisableEdgeDetection() {
	s.chip.BeginBatch()
	s.NoError(s.chip.SetEdgeType(1, kts1622.EdgeBoth))
	s.NoError(s.chip.SetEdgeType(2, kts1622.EdgeBoth))
	s.NoError(s.chip.SetEdgeType(1, kts1622.LevelLow))
	s.NoError(s.chip.SetEdgeType(2, kts1622.LevelHigh))
	s.NoError(s.chip.Commit())
	_, edge := s.chip.CachedIrqConfig()
	s.Equal(byte(0x00), edge[0])
}

func (s *testSuite) TestInvalidEdgeType() {
	s.chip.BeginBatch()
	s.True(errors.Is(s.chip.SetEdgeType(1, kts1622.EdgeNone), kts1622.ErrInvalidArgument))
	s.True(errors.Is(s.chip.SetEdgeType(1, kts1622.EdgeType(17)), kts1622.ErrInvalidArgument))
	s.True(errors.Is(s.chip.SetEdgeType(16, kts1622.EdgeRising), kts1622.ErrInvalidPin))
	s.True(errors.Is(s.chip.Mask(-1), kts1622.ErrInvalidPin))
	s.True(errors.Is(s.chip.Unmask(16), kts1622.ErrInvalidPin))
	s.True(errors.Is(s.chip.Shutdown(16), kts1622.ErrInvalidPin))
	s.NoError(s.chip.Commit())
	mask, edge := s.chip.CachedIrqConfig()
	s.Equal([2]byte{0xFF, 0xFF}, mask)
	s.Equal([4]byte{}, edge)
}

func (s *testSuite) TestFinalCachedStateWins() {
	s.chip.BeginBatch()
	s.NoError(s.chip.Mask(3))
	s.NoError(s.chip.Unmask(3))
	s.NoError(s.chip.Commit())
	s.Equal(s.commitWrites(0xF7, 0xFF, [4]byte{}), s.sim.Writes())
	s.Equal(byte(0xF7), s.sim.Register(kts1622.INTERRUPT_MASK_0))
}

func (s *testSuite) TestFailedCommitIsRepeated() {
	s.chip.BeginBatch()
	s.NoError(s.chip.Unmask(9))
	s.NoError(s.chip.SetEdgeType(9, kts1622.EdgeFalling))
	s.sim.FailWhen = func(t kts1622sim.Transaction) bool {
		return t.Reg == kts1622.INTERRUPT_EDGE_0B
	}
	s.Error(s.chip.Commit())
	s.Len(s.sim.Writes(), 2)
	mask, edge := s.chip.CachedIrqConfig()
	s.Equal([2]byte{0xFF, 0xFD}, mask)
	s.Equal([4]byte{0, 0, 0x08, 0}, edge)

	s.sim.FailWhen = nil
	s.sim.ClearTransactions()
	s.chip.BeginBatch()
	s.NoError(s.chip.Commit())
	s.Equal(s.commitWrites(0xFF, 0xFD, [4]byte{0, 0, 0x08, 0}), s.sim.Writes())
}

type handledLines struct {
	lock  sync.Mutex
	lines []kts1622.VirtualLine
	pins  []int
}

func (h *handledLines) handle(line kts1622.VirtualLine, pin int) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.lines = append(h.lines, line)
	h.pins = append(h.pins, pin)
}

func (s *testSuite) setupDomain(pins ...int) (*kts1622.IrqDomain, *handledLines) {
	var handled handledLines
	domain := kts1622.NewIrqDomain(100)
	for _, pin := range pins {
		_, err := domain.Map(pin, handled.handle)
		s.NoError(err)
	}
	s.NoError(s.chip.SetupIrq(domain))
	s.sim.ClearTransactions()
	return domain, &handled
}

func (s *testSuite) TestSetupIrqLoadsCache() {
	s.sim.SetRegister(kts1622.INTERRUPT_MASK_1, 0x7F)
	s.sim.SetRegister(kts1622.INTERRUPT_EDGE_1B, 0xC0)
	s.False(s.chip.IrqEnabled())
	s.setupDomain()
	s.True(s.chip.IrqEnabled())
	mask, edge := s.chip.CachedIrqConfig()
	s.Equal([2]byte{0xFF, 0x7F}, mask)
	s.Equal([4]byte{0, 0, 0, 0xC0}, edge)
}

func (s *testSuite) TestDispatch() {
	_, handled := s.setupDomain(0, 2, 9)
	s.sim.RaiseStatus(0, 0x05)

	res, err := s.chip.Dispatch()
	s.NoError(err)
	s.Equal(kts1622.Handled, res)
	s.Equal([]kts1622sim.Transaction{
		kts1622sim.Write(addr, kts1622.INTERRUPT_CLEAR_0, 0x05),
	}, s.sim.Writes())
	s.Equal([]int{0, 2}, handled.pins)
	s.Equal([]kts1622.VirtualLine{100, 102}, handled.lines)
	s.Equal(byte(0), s.sim.Register(kts1622.INTERRUPT_STATUS_0))
}

func (s *testSuite) TestDispatchBothPorts() {
	_, handled := s.setupDomain(7, 8, 15)
	s.sim.RaiseStatus(0, 0x80)
	s.sim.RaiseStatus(1, 0x81)

	res, err := s.chip.Dispatch()
	s.NoError(err)
	s.Equal(kts1622.Handled, res)
	s.Equal([]kts1622sim.Transaction{
		kts1622sim.Write(addr, kts1622.INTERRUPT_CLEAR_0, 0x80),
		kts1622sim.Write(addr, kts1622.INTERRUPT_CLEAR_1, 0x81),
	}, s.sim.Writes())
	s.Equal([]int{7, 8, 15}, handled.pins)
}

func (s *testSuite) TestDispatchUnmappedPin() {
	_, handled := s.setupDomain(0)
	s.sim.RaiseStatus(1, 0x10)
	res, err := s.chip.Dispatch()
	s.NoError(err)
	s.Equal(kts1622.Handled, res)
	s.Empty(handled.pins)
	s.Equal(byte(0), s.sim.Register(kts1622.INTERRUPT_STATUS_1))
}

func (s *testSuite) TestStrayInterrupt() {
	_, handled := s.setupDomain(0, 1)
	res, err := s.chip.Dispatch()
	s.NoError(err)
	s.Equal(kts1622.NotHandled, res)
	s.Empty(s.sim.Writes())
	s.Len(s.sim.Transactions(), 2)
	s.Empty(handled.pins)
}

func (s *testSuite) TestDispatchReadFailure() {
	_, handled := s.setupDomain(0)
	s.sim.RaiseStatus(0, 0x01)
	s.sim.FailWhen = func(t kts1622sim.Transaction) bool {
		return t.Reg == kts1622.INTERRUPT_STATUS_1
	}
	res, err := s.chip.Dispatch()
	s.Error(err)
	s.Equal(kts1622.NotHandled, res)
	s.Empty(s.sim.Writes())
	s.Empty(handled.pins)
	s.Equal(byte(0x01), s.sim.Register(kts1622.INTERRUPT_STATUS_0), "status stays pending")
}

func (s *testSuite) TestDispatchClearFailure() {
	_, handled := s.setupDomain(1, 9)
	s.sim.RaiseStatus(0, 0x02)
	s.sim.RaiseStatus(1, 0x02)
	s.sim.FailWhen = func(t kts1622sim.Transaction) bool {
		return t.Reg == kts1622.INTERRUPT_CLEAR_0
	}
	res, err := s.chip.Dispatch()
	s.Error(err)
	s.Equal(kts1622.Handled, res)
	s.Equal([]int{1, 9}, handled.pins)
	s.Equal(byte(0), s.sim.Register(kts1622.INTERRUPT_STATUS_1), "port 1 is still cleared")
}

func (s *testSuite) TestDispatchWithoutDomain() {
	s.sim.RaiseStatus(0, 0x02)
	res, err := s.chip.Dispatch()
	s.NoError(err)
	s.Equal(kts1622.Handled, res)
}

func (s *testSuite) TestRequestAndFreeIrq() {
	s.setupDomain()
	var handled handledLines
	line, err := s.chip.RequestIrq(10, kts1622.EdgeFalling, handled.handle)
	s.NoError(err)
	s.Equal(kts1622.VirtualLine(110), line)
	s.Equal(s.commitWrites(0xFF, 0xFB, [4]byte{0, 0, 0x20, 0}), s.sim.Writes())

	s.sim.SetLevel(10, true)
	s.sim.SetLevel(10, false)
	res, err := s.chip.Dispatch()
	s.NoError(err)
	s.Equal(kts1622.Handled, res)
	s.Equal([]int{10}, handled.pins)

	s.sim.ClearTransactions()
	s.NoError(s.chip.FreeIrq(10))
	s.Equal(s.commitWrites(0xFF, 0xFF, [4]byte{}), s.sim.Writes())
	s.sim.SetLevel(10, true)
	s.sim.SetLevel(10, false)
	res, err = s.chip.Dispatch()
	s.NoError(err)
	s.Equal(kts1622.NotHandled, res)
}

func (s *testSuite) TestRequestIrqErrors() {
	_, err := s.chip.RequestIrq(1, kts1622.EdgeRising, nil)
	s.True(errors.Is(err, kts1622.ErrUnsupported), "interrupts not set up")
	s.True(errors.Is(s.chip.FreeIrq(1), kts1622.ErrUnsupported))

	domain, _ := s.setupDomain()
	_, err = s.chip.RequestIrq(1, kts1622.EdgeType(9), nil)
	s.True(errors.Is(err, kts1622.ErrInvalidArgument))
	_, _, ok := domain.Lookup(1)
	s.False(ok)
	_, err = s.chip.RequestIrq(16, kts1622.EdgeRising, nil)
	s.True(errors.Is(err, kts1622.ErrInvalidPin))
	s.Empty(s.sim.Transactions())

	// The batch must have been released
	s.chip.BeginBatch()
	s.NoError(s.chip.Commit())
}

func (s *testSuite) TestFailedRequestIrqIsRolledBack() {
	domain, _ := s.setupDomain()
	var handled handledLines
	s.sim.FailWhen = func(t kts1622sim.Transaction) bool {
		return t.Reg == kts1622.INTERRUPT_MASK_0
	}
	_, err := s.chip.RequestIrq(3, kts1622.EdgeRising, handled.handle)
	s.Error(err)
	_, _, ok := domain.Lookup(3)
	s.False(ok)
	mask, edge := s.chip.CachedIrqConfig()
	s.Equal([2]byte{0xFF, 0xFF}, mask)
	s.Equal([4]byte{}, edge)

	// An unrelated batch must not enable the pin
	s.sim.FailWhen = nil
	s.chip.BeginBatch()
	s.NoError(s.chip.Commit())
	s.Equal(byte(0xFF), s.sim.Register(kts1622.INTERRUPT_MASK_0))
	s.sim.SetLevel(3, true)
	res, err := s.chip.Dispatch()
	s.NoError(err)
	s.Equal(kts1622.NotHandled, res)
	s.Empty(handled.pins)
}

func (s *testSuite) TestServeIrq() {
	s.setupDomain()
	events := make(chan int, 10)
	_, err := s.chip.RequestIrq(4, kts1622.EdgeBoth, func(line kts1622.VirtualLine, pin int) {
		events <- pin
	})
	s.NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- s.chip.ServeIrq(ctx, s.sim, 5*time.Millisecond)
	}()

	expectEvent := func() {
		select {
		case pin := <-events:
			s.Equal(4, pin)
		case <-time.After(2 * time.Second):
			s.FailNow("no interrupt delivered")
		}
	}
	s.sim.SetLevel(4, true)
	expectEvent()
	s.sim.SetLevel(5, true) // Masked
	s.sim.SetLevel(4, false)
	expectEvent()

	cancel()
	select {
	case err := <-done:
		s.Equal(context.Canceled, err)
	case <-time.After(2 * time.Second):
		s.FailNow("ServeIrq did not return")
	}
	s.Empty(events)
}

func (s *testSuite) TestServeIrqRequiresSetup() {
	err := s.chip.ServeIrq(context.Background(), s.sim, time.Millisecond)
	s.True(errors.Is(err, kts1622.ErrUnsupported))
}

func (s *testSuite) TestConcurrentAccess() {
	s.setupDomain()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		pin := i
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				s.NoError(s.chip.DirectionOutput(pin, j%2 == 0))
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				s.chip.BeginBatch()
				s.NoError(s.chip.Unmask(pin + 8))
				s.NoError(s.chip.Commit())
				_, err := s.chip.Dispatch()
				s.NoError(err)
			}
		}()
	}
	wg.Wait()
	s.Equal(byte(0xF0), s.sim.Register(kts1622.CONFIG_0))
	s.Equal(byte(0xF0), s.sim.Register(kts1622.OUTPUT_0))
	s.Equal(byte(0xF0), s.sim.Register(kts1622.INTERRUPT_MASK_1))
}
