package board

import (
	"fmt"
	"math"
	"time"

	"github.com/antongulenko/kts1622/kts1622"
)

var DefaultChase = Chase{
	Circle:         true,
	Bounce:         false,
	NumPins:        kts1622.NUM_PINS,
	PeakRadius:     2,
	Threshold:      0.5,
	SleepTime:      50 * time.Millisecond,
	PeakTravelTime: 1600 * time.Millisecond,
}

// Chase moves a peak of active outputs along a row of pins
type Chase struct {
	Circle         bool
	Bounce         bool
	NumPins        int
	PeakRadius     int           // Number of pins around the peak with a nonzero intensity
	Threshold      float64       // Pins with an intensity above this are driven high
	SleepTime      time.Duration // Time resolution for output updates
	PeakTravelTime time.Duration // Time for the peak to travel all pins
}

func (s *Chase) Run(numRounds int, callback func(sleepTime time.Duration, levels []bool) error) error {
	stepsPerRound := float64(s.PeakTravelTime / s.SleepTime)
	timeStep := float64(s.NumPins) / stepsPerRound

	values := make([]float64, s.NumPins)
	levels := make([]bool, s.NumPins)
	numSteps := stepsPerRound * float64(numRounds)
	for i := float64(0); i < numSteps; i++ {
		x := i
		if s.Bounce {
			x = s.bounce(x, stepsPerRound)
		}
		s.setValues(timeStep, x, values)
		for pin, val := range values {
			levels[pin] = val > s.Threshold
		}
		if err := callback(s.SleepTime, levels); err != nil {
			return fmt.Errorf("Error during output sequence, step %v of %v: %v", i, numSteps, err)
		}
	}
	return nil
}

// Moves back and forth instead of wrapping around
func (s *Chase) bounce(x float64, stepsPerRound float64) float64 {
	max := 2 * stepsPerRound
	x = x - math.Floor(x/max)*max
	if x > max/2 {
		x = max - x
	}
	return x
}

func (s *Chase) setValues(timeStep float64, x float64, values []float64) {
	t := x * timeStep
	max := float64(len(values))
	mid := t - math.Floor(t/max)*max

	for i := range values {
		x := float64(i) - mid

		if s.Circle {
			// Distance wrapping around the 0 and max
			x2 := max - mid + float64(i)
			if x < 0 && x2 < math.Abs(x) {
				x = -x2
			}
			x3 := max - float64(i) + mid
			if x3 < x {
				x = -x3
			}
		}

		if math.Abs(x) > float64(s.PeakRadius) {
			values[i] = 0
		} else {
			v := math.Cos(x / float64(s.PeakRadius) * math.Pi)
			values[i] = (v + 1) / 2 // Map to 0..1
		}
	}
}

// PlayChase drives the given pins as outputs with the chase pattern
func (b *Board) PlayChase(seq Chase, numRounds int, pins []int) error {
	if len(pins) == 0 {
		for pin := 0; pin < kts1622.NUM_PINS; pin++ {
			pins = append(pins, pin)
		}
	}
	seq.NumPins = len(pins)
	for _, pin := range pins {
		if err := b.chip.DirectionOutput(pin, false); err != nil {
			return err
		}
	}
	current := make([]bool, len(pins))
	return seq.Run(numRounds, func(sleepTime time.Duration, levels []bool) error {
		for i, level := range levels {
			if level == current[i] {
				continue
			}
			if err := b.chip.Set(pins[i], level); err != nil {
				return err
			}
			current[i] = level
		}
		time.Sleep(sleepTime)
		return nil
	})
}
