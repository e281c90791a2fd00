package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/antongulenko/golib"
	"github.com/antongulenko/kts1622/board"
	"github.com/antongulenko/kts1622/i2cbus"
	"github.com/antongulenko/kts1622/kts1622"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type commandFunc func(args []string) error

var (
	b           = board.DefaultBoard
	sleepTime   = 400 * time.Millisecond
	benchTime   = 3 * time.Second
	chaseRounds = 3
	command     = "scan"
	commands    = map[string]commandFunc{
		"none":     func([]string) error { return nil },
		"scan":     scan,
		"dump":     dump,
		"get":      getPin,
		"set":      setPin,
		"in":       inputPin,
		"out":      outputPin,
		"pull":     pullPin,
		"drive":    drivePin,
		"strength": strengthPin,
		"inputs":   pollInputs,
		"outputs":  toggleOutputs,
		"chase":    chase,
		"watch":    watch,
		"bench":    bench,
	}
)

func main() {
	b.RegisterFlags()
	flag.DurationVar(&sleepTime, "sleep", sleepTime, "Sleep time between updates (inputs, outputs commands)")
	flag.DurationVar(&benchTime, "benchTime", benchTime, "Benchmark time (bench command)")
	flag.IntVar(&chaseRounds, "rounds", chaseRounds, "Number of rounds (chase command)")
	flag.StringVar(&command, "c", command, fmt.Sprintf("Command to execute, one of: %v", commandNames()))
	golib.RegisterFlags(golib.FlagsAll)
	flag.Parse()
	golib.ConfigureLogging()
	golib.Checkerr(doMain())
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func doMain() error {
	commandFunc, ok := commands[command]
	if !ok {
		return fmt.Errorf("Unknown command %v, available commands: %v", command, commandNames())
	}
	setup := b.Setup
	if command == "scan" {
		setup = b.SetupBus
	}
	if err := setup(); err != nil {
		return err
	}
	defer b.Cleanup()
	return commandFunc(flag.Args())
}

// Cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-c:
			log.Println("Received signal", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(c)
	}()
	return ctx, cancel
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func needArgs(args []string, usage ...string) error {
	if len(args) < len(usage) {
		return fmt.Errorf("Command %v needs %v argument(s): %v", command, len(usage), usage)
	}
	return nil
}

func parseLevel(str string) (bool, error) {
	switch str {
	case "high", "on":
		return true, nil
	case "low", "off":
		return false, nil
	}
	level, err := strconv.ParseBool(str)
	return level, errors.Wrapf(err, "invalid level '%v'", str)
}

func scan([]string) error {
	slaves, err := i2cbus.Scan(b.Bus())
	if err != nil {
		return err
	}
	log.Printf("Scanned slaves: %#02v", slaves)
	for _, addr := range slaves {
		if addr >= kts1622.ADDRESS && addr <= kts1622.MAX_ADDRESS {
			log.Printf("Possible KTS1622 at %#02x", addr)
		}
	}
	return nil
}

func dump([]string) error {
	return b.Chip().DumpRegisters(os.Stdout)
}

func getPin(args []string) error {
	if err := needArgs(args, "pin"); err != nil {
		return err
	}
	pin, err := b.PinByName(args[0])
	if err != nil {
		return err
	}
	level, err := b.Chip().Get(pin)
	if err != nil {
		return err
	}
	dir, err := b.Chip().Direction(pin)
	if err != nil {
		return err
	}
	fmt.Printf("pin %v (%v): %v\n", pin, dir, level)
	return nil
}

func setPin(args []string) error {
	if err := needArgs(args, "pin", "level"); err != nil {
		return err
	}
	pin, err := b.PinByName(args[0])
	if err != nil {
		return err
	}
	level, err := parseLevel(args[1])
	if err != nil {
		return err
	}
	return b.Chip().Set(pin, level)
}

func inputPin(args []string) error {
	if err := needArgs(args, "pin"); err != nil {
		return err
	}
	pin, err := b.PinByName(args[0])
	if err != nil {
		return err
	}
	return b.Chip().DirectionInput(pin)
}

func outputPin(args []string) error {
	if err := needArgs(args, "pin", "level"); err != nil {
		return err
	}
	pin, err := b.PinByName(args[0])
	if err != nil {
		return err
	}
	level, err := parseLevel(args[1])
	if err != nil {
		return err
	}
	return b.Chip().DirectionOutput(pin, level)
}

func pullPin(args []string) error {
	if err := needArgs(args, "pin", "none|up|down"); err != nil {
		return err
	}
	pin, err := b.PinByName(args[0])
	if err != nil {
		return err
	}
	pull, err := kts1622.ParsePull(args[1])
	if err != nil {
		return err
	}
	return b.Chip().SetPull(pin, pull)
}

func drivePin(args []string) error {
	if err := needArgs(args, "pin", "push-pull|open-drain"); err != nil {
		return err
	}
	pin, err := b.PinByName(args[0])
	if err != nil {
		return err
	}
	mode, err := kts1622.ParseDriveMode(args[1])
	if err != nil {
		return err
	}
	return b.Chip().SetDriveMode(pin, mode)
}

func strengthPin(args []string) error {
	if err := needArgs(args, "pin", "quarter|half|three-quarters|full"); err != nil {
		return err
	}
	pin, err := b.PinByName(args[0])
	if err != nil {
		return err
	}
	strength, err := kts1622.ParseDriveStrength(args[1])
	if err != nil {
		return err
	}
	return b.Chip().SetDriveStrength(pin, strength)
}

func readLevels() (levels [kts1622.NUM_PINS]bool, err error) {
	for pin := range levels {
		if levels[pin], err = b.Chip().Get(pin); err != nil {
			return
		}
	}
	return
}

func pollInputs([]string) error {
	ctx, cancel := signalContext()
	defer cancel()
	var previous [kts1622.NUM_PINS]bool
	for i := 0; ; i++ {
		levels, err := readLevels()
		if err != nil {
			return err
		}
		if i == 0 {
			log.Println("Pin levels:", levels)
		} else {
			for pin, level := range levels {
				if level != previous[pin] {
					log.Printf("Pin %v changed to %v", pin, level)
				}
			}
		}
		previous = levels
		if !sleep(ctx, sleepTime) {
			return nil
		}
	}
}

func toggleOutputs([]string) error {
	ctx, cancel := signalContext()
	defer cancel()
	for pin := 0; pin < kts1622.NUM_PINS; pin++ {
		if err := b.Chip().DirectionOutput(pin, true); err != nil {
			return err
		}
	}
	val := false
	for {
		for pin := 0; pin < kts1622.NUM_PINS; pin++ {
			if err := b.Chip().Set(pin, val); err != nil {
				return err
			}
		}
		if levels, err := readLevels(); err != nil {
			return err
		} else {
			log.Println("Pin levels:", levels)
		}
		val = !val
		if !sleep(ctx, sleepTime) {
			return nil
		}
	}
}

func chase(args []string) error {
	var pins []int
	for _, arg := range args {
		pin, err := b.PinByName(arg)
		if err != nil {
			return err
		}
		pins = append(pins, pin)
	}
	return b.PlayChase(board.DefaultChase, chaseRounds, pins)
}

func watch(args []string) error {
	if err := needArgs(args, "pin", "rising|falling|both"); err != nil {
		return err
	}
	pin, err := b.PinByName(args[0])
	if err != nil {
		return err
	}
	edge, err := kts1622.ParseEdgeType(args[1])
	if err != nil {
		return err
	}
	if err := b.Chip().DirectionInput(pin); err != nil {
		return err
	}
	start := time.Now()
	line, err := b.Chip().RequestIrq(pin, edge, func(line kts1622.VirtualLine, pin int) {
		level, err := b.Chip().Get(pin)
		if err != nil {
			log.Errorf("Failed to read pin %v: %v", pin, err)
			return
		}
		log.Printf("%v: pin %v (line %v) is now %v", time.Now().Sub(start), pin, line, level)
	})
	if err != nil {
		return err
	}
	defer func() {
		golib.Printerr(b.Chip().FreeIrq(pin))
	}()
	log.Printf("Watching %v edges of pin %v (line %v), press Ctrl-C to stop", edge, pin, line)

	ctx, cancel := signalContext()
	defer cancel()
	if err := b.ServeIrq(ctx); err != context.Canceled {
		return err
	}
	return nil
}

func bench([]string) error {
	log.Println("Measuring register reads...")
	start := time.Now()
	reads := 0
	for {
		if _, err := b.Chip().Get(reads % kts1622.NUM_PINS); err != nil {
			return err
		}
		reads++
		if reads%20 == 0 {
			if duration := time.Now().Sub(start); duration > benchTime {
				log.Printf("%v register reads in %v -> %.1f reads/s", reads, duration, float64(reads)/duration.Seconds())
				return nil
			}
		}
	}
}
