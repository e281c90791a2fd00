package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/antongulenko/golib"
	"github.com/antongulenko/kts1622/board"
	log "github.com/sirupsen/logrus"
	"github.com/splace/joysticks"
)

func main() {
	controller := joystickController{
		board:                 board.DefaultBoard,
		joystickIndex:         1,
		joystickRetryDuration: 2 * time.Second,
		mapping:               "1:0,2:1,3:2,4:3",
		resetButton:           9,
		chaseButton:           10,
		chase:                 board.DefaultChase,
	}
	controller.registerFlags()
	golib.RegisterFlags(golib.FlagsAll)
	flag.Parse()
	golib.ConfigureLogging()

	// "Clean" shutdown with Ctrl-C signal
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	var cleanupOnce sync.Once
	cleanup := func() {
		cleanupOnce.Do(controller.board.Cleanup)
	}
	defer cleanup()
	go func() {
		fmt.Println("Received signal", <-c)
		cleanup()
		os.Exit(0)
	}()

	golib.Checkerr(controller.setup())
	controller.run() // Does not return
}

type joystickController struct {
	board                 board.Board
	joystickIndex         int
	joystickRetryDuration time.Duration
	mapping               string
	resetButton           int
	chaseButton           int
	chase                 board.Chase

	lock    sync.Mutex
	buttons ButtonMapping
	pins    map[uint8]int
	levels  map[int]bool
}

func (c *joystickController) registerFlags() {
	c.board.RegisterFlags()
	flag.IntVar(&c.joystickIndex, "js", c.joystickIndex, "Joystick device index")
	flag.DurationVar(&c.joystickRetryDuration, "js-retry", c.joystickRetryDuration, "Time to retry joystick initialization")
	flag.StringVar(&c.mapping, "buttons", c.mapping, "Joystick buttons toggling output pins (<button>:<pin>,...), pins by number or name from the board file")
	flag.IntVar(&c.resetButton, "reset-button", c.resetButton, "Joystick button that switches all mapped outputs off (long press)")
	flag.IntVar(&c.chaseButton, "chase-button", c.chaseButton, "Joystick button that plays a chase pattern on the mapped outputs")
}

func (c *joystickController) setup() error {
	buttons, err := ParseButtonMapping(c.mapping)
	if err != nil {
		return err
	}
	if err := c.board.Setup(); err != nil {
		return err
	}
	c.buttons = buttons
	c.pins = make(map[uint8]int, len(buttons))
	c.levels = make(map[int]bool, len(buttons))
	for button, name := range buttons {
		pin, err := c.board.PinByName(name)
		if err != nil {
			return err
		}
		if err := c.board.Chip().DirectionOutput(pin, false); err != nil {
			return err
		}
		c.pins[button] = pin
		c.levels[pin] = false
	}
	log.Printf("Initialization done, %v button(s) mapped to output pins", len(c.pins))
	return nil
}

func (c *joystickController) run() {
	// Wait until Joysticks can be initialized successfully
	var js *joysticks.HID
	var err error
	for {
		if js, err = c.setupJoystick(); err != nil {
			log.Errorf("Failed to setup Joystick: %v. Retrying in %v...", err, c.joystickRetryDuration)
			time.Sleep(c.joystickRetryDuration)
		} else {
			log.Printf("Opened joystick device index %v (%v buttons, %v axes, %v events)", c.joystickIndex, len(js.Buttons), len(js.HatAxes), len(js.Events))
			break
		}
	}

	// Start receiving joystick events
	js.ParcelOutEvents() // Does not return
}

func (c *joystickController) setupJoystick() (*joysticks.HID, error) {
	js := joysticks.Connect(c.joystickIndex)
	if js == nil {
		return nil, fmt.Errorf("Failed to open joystick with index %v", c.joystickIndex)
	}
	for _, button := range c.buttons.Buttons() {
		if !js.ButtonExists(button) {
			return nil, fmt.Errorf("Button %v (pin %v) does not exist on joystick", button, c.buttons[button])
		}
		pin := c.pins[button]
		pressed := js.OnButton(button)
		go func() {
			for range pressed {
				c.toggle(pin)
			}
		}()
	}
	if button := uint8(c.resetButton); js.ButtonExists(button) {
		reset := js.OnLong(button)
		go func() {
			for range reset {
				c.switchOff()
			}
		}()
	} else {
		log.Warnf("Reset button %v does not exist on joystick", button)
	}
	if button := uint8(c.chaseButton); js.ButtonExists(button) {
		runChase := js.OnButton(button)
		go func() {
			for range runChase {
				c.playChase()
			}
		}()
	} else {
		log.Warnf("Chase button %v does not exist on joystick", button)
	}
	return js, nil
}

func (c *joystickController) toggle(pin int) {
	c.lock.Lock()
	defer c.lock.Unlock()
	level := !c.levels[pin]
	if err := c.board.Chip().Set(pin, level); err != nil {
		log.Errorf("Failed to set pin %v to %v: %v", pin, level, err)
		return
	}
	c.levels[pin] = level
	log.Printf("Pin %v: %v", pin, level)
}

func (c *joystickController) switchOff() {
	c.lock.Lock()
	defer c.lock.Unlock()
	log.Println("Switching all outputs off")
	for pin := range c.levels {
		if err := c.board.Chip().Set(pin, false); err != nil {
			log.Errorf("Failed to switch off pin %v: %v", pin, err)
			continue
		}
		c.levels[pin] = false
	}
}

func (c *joystickController) playChase() {
	c.lock.Lock()
	defer c.lock.Unlock()
	pins := make([]int, 0, len(c.buttons))
	for _, button := range c.buttons.Buttons() {
		pins = append(pins, c.pins[button])
	}
	if err := c.board.PlayChase(c.chase, 1, pins); err != nil {
		log.Errorf("Chase pattern failed: %v", err)
	}
	for pin := range c.levels {
		golib.Printerr(c.board.Chip().Set(pin, c.levels[pin]))
	}
}
