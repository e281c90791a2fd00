package board

import (
	"io/ioutil"
	"strconv"

	"github.com/antongulenko/kts1622/kts1622"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// File is the YAML board description. Empty or zero fields do not override the flags.
type File struct {
	Backend   string      `yaml:"backend"`
	Device    string      `yaml:"device"`
	Bus       string      `yaml:"bus"`
	Frequency uint        `yaml:"frequency"`
	Address   uint        `yaml:"address"`
	IrqPin    string      `yaml:"irqPin"`
	Debounce  []int       `yaml:"debounce"` // Ports with switch debouncing
	Pins      []PinConfig `yaml:"pins"`
}

// PinConfig is the initial configuration of one pin. Empty fields leave the chip defaults.
type PinConfig struct {
	Pin       int    `yaml:"pin"`
	Name      string `yaml:"name"`
	Direction string `yaml:"direction"`
	Value     bool   `yaml:"value"`
	Pull      string `yaml:"pull"`
	Drive     string `yaml:"drive"`
	Strength  string `yaml:"strength"`
	Invert    bool   `yaml:"invert"`
	Latch     bool   `yaml:"latch"`
	Edge      string `yaml:"edge"` // Requires an interrupt line
}

func (p PinConfig) String() string {
	if p.Name != "" {
		return p.Name
	}
	return "pin " + strconv.Itoa(p.Pin)
}

func ParseFile(data []byte) (*File, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, "failed to parse board file")
	}
	if err := file.Validate(); err != nil {
		return nil, err
	}
	return &file, nil
}

func LoadFile(path string) (*File, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	file, err := ParseFile(data)
	return file, errors.Wrapf(err, "board file %v", path)
}

// Validate parses all pin settings without touching a chip
func (f *File) Validate() error {
	seen := make(map[int]bool)
	for _, p := range f.Pins {
		if p.Pin < 0 || p.Pin >= kts1622.NUM_PINS {
			return errors.Wrapf(kts1622.ErrInvalidPin, "%v", p)
		}
		if seen[p.Pin] {
			return errors.Errorf("pin %v configured multiple times", p.Pin)
		}
		seen[p.Pin] = true
		if _, err := p.parse(); err != nil {
			return err
		}
	}
	for _, port := range f.Debounce {
		if port < 0 || port >= kts1622.NUM_PORTS {
			return errors.Wrapf(kts1622.ErrInvalidArgument, "debounce port %v", port)
		}
	}
	return nil
}

type pinSettings struct {
	direction *kts1622.Direction
	pull      *kts1622.Pull
	drive     *kts1622.DriveMode
	strength  *kts1622.DriveStrength
	edge      *kts1622.EdgeType
}

func (p PinConfig) parse() (s pinSettings, err error) {
	if p.Direction != "" {
		var dir kts1622.Direction
		if dir, err = kts1622.ParseDirection(p.Direction); err != nil {
			return s, errors.Wrapf(err, "%v", p)
		}
		s.direction = &dir
	}
	if p.Pull != "" {
		var pull kts1622.Pull
		if pull, err = kts1622.ParsePull(p.Pull); err != nil {
			return s, errors.Wrapf(err, "%v", p)
		}
		s.pull = &pull
	}
	if p.Drive != "" {
		var drive kts1622.DriveMode
		if drive, err = kts1622.ParseDriveMode(p.Drive); err != nil {
			return s, errors.Wrapf(err, "%v", p)
		}
		s.drive = &drive
	}
	if p.Strength != "" {
		var strength kts1622.DriveStrength
		if strength, err = kts1622.ParseDriveStrength(p.Strength); err != nil {
			return s, errors.Wrapf(err, "%v", p)
		}
		s.strength = &strength
	}
	if p.Edge != "" && p.Edge != kts1622.EdgeNone.String() {
		var edge kts1622.EdgeType
		if edge, err = kts1622.ParseEdgeType(p.Edge); err != nil {
			return s, errors.Wrapf(err, "%v", p)
		}
		s.edge = &edge
	}
	return s, nil
}

// Apply configures the pin. Pull, drive and polarity are set before the direction,
// so an output pin drives its configured value right away. Edges are not handled here.
func (p PinConfig) Apply(chip *kts1622.Chip) (err error) {
	s, err := p.parse()
	if err != nil {
		return err
	}
	log.Debugf("%v: configuring %v", chip, p)
	if s.pull != nil {
		err = chip.SetPull(p.Pin, *s.pull)
	}
	if err == nil && s.drive != nil {
		err = chip.SetDriveMode(p.Pin, *s.drive)
	}
	if err == nil && s.strength != nil {
		err = chip.SetDriveStrength(p.Pin, *s.strength)
	}
	if err == nil && p.Invert {
		err = chip.SetPolarityInversion(p.Pin, true)
	}
	if err == nil && p.Latch {
		err = chip.SetInputLatch(p.Pin, true)
	}
	if err == nil && s.direction != nil {
		if *s.direction == kts1622.Output {
			err = chip.DirectionOutput(p.Pin, p.Value)
		} else {
			err = chip.DirectionInput(p.Pin)
		}
	}
	return errors.Wrapf(err, "failed to configure %v", p)
}

// EdgeType returns the configured interrupt trigger, if any
func (p PinConfig) EdgeType() (kts1622.EdgeType, bool) {
	s, err := p.parse()
	if err != nil || s.edge == nil {
		return kts1622.EdgeNone, false
	}
	return *s.edge, true
}
