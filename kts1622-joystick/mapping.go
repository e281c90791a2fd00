package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ButtonMapping assigns joystick buttons to expander pins
type ButtonMapping map[uint8]string

// ParseButtonMapping parses a list like "1:0,2:led,3:15" (button:pin)
func ParseButtonMapping(str string) (ButtonMapping, error) {
	mapping := make(ButtonMapping)
	for _, part := range strings.Split(str, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ":")
		if len(fields) != 2 || fields[1] == "" {
			return nil, fmt.Errorf("Invalid button mapping '%v', expected <button>:<pin>", part)
		}
		button, err := strconv.ParseUint(fields[0], 10, 8)
		if err != nil {
			return nil, fmt.Errorf("Invalid button index in mapping '%v': %v", part, err)
		}
		if _, ok := mapping[uint8(button)]; ok {
			return nil, fmt.Errorf("Button %v mapped multiple times", button)
		}
		mapping[uint8(button)] = fields[1]
	}
	if len(mapping) == 0 {
		return nil, fmt.Errorf("Empty button mapping: '%v'", str)
	}
	return mapping, nil
}

func (m ButtonMapping) Buttons() []uint8 {
	buttons := make([]uint8, 0, len(m))
	for button := range m {
		buttons = append(buttons, button)
	}
	sort.Slice(buttons, func(i, j int) bool {
		return buttons[i] < buttons[j]
	})
	return buttons
}
