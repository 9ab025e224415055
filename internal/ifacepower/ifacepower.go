// Package ifacepower power-cycles a radio interface's USB hub port via
// a GPIO line, used to recover an interface that the Rx engine has
// marked broken and that a simple driver reset does not clear.
//
// Grounded on the teacher's src/cm108.go family of GPIO-for-PTT code
// (direct line control for a hardware side-channel the main data path
// does not otherwise touch), generalized from CM108 HID GPIO to a
// Linux GPIO character-device line via
// github.com/warthog618/go-gpiocdev, the library the teacher's go.mod
// already carries for exactly this kind of "toggle a physical line"
// concern.
package ifacepower

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// Cycler toggles a GPIO line low-then-high to power-cycle a USB hub
// port feeding one radio interface.
type Cycler struct {
	chipName string
	line     int
	holdLow  time.Duration
}

// New creates a Cycler bound to a gpiochip device and line offset, e.g.
// ("gpiochip0", 17) for a relay controlling one USB port's power.
func New(chipName string, line int, holdLow time.Duration) *Cycler {
	if holdLow <= 0 {
		holdLow = 2 * time.Second
	}
	return &Cycler{chipName: chipName, line: line, holdLow: holdLow}
}

// Cycle drives the line low for holdLow, then high, power-cycling
// whatever hub port it controls. It blocks for the hold duration.
func (c *Cycler) Cycle() error {
	l, err := gpiocdev.RequestLine(c.chipName, c.line, gpiocdev.AsOutput(1))
	if err != nil {
		return fmt.Errorf("ifacepower: requesting line %d on %s: %w", c.line, c.chipName, err)
	}
	defer l.Close()

	if err := l.SetValue(0); err != nil {
		return fmt.Errorf("ifacepower: driving line low: %w", err)
	}
	time.Sleep(c.holdLow)
	if err := l.SetValue(1); err != nil {
		return fmt.Errorf("ifacepower: driving line high: %w", err)
	}
	return nil
}
