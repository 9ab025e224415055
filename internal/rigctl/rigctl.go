// Package rigctl drives a CAT-controlled radio's frequency via Hamlib,
// used on links where the physical radio (not just the Wi-Fi adapter)
// needs retuning to follow a channel-hopping or frequency-negotiation
// scheme.
//
// Grounded on the teacher's src/ptt.go Hamlib integration, which the
// teacher itself left "disabled due to mid-stage porting complexity"
// behind a cgo call into the C hamlib library with a model-probe, a
// rig_open retried up to 5 times, and a config-overridable CAT serial
// rate. This package completes that porting using
// github.com/xylo04/goHamlib, a pure-Go hamlib binding already in the
// teacher's go.mod, instead of cgo.
package rigctl

import (
	"fmt"
	"time"

	"github.com/xylo04/goHamlib"

	"github.com/rubyfpv/radio-link/internal/rlog"
)

// maxOpenAttempts mirrors the teacher's "try up to 5 times, Hamlib can
// take a moment to finish init."
const maxOpenAttempts = 5

// openRetryDelay mirrors the teacher's 5-second retry sleep.
const openRetryDelay = 5 * time.Second

// Controller wraps one open Hamlib rig handle for frequency control.
type Controller struct {
	log *rlog.Logger
	rig *gohamlib.Rig
}

// Open opens a rig of the given Hamlib model number on device, applying
// an optional CAT serial rate override (0 leaves Hamlib's own guess),
// retrying per the teacher's own retry discipline.
func Open(log *rlog.Logger, model int, device string, serialRateOverride int) (*Controller, error) {
	rig := gohamlib.NewRig(model)
	if rig == nil {
		return nil, fmt.Errorf("rigctl: unknown rig model %d", model)
	}
	rig.SetConfParam("rig_pathname", device)
	if serialRateOverride > 0 {
		rig.SetConfParam("serial_speed", fmt.Sprintf("%d", serialRateOverride))
		log.Infof("rigctl: overriding CAT serial rate to %d", serialRateOverride)
	}

	var lastErr error
	for attempt := 1; attempt <= maxOpenAttempts; attempt++ {
		if lastErr = rig.Open(); lastErr == nil {
			return &Controller{log: log, rig: rig}, nil
		}
		log.Infof("rigctl: retrying Hamlib rig open (attempt %d/%d): %v", attempt, maxOpenAttempts, lastErr)
		time.Sleep(openRetryDelay)
	}

	rig.Cleanup()
	return nil, fmt.Errorf("rigctl: rig open failed after %d attempts: %w", maxOpenAttempts, lastErr)
}

// SetFrequencyMHz retunes the rig's current VFO.
func (c *Controller) SetFrequencyMHz(mhz float64) error {
	if err := c.rig.SetFreq(gohamlib.VFOCurrent, mhz*1_000_000); err != nil {
		return fmt.Errorf("rigctl: set frequency: %w", err)
	}
	return nil
}

// Close releases the rig handle.
func (c *Controller) Close() error {
	return c.rig.Close()
}
