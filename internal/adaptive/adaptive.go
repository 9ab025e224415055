// Package adaptive implements C8, the vehicle-side adaptive video
// controller: reacting to a controller-requested profile switch by
// updating the capture program's bitrate/quantization/keyframe
// interval and hysteresis-gating decreases to the radio data rate.
//
// Grounded on the teacher's src/audio.go state-machine shape (explicit
// "pending vs current" fields committed only at a safe boundary,
// mirrored here at end-of-frame instead of end-of-audio-buffer) and on
// spec.md §4.8's own state machine summary.
package adaptive

import (
	"time"

	"github.com/rubyfpv/radio-link/internal/config"
)

// CaptureControl is the out-of-core collaborator that actually talks to
// the CSI/Veye raspivid protocol or OpenIPC majestic (spec.md's
// "external Wi-Fi/serial handles... opened by setup code external to
// the core" principle extended to the capture program).
type CaptureControl interface {
	SetBitrate(bps int)
	SetIPQuantizationDelta(delta int)
	SetKeyframeMs(ms int)
}

// RadioRateControl applies a radio data rate, distinct from
// internal/txselect since C8 pushes an override rather than computing
// one per-packet.
type RadioRateControl interface {
	SetRadioDataRate(bps int)
}

const noProfileRequested = -1

// Controller is the C8 state machine. It takes no internal lock and is
// not safe for concurrent use: RequestProfile, Tick and CommitKeyframe
// read and write the same fields without synchronization, so calls
// from different goroutines need an external lock.
type Controller struct {
	model   *config.Model
	capture CaptureControl
	radio   RadioRateControl
	now     func() time.Time

	lastRequestedProfile int

	currentKfMs int
	pendingKfMs int

	pendingRadioRateBPS int
	pendingRadioRateAt  time.Time
	lastAppliedRadioRate int

	lastAppliedBitrate       int
	lastIPQuantizationDelta  int
}

// New creates a Controller. nowFn defaults to time.Now if nil (tests
// pass a fixed clock to exercise the hysteresis window deterministically).
func New(model *config.Model, capture CaptureControl, radio RadioRateControl, nowFn func() time.Time) *Controller {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Controller{
		model:                model,
		capture:              capture,
		radio:                radio,
		now:                  nowFn,
		lastRequestedProfile: noProfileRequested,
	}
}

// RequestProfile handles a controller-requested profile switch
// (spec.md §4.8, "When the controller requests a new video profile P").
func (c *Controller) RequestProfile(profileIdx int) {
	profile := c.model.ProfileByIndex(profileIdx)
	if profile == nil {
		return
	}

	c.lastRequestedProfile = profileIdx
	c.pendingKfMs = profile.InitialKeyframeMs

	if profile.BitrateFixedBPS != c.lastAppliedBitrate {
		c.capture.SetBitrate(profile.BitrateFixedBPS)
		c.lastAppliedBitrate = profile.BitrateFixedBPS
	}

	if c.model.IsActiveCameraOpenIPC() && profile.IPQuantizationDelta != c.lastIPQuantizationDelta {
		c.capture.SetIPQuantizationDelta(profile.IPQuantizationDelta)
		c.lastIPQuantizationDelta = profile.IPQuantizationDelta
	}

	c.applyRadioDataRate(profileIdx, profile)
}

func (c *Controller) applyRadioDataRate(profileIdx int, profile *config.VideoLinkProfile) {
	userSelected := c.model.VideoParams.UserSelectedVideoLinkProfile
	if profileIdx == userSelected {
		c.pendingRadioRateBPS = 0
		c.pendingRadioRateAt = time.Time{}
		return
	}

	nRate := profileDataRate(profile)
	if nRate >= c.lastAppliedRadioRate {
		c.radio.SetRadioDataRate(nRate)
		c.lastAppliedRadioRate = nRate
		c.pendingRadioRateBPS = 0
		c.pendingRadioRateAt = time.Time{}
		return
	}

	c.pendingRadioRateBPS = nRate
	c.pendingRadioRateAt = c.now().Add(time.Duration(config.DefaultLowerVideoRadioDataRateAfterMs) * time.Millisecond)
}

// profileDataRate returns the profile's configured radio data rate,
// falling back to the system default for profile 0 (HQ) per spec.md
// §4.8 ("compute nRate = default for HQ, or profile-specific MQ/LQ
// data rate").
func profileDataRate(profile *config.VideoLinkProfile) int {
	if profile.Index == config.VideoProfileHQ {
		return config.DefaultRadioDataRateVideo
	}
	return profile.RadioDataRateBPS
}

// CommitKeyframe is called at each capture end-of-frame boundary that
// is not inside an I-frame; if a keyframe change is pending it is sent
// to the capture program and adopted (spec.md §4.8, "Keyframe commit").
func (c *Controller) CommitKeyframe(insideIFrame bool) {
	if insideIFrame || c.pendingKfMs == 0 {
		return
	}
	c.capture.SetKeyframeMs(c.pendingKfMs)
	c.currentKfMs = c.pendingKfMs
	c.pendingKfMs = 0
}

// Tick is the periodic loop step (spec.md §4.8, "every 10 ms, if a
// pending adaptive radio data rate is overdue, apply it"). Callers
// drive this on a ticker at config.AdaptiveVideoPeriodicLoopIntervalMs.
func (c *Controller) Tick() {
	if c.pendingRadioRateBPS == 0 {
		return
	}
	if c.now().Before(c.pendingRadioRateAt) {
		return
	}
	c.radio.SetRadioDataRate(c.pendingRadioRateBPS)
	c.lastAppliedRadioRate = c.pendingRadioRateBPS
	c.pendingRadioRateBPS = 0
	c.pendingRadioRateAt = time.Time{}
}

// CurrentKeyframeMs returns the last-committed keyframe interval.
func (c *Controller) CurrentKeyframeMs() int { return c.currentKfMs }

// LastRequestedProfile returns the last profile index requested by the
// controller, or -1 if none has been requested yet.
func (c *Controller) LastRequestedProfile() int { return c.lastRequestedProfile }
