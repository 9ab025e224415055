package adaptive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubyfpv/radio-link/internal/config"
)

type fakeCapture struct {
	bitrate  int
	ipq      int
	kfMs     int
}

func (f *fakeCapture) SetBitrate(bps int)            { f.bitrate = bps }
func (f *fakeCapture) SetIPQuantizationDelta(d int)   { f.ipq = d }
func (f *fakeCapture) SetKeyframeMs(ms int)           { f.kfMs = ms }

type fakeRadio struct{ rate int }

func (f *fakeRadio) SetRadioDataRate(bps int) { f.rate = bps }

func testModel() *config.Model {
	return &config.Model{
		VideoLinkProfiles: []config.VideoLinkProfile{
			{Index: config.VideoProfileHQ, InitialKeyframeMs: 2000, BitrateFixedBPS: 12_000_000},
			{Index: config.VideoProfileMQ, InitialKeyframeMs: 1000, BitrateFixedBPS: 6_000_000, RadioDataRateBPS: 9_000_000},
			{Index: config.VideoProfileLQ, InitialKeyframeMs: 500, BitrateFixedBPS: 3_000_000, RadioDataRateBPS: 4_000_000},
		},
	}
}

func TestRequestProfileAppliesBitrateAndPendingKeyframe(t *testing.T) {
	capt := &fakeCapture{}
	radio := &fakeRadio{}
	ctl := New(testModel(), capt, radio, nil)

	ctl.RequestProfile(config.VideoProfileMQ)

	assert.Equal(t, 6_000_000, capt.bitrate)
	assert.Equal(t, 0, ctl.CurrentKeyframeMs())
}

func TestCommitKeyframeSkippedInsideIFrame(t *testing.T) {
	capt := &fakeCapture{}
	ctl := New(testModel(), capt, &fakeRadio{}, nil)
	ctl.RequestProfile(config.VideoProfileMQ)

	ctl.CommitKeyframe(true)
	assert.Equal(t, 0, ctl.CurrentKeyframeMs())

	ctl.CommitKeyframe(false)
	assert.Equal(t, 1000, ctl.CurrentKeyframeMs())
	assert.Equal(t, 1000, capt.kfMs)
}

func TestRadioRateAppliedImmediatelyWhenIncreasing(t *testing.T) {
	radio := &fakeRadio{}
	ctl := New(testModel(), &fakeCapture{}, radio, nil)

	ctl.RequestProfile(config.VideoProfileMQ) // 9_000_000 >= 0 (initial), applies immediately
	assert.Equal(t, 9_000_000, radio.rate)
}

func TestRadioRateDecreaseIsHysteresisGated(t *testing.T) {
	fixedNow := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cur := fixedNow
	radio := &fakeRadio{}
	ctl := New(testModel(), &fakeCapture{}, radio, func() time.Time { return cur })

	ctl.RequestProfile(config.VideoProfileMQ) // sets lastAppliedRadioRate = 9_000_000
	require.Equal(t, 9_000_000, radio.rate)

	ctl.RequestProfile(config.VideoProfileLQ) // 4_000_000 < 9_000_000: pending, not applied yet
	assert.Equal(t, 9_000_000, radio.rate)

	ctl.Tick()
	assert.Equal(t, 9_000_000, radio.rate, "must not apply before the hysteresis window elapses")

	cur = cur.Add(time.Duration(config.DefaultLowerVideoRadioDataRateAfterMs) * time.Millisecond)
	ctl.Tick()
	assert.Equal(t, 4_000_000, radio.rate)
}

func TestUserSelectedProfileClearsAdaptivePending(t *testing.T) {
	model := testModel()
	model.VideoParams.UserSelectedVideoLinkProfile = config.VideoProfileLQ
	radio := &fakeRadio{}
	ctl := New(model, &fakeCapture{}, radio, nil)

	ctl.RequestProfile(config.VideoProfileLQ)
	assert.Equal(t, 0, radio.rate, "user-selected profile uses configured rate, not an adaptive override")
}
