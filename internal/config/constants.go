package config

import "time"

// System-wide sizing constants. Concrete values are carried over from
// the original C source (radio_rx.c, packets_utils.cpp) per SPEC_FULL.md,
// where spec.md itself left them abstract.
const (
	// MaxPacketTotalSize bounds any single framed radio packet,
	// including chained payloads.
	MaxPacketTotalSize = 1600

	// MaxRxPacketsQueue is the regular-priority queue depth.
	MaxRxPacketsQueue = 250

	// HighPriorityQueueSize is the high-priority (ping/retransmit/control) queue depth.
	HighPriorityQueueSize = 150

	// MaxConcurrentVehicles bounds the number of peers tracked by Rx state.
	MaxConcurrentVehicles = 6

	// DefaultRadioSerialMaxTXLoad is the percentage of a serial
	// interface's air rate the TX engine (C6) will not exceed.
	DefaultRadioSerialMaxTXLoad = 80

	// ControllerLinkStatsHistoryMaxSlices bounds the per-interface and
	// per-stream rx-quality history rings (C7).
	ControllerLinkStatsHistoryMaxSlices = 25

	// MaxRadioInterfaces bounds the number of physical adapters tracked.
	MaxRadioInterfaces = 8

	// MaxLocalRadioLinks bounds the number of logical links tracked.
	MaxLocalRadioLinks = 4
)

// Timing constants.
const (
	// RxSelectTimeout is the readiness-wait timeout in the RX worker's
	// main loop (spec.md §4.4 step 1).
	RxSelectTimeout = 20 * time.Millisecond

	// RxLoopTimeoutInterval is the default threshold above which a
	// single RX loop iteration is logged as a slow loop.
	RxLoopTimeoutInterval = 15 * time.Millisecond

	// RxStatsEmitInterval is a 500ms stats/priority period. The
	// rxengine loop does not read it: it applies a pending priority
	// change on its 5-second queue-peak tick.
	RxStatsEmitInterval = 500 * time.Millisecond

	// RxQueuePeakLogInterval is how often queue-depth peaks are logged.
	RxQueuePeakLogInterval = 5 * time.Second

	// RxQueuePeakResetInterval is 10 × RxQueuePeakLogInterval. The
	// rxengine loop does not read it: each 5-second peak log calls
	// PeakAndReset, so peaks are reset on every log.
	RxQueuePeakResetInterval = 10 * RxQueuePeakLogInterval

	// SerialFrameDiscardThresholdBytes: once this many bytes accumulate
	// on a serial interface without a valid short-packet header, all
	// but the last SerialFrameDiscardKeepBytes are discarded.
	SerialFrameDiscardThresholdBytes = 400
	SerialFrameDiscardKeepBytes      = 256

	// DefaultLowerVideoRadioDataRateAfterMs is the hysteresis window
	// before a *decreasing* adaptive radio data rate is committed.
	DefaultLowerVideoRadioDataRateAfterMs = 3000

	// AdaptiveVideoPeriodicLoopIntervalMs is how often the adaptive
	// video controller's periodic loop runs (C8).
	AdaptiveVideoPeriodicLoopIntervalMs = 10

	// AlarmThrottleInterval bounds how often the same alarm (e.g.
	// serial overload) is re-emitted.
	AlarmThrottleInterval = 20 * time.Second

	// DedupeHistoryTTL is how long a (stream, packet index) pair is
	// remembered by the duplicate detector (C2).
	DedupeHistoryTTL = 2 * time.Second

	// DedupeHistorySize bounds the duplicate detector's ring of
	// remembered pairs; one ring is shared by all sources.
	DedupeHistorySize = 64
)

// Default radio data rates, in bps; negative values denote MCS indices
// per spec.md's glossary.
const (
	DefaultRadioDataRateVideo = 18_000_000
	LowestAllowedDataRate     = 6_000_000
	PairingDataRate           = 6_000_000
)

// AlarmID identifies an out-of-band alarm packet sent to the controller.
type AlarmID int

const (
	AlarmRadioLinkDataOverload AlarmID = iota + 1
)
