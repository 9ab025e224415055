// Package txselect implements C5, the per-local-radio-link TX
// interface and data-rate selector described in spec.md §4.5.
//
// Grounded on the teacher's note (spec.md §9, "Function-pointer-ish
// selectors") to keep the preferred/best-quality selection as two
// explicit scans rather than a folded one-pass reduction, since the
// preferred-index tie-break depends on the *minimum* preferred index
// among candidates, not the first one encountered.
package txselect

import (
	"github.com/rubyfpv/radio-link/internal/config"
	"github.com/rubyfpv/radio-link/internal/radiostats"
)

// NoInterface is returned by SelectInterface when uplink is not
// permitted on the chosen link (unknown, relay-only or downlink-only)
// or when none of its interfaces is eligible, per spec.md §4.5 step 4.
const NoInterface = -1

// Selector picks a TX interface and data rate per local radio link.
type Selector struct {
	model *config.Model
	stats *radiostats.Stats
}

// New creates a Selector bound to a Model and the shared Stats value.
func New(model *config.Model, stats *radiostats.Stats) *Selector {
	return &Selector{model: model, stats: stats}
}

// SelectInterface returns the TX interface index for linkID, or
// NoInterface if uplink is not permitted there (spec.md §4.5 steps 1-4).
func (s *Selector) SelectInterface(linkID int) int {
	link := s.model.LinkByID(linkID)
	if link == nil {
		return NoInterface
	}
	if link.CanRelay && !link.CanTX {
		return NoInterface
	}
	if link.DownlinkOnly {
		return NoInterface
	}

	candidates := make([]*config.RadioInterfaceParams, 0, len(link.InterfaceIndexes))
	for _, idx := range link.InterfaceIndexes {
		iface := s.model.InterfaceByIndex(idx)
		if iface == nil {
			continue
		}
		if iface.Disabled || !iface.TXCapable || !iface.MayUseData {
			continue
		}
		candidates = append(candidates, iface)
	}
	if len(candidates) == 0 {
		return NoInterface
	}

	// Pass 1: lowest non-zero preferred TX index.
	bestPreferred := -1
	bestPreferredIdx := 0
	for _, c := range candidates {
		if c.PreferredTXIndex <= 0 {
			continue
		}
		if bestPreferred == -1 || c.PreferredTXIndex < bestPreferred ||
			(c.PreferredTXIndex == bestPreferred && c.Index < bestPreferredIdx) {
			bestPreferred = c.PreferredTXIndex
			bestPreferredIdx = c.Index
		}
	}
	if bestPreferred != -1 {
		return bestPreferredIdx
	}

	// Pass 2: highest rxRelativeQuality, tie-break by lowest interface index.
	bestQuality := -1
	bestQualityIdx := 0
	for _, c := range candidates {
		q := s.stats.RxRelativeQuality(c.Index)
		if q > bestQuality || (q == bestQuality && c.Index < bestQualityIdx) {
			bestQuality = q
			bestQualityIdx = c.Index
		}
	}
	return bestQualityIdx
}

// SelectDataRate computes the uplink data rate for a packet on linkID,
// given its interface (already chosen by SelectInterface), whether this
// is a pairing request, and the controller's link-lost/negotiating
// state (spec.md §4.5, "Data-rate selection for an uplink packet").
func (s *Selector) SelectDataRate(linkID int, ifaceIndex int, isPairing bool, settings *config.ControllerSettings, activeVideoProfile, userProfile, streamingProfile int) int {
	if isPairing {
		return config.PairingDataRate
	}
	if settings != nil && settings.LinkLost {
		return config.LowestAllowedDataRate
	}
	if settings != nil && settings.NegotiatingRadioLinks {
		return config.LowestAllowedDataRate
	}

	link := s.model.LinkByID(linkID)
	iface := s.model.InterfaceByIndex(ifaceIndex)
	if link == nil || iface == nil {
		return config.LowestAllowedDataRate
	}

	if iface.Driver == config.DriverAtherosRalink {
		return link.DataRateDataBPS
	}

	switch link.UplinkRatePolicy {
	case config.UplinkRateFixed:
		return link.DataRateDataBPS
	case config.UplinkRateSameAsAdaptiveVideo:
		rate := link.DataRateVideoBPS
		if p := s.model.ProfileByIndex(userProfile); p != nil && p.RadioDataRateBPS < rate {
			rate = p.RadioDataRateBPS
		}
		if p := s.model.ProfileByIndex(streamingProfile); p != nil && p.RadioDataRateBPS < rate {
			rate = p.RadioDataRateBPS
		}
		return rate
	default: // UplinkRateLowest
		return config.LowestAllowedDataRate
	}
}
