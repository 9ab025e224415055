package txselect

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rubyfpv/radio-link/internal/config"
	"github.com/rubyfpv/radio-link/internal/radiostats"
)

func baseModel() *config.Model {
	return &config.Model{
		RadioInterfaces: []config.RadioInterfaceParams{
			{Index: 0, TXCapable: true, MayUseData: true},
			{Index: 1, TXCapable: true, MayUseData: true},
		},
		RadioLinks: []config.LocalRadioLinkParams{
			{ID: 1, CanTX: true, DataRateDataBPS: 10_000_000, DataRateVideoBPS: 8_000_000, InterfaceIndexes: []int{0, 1}},
		},
	}
}

func TestSelectInterfacePrefersLowestNonZeroPreferredIndex(t *testing.T) {
	m := baseModel()
	m.RadioInterfaces[0].PreferredTXIndex = 5
	m.RadioInterfaces[1].PreferredTXIndex = 2

	sel := New(m, radiostats.New())
	assert.Equal(t, 1, sel.SelectInterface(1))
}

func TestSelectInterfaceFallsBackToQuality(t *testing.T) {
	m := baseModel()
	stats := radiostats.New()
	stats.OnUniquePacketReceived(0)
	stats.SetBadDataOnCurrentRxInterval(1)

	sel := New(m, stats)
	assert.Equal(t, 0, sel.SelectInterface(1))
}

func TestSelectInterfaceExcludesDisabledAndNonData(t *testing.T) {
	m := baseModel()
	m.RadioInterfaces[0].Disabled = true
	m.RadioInterfaces[1].MayUseData = false

	sel := New(m, radiostats.New())
	assert.Equal(t, NoInterface, sel.SelectInterface(1))
}

func TestSelectInterfaceDownlinkOnlyReturnsNoInterface(t *testing.T) {
	m := baseModel()
	m.RadioLinks[0].DownlinkOnly = true

	sel := New(m, radiostats.New())
	assert.Equal(t, NoInterface, sel.SelectInterface(1))
}

func TestSelectDataRatePairingAlwaysLowest(t *testing.T) {
	m := baseModel()
	sel := New(m, radiostats.New())
	rate := sel.SelectDataRate(1, 0, true, nil, 0, 0, 0)
	assert.Equal(t, config.PairingDataRate, rate)
}

func TestSelectDataRateAtherosUsesConfiguredVerbatim(t *testing.T) {
	m := baseModel()
	m.RadioInterfaces[0].Driver = config.DriverAtherosRalink
	sel := New(m, radiostats.New())
	rate := sel.SelectDataRate(1, 0, false, nil, 0, 0, 0)
	assert.Equal(t, 10_000_000, rate)
}

func TestSelectDataRateLinkLostClampsToLowest(t *testing.T) {
	m := baseModel()
	sel := New(m, radiostats.New())
	rate := sel.SelectDataRate(1, 0, false, &config.ControllerSettings{LinkLost: true}, 0, 0, 0)
	assert.Equal(t, config.LowestAllowedDataRate, rate)
}

func TestSelectDataRateSameAsAdaptiveVideoTakesMinimum(t *testing.T) {
	m := baseModel()
	m.VideoLinkProfiles = []config.VideoLinkProfile{
		{Index: 0, RadioDataRateBPS: 4_000_000},
		{Index: 1, RadioDataRateBPS: 2_000_000},
	}
	m.RadioInterfaces[0].Driver = config.DriverOther
	m.RadioLinks[0].UplinkRatePolicy = config.UplinkRateSameAsAdaptiveVideo
	sel := New(m, radiostats.New())
	rate := sel.SelectDataRate(1, 0, false, nil, 0, 0, 1)
	assert.Equal(t, 2_000_000, rate)
}
