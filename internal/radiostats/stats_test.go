package radiostats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rubyfpv/radio-link/internal/config"
)

func TestVehicleAllocationReusesFirstFreeSlot(t *testing.T) {
	s := New()
	now := time.Now()

	v1 := s.FindOrAllocateVehicle(100, now)
	v2 := s.FindOrAllocateVehicle(200, now)
	assert.NotSame(t, v1, v2)

	// Re-sighting 100 returns the same slot.
	v1again := s.FindOrAllocateVehicle(100, now)
	assert.Same(t, v1, v1again)
}

func TestVehicleAllocationReusesLastSlotWhenFull(t *testing.T) {
	s := New()
	now := time.Now()
	for i := 0; i < config.MaxConcurrentVehicles; i++ {
		s.FindOrAllocateVehicle(uint32(i+1), now)
	}
	// All slots taken; a new vehicle evicts the last slot.
	v := s.FindOrAllocateVehicle(9999, now)
	assert.Equal(t, uint32(9999), v.VehicleID)
}

func TestClassifyRadioLinkIndexDetectsGap(t *testing.T) {
	s := New()
	now := time.Now()

	good, bad, lost := s.ClassifyRadioLinkIndex(7, 0, true, 1, now)
	assert.True(t, good)
	assert.False(t, bad)
	assert.False(t, lost)

	good, bad, lost = s.ClassifyRadioLinkIndex(7, 0, true, 5, now)
	assert.False(t, good)
	assert.False(t, bad)
	assert.True(t, lost)
}

func TestClassifyRadioLinkIndexWithoutIndexIsAlwaysGood(t *testing.T) {
	s := New()
	now := time.Now()

	good, bad, lost := s.ClassifyRadioLinkIndex(7, 0, false, 0, now)
	assert.True(t, good)
	assert.False(t, bad)
	assert.False(t, lost)

	good, bad, lost = s.ClassifyRadioLinkIndex(7, 0, false, 0, now)
	assert.True(t, good)
	assert.False(t, bad)
	assert.False(t, lost)
}

func TestOnPacketSentOnLinkTracksPerStreamBytes(t *testing.T) {
	s := New()
	now := time.Now()

	s.OnPacketSentOnLink(1, 2, 100, 1, now)
	s.OnPacketSentOnLink(1, 2, 50, 1, now)

	st := s.Links[1].Streams[2]
	assert.Equal(t, uint64(2), st.Packets)
}

func TestRxRelativeQualityAllGoodIsHigh(t *testing.T) {
	s := New()
	s.OnUniquePacketReceived(0)
	s.OnUniquePacketReceived(0)
	assert.Equal(t, 100, s.RxRelativeQuality(0))
}

func TestRxRelativeQualityDegradesWithBad(t *testing.T) {
	s := New()
	s.OnUniquePacketReceived(0)
	s.SetBadDataOnCurrentRxInterval(0)
	q := s.RxRelativeQuality(0)
	assert.Equal(t, 50, q)
}

func TestUnknownInterfaceQualityDefaultsHigh(t *testing.T) {
	s := New()
	assert.Equal(t, 100, s.RxRelativeQuality(42))
}
