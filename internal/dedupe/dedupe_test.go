package dedupe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rubyfpv/radio-link/internal/packet"
)

func TestFirstInterfaceWinsTieBreak(t *testing.T) {
	d := New(time.Second)
	now := time.Now()

	dup0 := d.CheckAndRemember(0, 1, packet.StreamTelemetry, 100, now)
	assert.False(t, dup0, "first sighting is never a duplicate")

	dup1 := d.CheckAndRemember(1, 1, packet.StreamTelemetry, 100, now)
	assert.True(t, dup1, "second interface sees it as a duplicate")

	// Same interface re-presenting isn't treated as a cross-interface dup.
	dupAgain0 := d.CheckAndRemember(0, 1, packet.StreamTelemetry, 100, now)
	assert.False(t, dupAgain0)
}

func TestExpiresAfterTTL(t *testing.T) {
	d := New(10 * time.Millisecond)
	now := time.Now()
	d.CheckAndRemember(0, 1, packet.StreamTelemetry, 5, now)
	later := now.Add(50 * time.Millisecond)
	dup := d.CheckAndRemember(1, 1, packet.StreamTelemetry, 5, later)
	assert.False(t, dup, "entry should have expired")
}

func TestKDiversityInterfacesExactlyOneUnique(t *testing.T) {
	d := New(time.Second)
	now := time.Now()
	const k = 4
	dupCount := 0
	for i := 0; i < k; i++ {
		if d.CheckAndRemember(i, 42, packet.StreamVideoData, 777, now) {
			dupCount++
		}
	}
	assert.Equal(t, k-1, dupCount, "exactly one copy should be unique across k interfaces")
}
