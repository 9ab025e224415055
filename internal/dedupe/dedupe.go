// Package dedupe implements the duplicate detector (C1 dependency, C2
// in spec.md): given a packet seen on one radio interface, report
// whether an identical packet was already accepted from another
// interface recently, so diversity reception never delivers the same
// packet twice.
//
// Grounded on the teacher's src/dedupe.go: a small fixed-size ring of
// recent (checksum, timestamp) records, overwritten oldest-first,
// checked linearly. Spec.md keys on (stream, packet index, source) per
// interface rather than direct/digipeat channel, and the window is
// milliseconds rather than dedupe.go's 30s APRS figure, but the ring
// shape and tie-break rule (first interface wins) carry over directly.
package dedupe

import (
	"sync"
	"time"

	"github.com/rubyfpv/radio-link/internal/config"
	"github.com/rubyfpv/radio-link/internal/packet"
)

type key struct {
	source uint32
	stream packet.StreamID
	index  uint32
}

type entry struct {
	k         key
	iface     int
	timestamp time.Time
	valid     bool
}

// Detector tracks recently-accepted (source, stream, packet index)
// triples across all radio interfaces.
type Detector struct {
	mu      sync.Mutex
	history [config.DedupeHistorySize]entry
	next    int
	ttl     time.Duration
}

// New creates a Detector with the given retention window.
func New(ttl time.Duration) *Detector {
	if ttl <= 0 {
		ttl = config.DedupeHistoryTTL
	}
	return &Detector{ttl: ttl}
}

// CheckAndRemember reports whether (source, stream, index) was already
// seen from a different interface within the retention window. The
// first interface to present a packet wins the tie-break (spec.md
// §4.2): later duplicates from other interfaces return true and are
// not remembered again, so the winning interface's record is not
// overwritten by a late duplicate.
func (d *Detector) CheckAndRemember(iface int, source uint32, stream packet.StreamID, index uint32, now time.Time) bool {
	k := key{source: source, stream: stream, index: index}

	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.history {
		e := &d.history[i]
		if !e.valid || e.k != k {
			continue
		}
		if now.Sub(e.timestamp) > d.ttl {
			continue
		}
		// Seen before. Duplicate only if from a *different* interface;
		// the same interface re-presenting its own packet is handled
		// by the RX engine's gap-index bookkeeping, not here.
		return e.iface != iface
	}

	d.history[d.next] = entry{k: k, iface: iface, timestamp: now, valid: true}
	d.next = (d.next + 1) % len(d.history)
	return false
}
