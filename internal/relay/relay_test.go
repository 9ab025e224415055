package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServiceTypeIsStableWireConstant(t *testing.T) {
	// Relay nodes and controllers must agree on this string independent
	// of any code change, since it is the only thing mDNS discovery
	// matches on.
	assert.Equal(t, "_ruby-relay._tcp", ServiceType)
}

func TestDiscoveredFieldsRoundTrip(t *testing.T) {
	d := Discovered{Name: "relay-1", Host: "10.0.0.5", Port: 9100}
	assert.Equal(t, "relay-1", d.Name)
	assert.Equal(t, "10.0.0.5", d.Host)
	assert.Equal(t, 9100, d.Port)
}
