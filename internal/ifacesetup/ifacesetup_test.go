package ifacesetup

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rubyfpv/radio-link/internal/config"
)

func TestLooksLikeWifiMatchesKnownPrefixes(t *testing.T) {
	assert.True(t, looksLikeWifi("wlan0"))
	assert.True(t, looksLikeWifi("wlx00c0ca1234"))
	assert.False(t, looksLikeWifi("eth0"))
	assert.False(t, looksLikeWifi("lo"))
}

func TestDriverFamilyForClassifiesByName(t *testing.T) {
	assert.Equal(t, config.DriverAtherosRalink, driverFamilyFor("wlan-ath9k"))
	assert.Equal(t, config.DriverRTL88xx, driverFamilyFor("wlan-rtl8812au"))
	assert.Equal(t, config.DriverOther, driverFamilyFor("wlan0"))
}
