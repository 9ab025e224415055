package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubyfpv/radio-link/internal/radiostats"
)

func TestCollectorExportsPerInterfaceGauges(t *testing.T) {
	stats := radiostats.New()
	stats.OnUniquePacketReceived(0)
	stats.OnUniquePacketReceived(0)

	c := New(stats, []int{0})

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(c))

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, fam := range families {
		if fam.GetName() != "ruby_rx_relative_quality" {
			continue
		}
		found = true
		require.Len(t, fam.Metric, 1)
		assert.Equal(t, float64(100), fam.Metric[0].GetGauge().GetValue())
		assert.Equal(t, "0", labelValue(fam.Metric[0], "interface"))
	}
	assert.True(t, found, "expected ruby_rx_relative_quality metric family")
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
