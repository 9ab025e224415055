package ifacepower

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewDefaultsHoldLowWhenNonPositive(t *testing.T) {
	c := New("gpiochip0", 17, 0)
	assert.Equal(t, 2*time.Second, c.holdLow)

	c2 := New("gpiochip0", 17, 500*time.Millisecond)
	assert.Equal(t, 500*time.Millisecond, c2.holdLow)
}
