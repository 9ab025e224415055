package rigctl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryConstantsMatchTeacherDiscipline(t *testing.T) {
	// The teacher's ptt.go rig_open loop retries up to 5 times with a
	// 5-second sleep between attempts; this package keeps that cadence.
	assert.Equal(t, 5, maxOpenAttempts)
	assert.Equal(t, 5*time.Second, openRetryDelay)
}
