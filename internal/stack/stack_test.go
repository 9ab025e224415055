package stack

import (
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubyfpv/radio-link/internal/config"
	"github.com/rubyfpv/radio-link/internal/packet"
)

type captureWriter struct {
	frames [][]byte
}

func (w *captureWriter) WriteFrame(buf []byte) (int, error) {
	w.frames = append(w.frames, append([]byte(nil), buf...))
	return len(buf), nil
}

func testModel() *config.Model {
	return &config.Model{
		VehicleID: 1,
		RadioInterfaces: []config.RadioInterfaceParams{
			{Index: 0, Name: "wlan0", MayTX: true, MayUseData: true, TXCapable: true},
			{Index: 1, Name: "wlan1", MayTX: true, MayUseData: true, TXCapable: true},
		},
		RadioLinks: []config.LocalRadioLinkParams{
			{ID: 1, CanTX: true, CanRX: true, InterfaceIndexes: []int{0, 1}},
		},
	}
}

func newTestStack(t *testing.T) *RadioStack {
	t.Helper()
	s, err := New(testModel(), "test-run", log.WarnLevel, "", false)
	require.NoError(t, err)
	return s
}

func TestNewBuildsAllCollaborators(t *testing.T) {
	s := newTestStack(t)
	assert.NotNil(t, s.Rx)
	assert.NotNil(t, s.Tx)
	assert.NotNil(t, s.Selector)
	assert.NotNil(t, s.Adaptive)
	assert.NotNil(t, s.Metrics)
	assert.Empty(t, s.Power)
	assert.Empty(t, s.Rig)
}

func TestRecoverInterfaceNoopWithoutPowerCycler(t *testing.T) {
	s := newTestStack(t)
	err := s.RecoverInterface(0)
	assert.NoError(t, err)
}

func TestRouterDrainsQueueAndSendsReply(t *testing.T) {
	s := newTestStack(t)
	w := &captureWriter{}
	s.txWriters[0] = w
	s.txWriters[1] = w

	encoded := packet.Encode(packet.EncodeParams{
		Kind:       packet.InterfaceWifi,
		Type:       packet.TypeTelemetry,
		Stream:     packet.StreamTelemetry,
		SrcVehicle: 1,
		Payload:    []byte("hi"),
	})
	require.True(t, s.Rx.Regular.Push(encoded, 0, false))

	gotIface := -1
	s.SetDeliver(func(ifaceIndex int, pkt *packet.Packet) []*packet.Packet {
		gotIface = ifaceIndex
		return []*packet.Packet{{Type: packet.TypeControl, Stream: packet.StreamControl, Payload: []byte("ack")}}
	})

	s.router.start()
	defer s.router.stop()

	require.Eventually(t, func() bool { return len(w.frames) > 0 }, time.Second, time.Millisecond)
	assert.Equal(t, 0, gotIface)
}

func TestBuildLinkTargetsSkipsLinkWithoutTxWriter(t *testing.T) {
	s := newTestStack(t)
	assert.Empty(t, s.buildLinkTargets())
}

func TestAttachPowerAndRigRegisterByIndex(t *testing.T) {
	s := newTestStack(t)
	assert.Nil(t, s.Power[0])
	s.AttachPower(0, nil)
	_, ok := s.Power[0]
	assert.True(t, ok)
}
