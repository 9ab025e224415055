package rxdriver

import (
	"io"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubyfpv/radio-link/internal/packet"
)

// fakeSerialPort feeds back a fixed sequence of reads, one per call,
// for deterministic short-packet reassembly tests without needing a
// real pty.
type fakeSerialPort struct {
	chunks [][]byte
	idx    int
}

func (f *fakeSerialPort) Read(p []byte) (int, error) {
	if f.idx >= len(f.chunks) {
		return 0, io.EOF
	}
	n := copy(p, f.chunks[f.idx])
	f.idx++
	return n, nil
}

func (f *fakeSerialPort) Write(p []byte) (int, error) { return len(p), nil }
func (f *fakeSerialPort) Close() error                { return nil }

func chunkShortPackets(full []byte, chunkSize int) [][]byte {
	const maxFragment = 16
	var out [][]byte
	var cur []byte
	id := byte(0)
	for off := 0; off < len(full); off += maxFragment {
		end := off + maxFragment
		if end > len(full) {
			end = len(full)
		}
		frag := full[off:end]
		header := packet.ShortPacketContinuation
		if off == 0 {
			header = packet.ShortPacketStart
		}
		cur = append(cur, header, id, byte(len(frag)))
		cur = append(cur, frag...)
		id++
	}
	for len(cur) > 0 {
		n := chunkSize
		if n > len(cur) {
			n = len(cur)
		}
		out = append(out, append([]byte(nil), cur[:n]...))
		cur = cur[n:]
	}
	return out
}

func TestSerialDriverReassemblesAcrossChunks(t *testing.T) {
	encoded := packet.Encode(packet.EncodeParams{
		Kind:       packet.InterfaceSerial,
		Type:       7,
		Stream:     3,
		Index:      99,
		SrcVehicle: 11,
		Payload:    []byte("hello ruby link layer payload!!"),
	})

	chunks := chunkShortPackets(encoded, 10)
	port := &fakeSerialPort{chunks: chunks}
	drv := NewSerialDriver(port, nil, 1600)

	var got *packet.Packet
	for i := 0; i < len(chunks)+2 && got == nil; i++ {
		pkt, err := drv.PollRead()
		if err == ErrBroken {
			t.Fatalf("unexpected broken: %v", err)
		}
		if pkt != nil {
			got = pkt
		}
	}
	require.NotNil(t, got)
	assert.Equal(t, uint8(7), got.Type)
	assert.Equal(t, "hello ruby link layer payload!!", string(got.Payload))
}

// TestSerialDriverOverRealPty exercises the driver against an actual
// pty pair instead of fakeSerialPort, so the reassembly logic is also
// proven against a real os.File-backed SerialPort and not only the
// hand-fed fake above.
func TestSerialDriverOverRealPty(t *testing.T) {
	ptmx, tty, err := pty.Open()
	require.NoError(t, err)
	defer ptmx.Close()
	defer tty.Close()

	encoded := packet.Encode(packet.EncodeParams{
		Kind:       packet.InterfaceSerial,
		Type:       9,
		Stream:     2,
		Index:      42,
		SrcVehicle: 3,
		Payload:    []byte("pty backed payload"),
	})
	for _, chunk := range chunkShortPackets(encoded, 12) {
		_, err := ptmx.Write(chunk)
		require.NoError(t, err)
	}

	drv := NewSerialDriver(tty, nil, 1600)

	deadline := time.Now().Add(time.Second)
	var got *packet.Packet
	for got == nil && time.Now().Before(deadline) {
		pkt, err := drv.PollRead()
		if err == ErrBroken {
			t.Fatalf("unexpected broken: %v", err)
		}
		if pkt != nil {
			got = pkt
			break
		}
		if err == ErrNoData {
			time.Sleep(time.Millisecond)
		}
	}
	require.NotNil(t, got)
	assert.Equal(t, uint8(9), got.Type)
	assert.Equal(t, "pty backed payload", string(got.Payload))
}

func TestSerialDriverDiscardsGarbageAfterThreshold(t *testing.T) {
	garbage := make([]byte, maxAccumulatedGarbage+10)
	for i := range garbage {
		garbage[i] = 0xFF
	}
	port := &fakeSerialPort{chunks: [][]byte{garbage}}
	drv := NewSerialDriver(port, nil, 1600)

	hit := false
	drv.BadDataHit = func() { hit = true }

	_, err := drv.PollRead()
	assert.ErrorIs(t, err, ErrNoData)
	assert.True(t, hit)
	assert.LessOrEqual(t, len(drv.garbage), keepOnGarbageDiscard)
}
