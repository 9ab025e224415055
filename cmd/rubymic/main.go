// Command rubymic is an illustrative, non-core collaborator: it
// captures a local microphone and feeds raw PCM frames into the core's
// AUDIO stream over a loopback TCP control port, the same role the
// out-of-scope camera capture programs play for video (spec.md §6).
//
// Grounded on the teacher's cmd/direwolf's pflag-based CLI shape; the
// capture itself uses github.com/gordonklaus/portaudio, carried over
// from the retrieval pack's audio-capture precedent since nothing in
// the teacher itself records live audio.
package main

import (
	"encoding/binary"
	"fmt"
	"net"
	"os"

	"github.com/gordonklaus/portaudio"
	"github.com/spf13/pflag"

	"github.com/rubyfpv/radio-link/internal/packet"
)

func main() {
	addr := pflag.StringP("addr", "a", "127.0.0.1:5760", "Loopback control port the core daemon listens on for AUDIO stream frames.")
	sampleRate := pflag.Float64P("sample-rate", "r", 16000, "Capture sample rate, Hz.")
	framesPerBuffer := pflag.IntP("frames", "f", 320, "Frames per capture buffer (20ms at 16kHz).")
	vehicleID := pflag.Uint32P("vehicle-id", "v", 0, "Source vehicle id stamped on each AUDIO packet.")
	help := pflag.BoolP("help", "h", false, "Display help text.")
	pflag.Parse()

	if *help {
		fmt.Fprintln(os.Stderr, "rubymic - feeds a captured microphone into the core daemon's AUDIO stream.")
		pflag.PrintDefaults()
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rubymic: dialing core daemon at %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	if err := portaudio.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "rubymic: initializing portaudio: %v\n", err)
		os.Exit(1)
	}
	defer portaudio.Terminate()

	in := make([]int16, *framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, *sampleRate, len(in), in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rubymic: opening default input stream: %v\n", err)
		os.Exit(1)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "rubymic: starting stream: %v\n", err)
		os.Exit(1)
	}
	defer stream.Stop()

	var seq uint32
	payload := make([]byte, 0, 2*len(in))
	for {
		if err := stream.Read(); err != nil {
			fmt.Fprintf(os.Stderr, "rubymic: stream read: %v\n", err)
			return
		}

		payload = payload[:0]
		for _, sample := range in {
			payload = binary.LittleEndian.AppendUint16(payload, uint16(sample))
		}

		encoded := packet.Encode(packet.EncodeParams{
			Kind:       packet.InterfaceWifi,
			Type:       packet.TypeAudioData,
			Stream:     packet.StreamAudio,
			Index:      seq,
			SrcVehicle: *vehicleID,
			Payload:    payload,
		})
		seq++

		if _, err := conn.Write(encoded); err != nil {
			fmt.Fprintf(os.Stderr, "rubymic: writing to core daemon: %v\n", err)
			return
		}
	}
}
