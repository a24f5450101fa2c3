package audio

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// Microphone streams PCM from one Pulse source.
type Microphone struct {
	device Device
}

// NewMicrophone returns a microphone bound to the selected device.
func NewMicrophone(device Device) *Microphone {
	return &Microphone{device: device}
}

// Device returns the bound device.
func (m *Microphone) Device() Device {
	return m.device
}

// Stream records 16kHz mono s16 audio and hands fixed 20ms frames to send
// until ctx is cancelled or send fails.
func (m *Microphone) Stream(ctx context.Context, send func(pcm []byte) error) error {
	client, err := newClient("audio-input-microphone")
	if err != nil {
		return err
	}
	defer client.Close()

	source, err := client.SourceByID(m.device.ID)
	if err != nil {
		return fmt.Errorf("resolve source %q: %w", m.device.ID, err)
	}

	framer := newFramer(frameBytes, send)
	stream, err := client.NewRecord(
		pulse.NewWriter(framer, pulseproto.FormatInt16LE),
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(SampleRate),
		pulse.RecordBufferFragmentSize(frameBytes),
		pulse.RecordMediaName("cloudprep interview"),
	)
	if err != nil {
		return fmt.Errorf("create pulse record stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	select {
	case <-ctx.Done():
	case <-framer.failed:
	}
	stream.Stop()
	return framer.Err()
}

// framer regroups arbitrary Pulse buffers into fixed-size frames.
type framer struct {
	size int
	send func([]byte) error

	mu      sync.Mutex
	pending []byte
	err     error
	failed  chan struct{}
}

func newFramer(size int, send func([]byte) error) *framer {
	return &framer{size: size, send: send, failed: make(chan struct{})}
}

func (f *framer) Write(buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, io.EOF
	}

	f.pending = append(f.pending, buf...)
	for len(f.pending) >= f.size {
		frame := make([]byte, f.size)
		copy(frame, f.pending[:f.size])
		f.pending = f.pending[f.size:]
		if err := f.send(frame); err != nil {
			f.err = err
			close(f.failed)
			return 0, io.EOF
		}
	}
	return len(buf), nil
}

// Err returns the first send failure.
func (f *framer) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}
