package audio

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// Speaker plays PCM written to it on the default Pulse sink. Gaps between
// writes are filled with silence.
type Speaker struct {
	client *pulse.Client
	stream *pulse.PlaybackStream
	queue  *pcmQueue
}

// OpenSpeaker starts a 16kHz mono s16 playback stream.
func OpenSpeaker() (*Speaker, error) {
	client, err := newClient("audio-speakers")
	if err != nil {
		return nil, err
	}

	queue := newPCMQueue()
	stream, err := client.NewPlayback(
		pulse.NewReader(queue, pulseproto.FormatInt16LE),
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(SampleRate),
		pulse.PlaybackLatency(0.1),
		pulse.PlaybackMediaName("cloudprep interviewer"),
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("create pulse playback stream: %w", err)
	}
	stream.Start()

	return &Speaker{client: client, stream: stream, queue: queue}, nil
}

// Write queues PCM for playback.
func (s *Speaker) Write(pcm []byte) (int, error) {
	return s.queue.Write(pcm)
}

// Close stops playback and releases the Pulse connection.
func (s *Speaker) Close() error {
	s.queue.Close()
	s.stream.Stop()
	s.stream.Close()
	s.client.Close()
	return nil
}

var errQueueClosed = errors.New("playback queue closed")

// pcmQueue never blocks the Pulse reader: an empty queue reads as silence.
type pcmQueue struct {
	mu     sync.Mutex
	buf    []byte
	closed bool
}

func newPCMQueue() *pcmQueue {
	return &pcmQueue{}
}

func (q *pcmQueue) Write(pcm []byte) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return 0, errQueueClosed
	}
	q.buf = append(q.buf, pcm...)
	return len(pcm), nil
}

func (q *pcmQueue) Read(out []byte) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return 0, io.EOF
	}

	n := copy(out, q.buf)
	q.buf = q.buf[n:]
	clear(out[n:])
	return len(out), nil
}

func (q *pcmQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.buf = nil
}
