package indicator

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jfreymuth/pulse"
)

type cueKind int

const (
	cueStart cueKind = iota + 1
	cueComplete
	cueError
)

const (
	cueSampleRate = 16000
	cueTimeout    = 2 * time.Second
	cueGap        = 22 * time.Millisecond
	cueVolume     = 0.18
)

// tone is one enveloped sine segment of a cue.
type tone struct {
	hz  float64
	dur time.Duration
}

// Rising pair on connect, falling pair on error.
var cueTones = map[cueKind][]tone{
	cueStart:    {{hz: 660, dur: 60 * time.Millisecond}, {hz: 880, dur: 60 * time.Millisecond}, {hz: 1320, dur: 80 * time.Millisecond}},
	cueComplete: {{hz: 988, dur: 70 * time.Millisecond}, {hz: 740, dur: 110 * time.Millisecond}},
	cueError:    {{hz: 440, dur: 90 * time.Millisecond}, {hz: 330, dur: 120 * time.Millisecond}},
}

var cuePCM = renderCues(cueTones)

func renderCues(tones map[cueKind][]tone) map[cueKind][]int16 {
	out := make(map[cueKind][]int16, len(tones))
	for kind, parts := range tones {
		out[kind] = render(parts)
	}
	return out
}

// render concatenates parts separated by cueGap of silence.
func render(parts []tone) []int16 {
	var pcm []int16
	gap := make([]int16, sampleCount(cueGap))
	for i, part := range parts {
		if i > 0 {
			pcm = append(pcm, gap...)
		}
		pcm = append(pcm, part.samples()...)
	}
	return pcm
}

// samples renders the tone with a short linear attack and release so the
// segment starts and ends at zero.
func (t tone) samples() []int16 {
	n := sampleCount(t.dur)
	if n == 0 || t.hz <= 0 {
		return nil
	}
	edge := max(min(n/10, cueSampleRate/200), 1)

	out := make([]int16, n)
	for i := range out {
		gain := math.Min(1, math.Min(float64(i)/float64(edge), float64(n-1-i)/float64(edge)))
		phase := 2 * math.Pi * t.hz * float64(i) / cueSampleRate
		out[i] = int16(math.Round(math.Sin(phase) * cueVolume * gain * math.MaxInt16))
	}
	return out
}

func sampleCount(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * cueSampleRate))
}

// playCue plays kind on the default Pulse sink, giving up after cueTimeout.
func playCue(ctx context.Context, kind cueKind) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pcm := cuePCM[kind]
	if len(pcm) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, cueTimeout)
	defer cancel()
	result := make(chan error, 1)
	go func() { result <- drain(pcm) }()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return fmt.Errorf("play cue: %w", ctx.Err())
	}
}

// drain blocks until pcm has been played.
func drain(pcm []int16) error {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("cloudprep"),
		pulse.ClientApplicationIconName("call-start"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	remaining := pcm
	source := pulse.Int16Reader(func(buf []int16) (int, error) {
		n := copy(buf, remaining)
		remaining = remaining[n:]
		if len(remaining) == 0 {
			return n, pulse.EndOfData
		}
		return n, nil
	})

	stream, err := client.NewPlayback(source,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(cueSampleRate),
		pulse.PlaybackLatency(0.02),
		pulse.PlaybackMediaName("cloudprep call cue"),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play cue stream: %w", err)
	}
	return nil
}
