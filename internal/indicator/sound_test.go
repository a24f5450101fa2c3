package indicator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEveryCueIsRendered(t *testing.T) {
	for _, kind := range []cueKind{cueStart, cueComplete, cueError} {
		require.NotEmpty(t, cuePCM[kind], kind)
	}
	require.Empty(t, cuePCM[cueKind(99)])
}

func TestToneSamplesStartAndEndSilent(t *testing.T) {
	pcm := tone{hz: 440, dur: 100 * time.Millisecond}.samples()
	require.Len(t, pcm, sampleCount(100*time.Millisecond))
	require.Zero(t, pcm[0])
	require.Zero(t, pcm[len(pcm)-1])

	var peak int16
	for _, s := range pcm {
		peak = max(peak, s)
	}
	require.InDelta(t, cueVolume*32767, float64(peak), 400)
}

func TestToneSamplesRejectsDegenerateTones(t *testing.T) {
	require.Empty(t, tone{hz: 0, dur: 100 * time.Millisecond}.samples())
	require.Empty(t, tone{hz: 440}.samples())
}

func TestRenderInsertsGapBetweenTones(t *testing.T) {
	parts := []tone{{hz: 440, dur: 50 * time.Millisecond}, {hz: 660, dur: 50 * time.Millisecond}}
	require.Len(t, render(parts), 2*sampleCount(50*time.Millisecond)+sampleCount(cueGap))
	require.Empty(t, render(nil))
}

func TestSampleCount(t *testing.T) {
	require.Equal(t, 0, sampleCount(-time.Millisecond))
	require.Equal(t, 400, sampleCount(25*time.Millisecond))
}

func TestPlayCueHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, playCue(ctx, cueStart), context.Canceled)
}
