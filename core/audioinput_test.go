package orchestration

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/koscakluka/ema-voice/core/audio"
)

func TestAudioInputResetDropsPartialFrame(t *testing.T) {
	source := &callbackAudioSource{}
	var frames atomic.Int32
	input := newAudioInput(source, func(audio.Frame) { frames.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- input.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()
	waitFor(t, func() bool { return source.onAudio.Load() != nil }, "audio stream to start")

	frameBytes := audio.GetDefaultEncodingInfo().SamplesPer(audio.DefaultFrameDuration) * 2
	half := make([]byte, frameBytes/2+2)
	write := *source.onAudio.Load()

	write(half)
	input.Reset()
	write(half)
	if got := frames.Load(); got != 0 {
		t.Fatalf("expected the partial frame to be dropped on reset, got %d frames", got)
	}

	write(half)
	if got := frames.Load(); got != 1 {
		t.Fatalf("expected a frame once enough audio arrived, got %d frames", got)
	}
}

func TestAudioInputResetWithoutCaptureIsNoop(t *testing.T) {
	newAudioInput(nil, nil).Reset()
}

// callbackAudioSource hands the frame callback to the test.
type callbackAudioSource struct {
	onAudio atomic.Pointer[func([]byte)]
}

func (s *callbackAudioSource) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}

func (s *callbackAudioSource) Close() {}

func (s *callbackAudioSource) Stream(ctx context.Context, onAudio func([]byte)) error {
	s.onAudio.Store(&onAudio)
	<-ctx.Done()
	return nil
}
