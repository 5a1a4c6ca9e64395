// Package beep plays compressed (mp3) speech through the speaker.
package beep

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/playback"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const (
	scopeName         = "github.com/koscakluka/ema-voice/core/audio/beep"
	defaultSampleRate = beep.SampleRate(44100)
	resampleQuality   = 4
)

var (
	logger = otelslog.NewLogger(scopeName)

	ErrUnsupportedEncoding = errors.New("unsupported speech encoding")
)

// Sink plays mp3 speech. The speaker is process wide, so only one Sink
// should exist and it plays one speech at a time.
type Sink struct {
	sampleRate beep.SampleRate

	initOnce sync.Once
	initErr  error
	mu       sync.Mutex
}

func NewSink() *Sink {
	return &Sink{sampleRate: defaultSampleRate}
}

func (s *Sink) Play(ctx context.Context, speech *playback.Speech) error {
	if speech.EncodingInfo.Format != audio.EncodingMP3 {
		return fmt.Errorf("%w: %s", ErrUnsupportedEncoding, speech.EncodingInfo.Format.Name())
	}

	streamer, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(speech.Audio)))
	if err != nil {
		return fmt.Errorf("failed to decode speech: %w", err)
	}
	defer streamer.Close()

	if err := s.init(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var stream beep.Streamer = streamer
	if format.SampleRate != s.sampleRate {
		stream = beep.Resample(resampleQuality, format.SampleRate, s.sampleRate, streamer)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(stream, beep.Callback(func() { close(done) })))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		logger.DebugContext(ctx, "speech playback cleared")
		return ctx.Err()
	}
}

func (s *Sink) init() error {
	s.initOnce.Do(func() {
		if err := speaker.Init(s.sampleRate, s.sampleRate.N(time.Second/10)); err != nil {
			s.initErr = fmt.Errorf("failed to initialize speaker: %w", err)
		}
	})
	return s.initErr
}
