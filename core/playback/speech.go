package playback

import (
	"context"
	"sync"

	"github.com/koscakluka/ema-voice/core/audio"
)

// Synthesizer turns response text into audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*Speech, error)
}

// Sink plays synthesized speech. Play blocks until the audio has been played
// or ctx is done, in which case it must stop output promptly and return.
type Sink interface {
	Play(ctx context.Context, speech *Speech) error
}

// Speech is a synthesized audio artifact. Whatever backs it (a buffer, a
// temporary file, a pooled allocation) is given back by Release.
type Speech struct {
	Audio        []byte
	EncodingInfo audio.EncodingInfo

	release     func()
	releaseOnce sync.Once
}

func NewSpeech(data []byte, encodingInfo audio.EncodingInfo, release func()) *Speech {
	return &Speech{Audio: data, EncodingInfo: encodingInfo, release: release}
}

// Release frees the artifact. It is safe to call more than once.
func (s *Speech) Release() {
	if s == nil {
		return
	}

	s.releaseOnce.Do(func() {
		if s.release != nil {
			s.release()
		}
		s.Audio = nil
	})
}
