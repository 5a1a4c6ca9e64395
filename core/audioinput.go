package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/koscakluka/ema-voice/core/audio"
)

var ErrAudioInputRunning = errors.New("audio input already capturing")

type audioInput struct {
	// base stores the configured capture device.
	base AudioSource

	frameDuration time.Duration
	// isCapturing reports whether the device is currently streaming.
	isCapturing atomic.Bool
	// closed makes Close idempotent.
	closed atomic.Bool
	// framer is set while capturing.
	framer atomic.Pointer[audio.Framer]

	// onFrame receives fixed-size frames cut from the device stream.
	onFrame func(audio.Frame)
}

func newAudioInput(client AudioSource, onFrame func(audio.Frame)) *audioInput {
	if onFrame == nil {
		onFrame = func(audio.Frame) {}
	}

	return &audioInput{
		base:          client,
		frameDuration: audio.DefaultFrameDuration,
		onFrame:       onFrame,
	}
}

func (a *audioInput) Set(client AudioSource) {
	if a != nil {
		a.base = client
	}
}

func (a *audioInput) IsConfigured() bool { return a != nil && a.base != nil }
func (a *audioInput) IsCapturing() bool  { return a != nil && a.isCapturing.Load() }

func (a *audioInput) EncodingInfo() audio.EncodingInfo {
	if !a.IsConfigured() {
		return audio.GetDefaultEncodingInfo()
	}
	return a.base.EncodingInfo()
}

// Run streams from the device until ctx is done, cutting the stream into
// frames for segmentation.
func (a *audioInput) Run(ctx context.Context) error {
	if !a.IsConfigured() {
		return nil
	}

	encodingInfo := a.EncodingInfo()
	if encodingInfo.Format != audio.EncodingLinear16 {
		return fmt.Errorf("audio input must deliver linear16, got %s", encodingInfo.Format.Name())
	}

	if !a.isCapturing.CompareAndSwap(false, true) {
		return ErrAudioInputRunning
	}
	defer a.isCapturing.Store(false)

	framer := audio.NewFramer(encodingInfo, a.frameDuration, a.onFrame)
	a.framer.Store(framer)
	defer a.framer.Store(nil)
	if err := a.base.Stream(ctx, framer.Write); err != nil && ctx.Err() == nil {
		return fmt.Errorf("audio input stopped: %w", err)
	}

	return nil
}

// Reset drops the partial frame held between device callbacks.
func (a *audioInput) Reset() {
	if a == nil {
		return
	}
	if framer := a.framer.Load(); framer != nil {
		framer.Reset()
	}
}

func (a *audioInput) Close() {
	if !a.IsConfigured() || !a.closed.CompareAndSwap(false, true) {
		return
	}
	a.base.Close()
}
