package orchestration

import (
	"context"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/playback"
)

// audioOutput turns a buffered output device into a playback sink. Devices
// like this accept audio without blocking and report playback progress
// through marks, so Play queues the speech, places a mark after it and waits
// for the mark or cancellation. Cancelling clears the device buffer, which
// silences output immediately.
type audioOutput struct {
	base AudioOutput
}

func newAudioOutput(client AudioOutput) *audioOutput {
	if isNilAudioOutput(client) {
		return nil
	}
	return &audioOutput{base: client}
}

func (a *audioOutput) EncodingInfo() audio.EncodingInfo {
	if a == nil {
		return audio.GetDefaultEncodingInfo()
	}
	return a.base.EncodingInfo()
}

func (a *audioOutput) Play(ctx context.Context, speech *playback.Speech) error {
	if a == nil {
		return fmt.Errorf("audio output not configured")
	}

	if deviceEncoding := a.base.EncodingInfo(); speech.EncodingInfo != deviceEncoding {
		return fmt.Errorf("speech encoded as %s at %dHz cannot be played on a %s at %dHz device",
			speech.EncodingInfo.Format.Name(), speech.EncodingInfo.SampleRate,
			deviceEncoding.Format.Name(), deviceEncoding.SampleRate)
	}

	played := make(chan struct{})
	mark := uuid.NewString()
	if err := a.base.SendAudio(speech.Audio); err != nil {
		return fmt.Errorf("failed to send audio to output: %w", err)
	}
	if err := a.base.Mark(mark, func(string) { close(played) }); err != nil {
		a.base.ClearBuffer()
		return fmt.Errorf("failed to mark end of speech: %w", err)
	}

	select {
	case <-played:
		return nil
	case <-ctx.Done():
		a.base.ClearBuffer()
		return ctx.Err()
	}
}

// isNilAudioOutput detects nil and typed-nil interface values so an unset
// device is not wrapped into a sink.
func isNilAudioOutput(client AudioOutput) bool {
	if client == nil {
		return true
	}

	v := reflect.ValueOf(client)
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return v.IsNil()
	default:
		return false
	}
}
