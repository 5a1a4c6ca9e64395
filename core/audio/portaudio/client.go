// Package portaudio captures and plays linear16 audio through PortAudio's
// blocking stream API.
package portaudio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/playback"
)

var ErrEncodingMismatch = errors.New("speech encoding does not match the output stream")

// Client owns one input and one output stream so capture and playback never
// share a blocking stream between goroutines.
type Client struct {
	bufferSize   int
	encodingInfo audio.EncodingInfo

	input *portaudio.Stream
	in    []int16

	output   *portaudio.Stream
	out      []int16
	outputMu sync.Mutex

	closeOnce sync.Once
}

// NewClient opens the default devices. bufferSize is in samples per read and
// write.
func NewClient(bufferSize int) (*Client, error) {
	if bufferSize <= 0 {
		return nil, fmt.Errorf("invalid buffer size %d", bufferSize)
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	encodingInfo := audio.GetDefaultEncodingInfo()
	c := &Client{
		bufferSize:   bufferSize,
		encodingInfo: encodingInfo,
		in:           make([]int16, bufferSize),
		out:          make([]int16, bufferSize),
	}

	var err error
	if c.input, err = portaudio.OpenDefaultStream(1, 0, float64(encodingInfo.SampleRate), bufferSize, c.in); err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open PortAudio input stream: %w", err)
	}
	if c.output, err = portaudio.OpenDefaultStream(0, 1, float64(encodingInfo.SampleRate), bufferSize, c.out); err != nil {
		c.input.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open PortAudio output stream: %w", err)
	}

	return c, nil
}

func (c *Client) EncodingInfo() audio.EncodingInfo { return c.encodingInfo }

// Stream reads from the input device until ctx is done.
func (c *Client) Stream(ctx context.Context, onAudio func(audio []byte)) error {
	if err := c.input.Start(); err != nil {
		return fmt.Errorf("failed to start PortAudio input stream: %w", err)
	}
	defer c.input.Stop()
	logger.InfoContext(ctx, "microphone capture started", "sample_rate", c.encodingInfo.SampleRate)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := c.input.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				logger.DebugContext(ctx, "input overflowed")
				continue
			}
			return fmt.Errorf("failed to read from PortAudio stream: %w", err)
		}
		onAudio(audio.SamplesToBytes(c.in))
	}
}

// Play writes speech to the output device, checking ctx between buffers so
// a cancelled playback stops after at most one buffer.
func (c *Client) Play(ctx context.Context, speech *playback.Speech) error {
	if speech.EncodingInfo != c.encodingInfo {
		return fmt.Errorf("%w: got %s at %d Hz", ErrEncodingMismatch, speech.EncodingInfo.Format.Name(), speech.EncodingInfo.SampleRate)
	}

	c.outputMu.Lock()
	defer c.outputMu.Unlock()

	if err := c.output.Start(); err != nil {
		return fmt.Errorf("failed to start PortAudio output stream: %w", err)
	}
	defer c.output.Stop()

	samples := audio.BytesToSamples(speech.Audio)
	for len(samples) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		n := copy(c.out, samples)
		clear(c.out[n:])
		samples = samples[n:]

		if err := c.output.Write(); err != nil {
			if errors.Is(err, portaudio.OutputUnderflowed) {
				continue
			}
			return fmt.Errorf("failed to write to PortAudio stream: %w", err)
		}
	}

	return nil
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		errs := errors.Join(c.input.Close(), c.output.Close(), portaudio.Terminate())
		if errs != nil {
			logger.Warn("failed to close PortAudio", "error", errs)
		}
	})
}
