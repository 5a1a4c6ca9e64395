package audio

import (
	"sync"
	"time"
)

// maxClockDrift is how far the sample clock may run behind the wall clock
// before it is resynchronised (e.g. after capture was stopped and restarted).
const maxClockDrift = 500 * time.Millisecond

// Framer splits an arbitrary linear16 byte stream into fixed-size frames.
// Device callbacks hand over whatever the driver produced; segmentation wants
// frames of a constant duration.
type Framer struct {
	mu sync.Mutex

	frameSamples int
	sampleRate   int
	leftover     []byte
	clock        time.Time
	now          func() time.Time

	onFrame func(Frame)
}

func NewFramer(encodingInfo EncodingInfo, frameDuration time.Duration, onFrame func(Frame)) *Framer {
	if encodingInfo.IsZero() {
		encodingInfo = GetDefaultEncodingInfo()
	}
	if frameDuration <= 0 {
		frameDuration = DefaultFrameDuration
	}
	if onFrame == nil {
		onFrame = func(Frame) {}
	}

	return &Framer{
		frameSamples: encodingInfo.SamplesPer(frameDuration),
		sampleRate:   encodingInfo.SampleRate,
		now:          time.Now,
		onFrame:      onFrame,
	}
}

// Write consumes a chunk of linear16 audio and emits every complete frame.
func (f *Framer) Write(pcm []byte) {
	frameBytes := f.frameSamples * 2
	if frameBytes == 0 {
		return
	}

	f.mu.Lock()
	now := f.now()
	if f.clock.IsZero() || now.Sub(f.clock) > maxClockDrift {
		// NOTE: The clock starts at the time of the first chunk, which lags the
		// real capture time by the driver period
		f.clock = now
	}

	// The device buffer is reused by the driver once the callback returns
	buffered := append(f.leftover, pcm...)
	frames := make([]Frame, 0, len(buffered)/frameBytes)
	for len(buffered) >= frameBytes {
		frame := Frame{
			Samples:    BytesToSamples(buffered[:frameBytes]),
			SampleRate: f.sampleRate,
			Timestamp:  f.clock,
		}
		f.clock = frame.End()
		frames = append(frames, frame)
		buffered = buffered[frameBytes:]
	}
	f.leftover = append([]byte(nil), buffered...)
	f.mu.Unlock()

	for _, frame := range frames {
		f.onFrame(frame)
	}
}

// Reset drops any partial frame and restarts the sample clock.
func (f *Framer) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leftover = nil
	f.clock = time.Time{}
}
