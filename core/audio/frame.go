package audio

import (
	"encoding/binary"
	"time"
)

const pcmMaxAmplitude = 32768.0

// Frame is a fixed-length block of mono linear16 samples captured from an
// audio source.
type Frame struct {
	Samples    []int16
	SampleRate int
	// Timestamp marks the capture time of the first sample.
	Timestamp time.Time
}

func (f Frame) Duration() time.Duration {
	if f.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(f.Samples)) * time.Second / time.Duration(f.SampleRate)
}

// End is the capture time just past the last sample.
func (f Frame) End() time.Time { return f.Timestamp.Add(f.Duration()) }

// Peak returns the absolute peak amplitude normalized to [0, 1].
func (f Frame) Peak() float64 {
	var peak int32
	for _, s := range f.Samples {
		v := int32(s)
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return float64(peak) / pcmMaxAmplitude
}

// Bytes encodes the samples as little-endian linear16.
func (f Frame) Bytes() []byte {
	return SamplesToBytes(f.Samples)
}

func SamplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// BytesToSamples decodes little-endian linear16. A trailing odd byte is
// ignored.
func BytesToSamples(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}
