package audio

import "time"

const (
	DefaultSampleRate = 16000
	DefaultFormat     = "linear16"
	// DefaultFrameDuration is the duration of a single capture frame handed to
	// segmentation.
	DefaultFrameDuration = 30 * time.Millisecond
)

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Format: encodingFormat(DefaultFormat)}
}

type EncodingInfo struct {
	SampleRate int
	Format     encodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

func (e EncodingInfo) SilenceValue() byte {
	switch e.Format {
	case EncodingALaw:
		return 0x55
	case EncodingMulaw:
		return 0xFF
	case EncodingLinear16:
		return 0
	}

	return 0
}

// SamplesPer returns how many samples cover d at the encoding's sample rate.
func (e EncodingInfo) SamplesPer(d time.Duration) int {
	return int(int64(e.SampleRate) * int64(d) / int64(time.Second))
}

// BytesPer returns how many bytes cover d, or 0 for containerised formats.
func (e EncodingInfo) BytesPer(d time.Duration) int {
	size := e.Format.ByteSize()
	if size <= 0 {
		return 0
	}
	return e.SamplesPer(d) * size
}

// Duration returns the playback length of n bytes of raw audio.
func (e EncodingInfo) Duration(n int) time.Duration {
	size := e.Format.ByteSize()
	if size <= 0 || e.SampleRate == 0 {
		return 0
	}
	return time.Duration(float64(n) / float64(size) / float64(e.SampleRate) * float64(time.Second))
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

// ByteSize returns the size of one sample, or -1 when the format is a
// compressed container without a fixed sample size.
func (e encodingFormat) ByteSize() int {
	switch e {
	case EncodingMulaw, EncodingALaw:
		return 1
	case EncodingLinear16:
		return 2
	}
	return -1
}

// IsRaw reports whether the format is headerless PCM that can be written to a
// device directly.
func (e encodingFormat) IsRaw() bool { return e.ByteSize() > 0 }

const (
	EncodingMulaw    encodingFormat = "mulaw"
	EncodingALaw     encodingFormat = "alaw"
	EncodingLinear16 encodingFormat = "linear16"
	EncodingMP3      encodingFormat = "mp3"
)

// ParseFormat converts a configured format name to a known format.
func ParseFormat(name string) (encodingFormat, bool) {
	switch f := encodingFormat(name); f {
	case EncodingMulaw, EncodingALaw, EncodingLinear16, EncodingMP3:
		return f, true
	}
	return "", false
}
