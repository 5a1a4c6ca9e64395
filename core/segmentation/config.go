package segmentation

import (
	"fmt"
	"time"
)

const (
	DefaultSilenceThreshold     = 0.01
	DefaultMinSpeechDuration    = 100 * time.Millisecond
	DefaultSilenceHangover      = 300 * time.Millisecond
	DefaultMaxUtteranceDuration = 5 * time.Second
	defaultQueueSize            = 8
)

type Config struct {
	// SilenceThreshold is the normalized peak amplitude below which a frame
	// counts as silence.
	SilenceThreshold float64
	// MinSpeechDuration is the buffered audio required before a silence run
	// may end the utterance.
	MinSpeechDuration time.Duration
	// SilenceHangover is the trailing silence that ends an utterance.
	SilenceHangover time.Duration
	// MaxUtteranceDuration caps the buffer; reaching it forces a flush.
	MaxUtteranceDuration time.Duration
	// QueueSize bounds utterances waiting for the handler.
	QueueSize int
}

func DefaultConfig() Config {
	return Config{
		SilenceThreshold:     DefaultSilenceThreshold,
		MinSpeechDuration:    DefaultMinSpeechDuration,
		SilenceHangover:      DefaultSilenceHangover,
		MaxUtteranceDuration: DefaultMaxUtteranceDuration,
		QueueSize:            defaultQueueSize,
	}
}

// withDefaults fills unset fields from [DefaultConfig].
func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.SilenceThreshold <= 0 {
		c.SilenceThreshold = defaults.SilenceThreshold
	}
	if c.MinSpeechDuration <= 0 {
		c.MinSpeechDuration = defaults.MinSpeechDuration
	}
	if c.SilenceHangover <= 0 {
		c.SilenceHangover = defaults.SilenceHangover
	}
	if c.MaxUtteranceDuration <= 0 {
		c.MaxUtteranceDuration = defaults.MaxUtteranceDuration
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaults.QueueSize
	}
	return c
}

func (c Config) Validate() error {
	c = c.withDefaults()
	if c.SilenceThreshold >= 1 {
		return fmt.Errorf("silence threshold must be below 1, got %f", c.SilenceThreshold)
	}
	if c.MinSpeechDuration >= c.MaxUtteranceDuration {
		return fmt.Errorf("min speech duration %s must be shorter than max utterance duration %s",
			c.MinSpeechDuration, c.MaxUtteranceDuration)
	}
	return nil
}
