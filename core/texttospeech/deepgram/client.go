// Package deepgram synthesizes speech with Deepgram's text-to-speech REST
// endpoint.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strconv"

	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/playback"
	"github.com/koscakluka/ema-voice/core/texttospeech"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultSpeakURL = "https://api.deepgram.com/v1/speak"
	apiKeyEnv       = "DEEPGRAM_API_KEY"
	maxSpeechBytes  = 32 << 20
)

var (
	ErrMissingAPIKey = errors.New("deepgram api key not found")
	ErrInvalidVoice  = errors.New("invalid voice")
)

type TextToSpeechClient struct {
	apiKey     string
	speakURL   string
	httpClient *http.Client
	options    texttospeech.TextToSpeechOptions

	voice deepgramVoice
}

type ClientOption func(*TextToSpeechClient)

// WithAPIKey overrides the key read from DEEPGRAM_API_KEY.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *TextToSpeechClient) { c.apiKey = apiKey }
}

func WithSpeakURL(speakURL string) ClientOption {
	return func(c *TextToSpeechClient) { c.speakURL = speakURL }
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *TextToSpeechClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithTextToSpeechOptions(opts ...texttospeech.TextToSpeechOption) ClientOption {
	return func(c *TextToSpeechClient) {
		for _, opt := range opts {
			opt(&c.options)
		}
	}
}

func NewTextToSpeechClient(voice deepgramVoice, opts ...ClientOption) (*TextToSpeechClient, error) {
	if voice == "" {
		voice = defaultVoice
	}
	if !slices.Contains(GetAvailableVoices(), voice) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVoice, voice)
	}

	client := &TextToSpeechClient{
		apiKey:     os.Getenv(apiKeyEnv),
		speakURL:   DefaultSpeakURL,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		options:    texttospeech.TextToSpeechOptions{EncodingInfo: audio.GetDefaultEncodingInfo()},
		voice:      voice,
	}
	for _, opt := range opts {
		opt(client)
	}

	if client.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if _, err := url.Parse(client.speakURL); err != nil {
		return nil, fmt.Errorf("invalid speak url: %w", err)
	}

	return client, nil
}

func (c *TextToSpeechClient) SetVoice(voice deepgramVoice) {
	c.voice = voice
}

func (c *TextToSpeechClient) EncodingInfo() audio.EncodingInfo {
	return c.options.EncodingInfo
}

// Synthesize requests the whole speech for text in one round trip.
func (c *TextToSpeechClient) Synthesize(ctx context.Context, text string) (*playback.Speech, error) {
	ctx, span := tracer.Start(ctx, "deepgram synthesize", trace.WithAttributes(
		attribute.String("deepgram.voice", string(c.voice)),
		attribute.Int("text.length", len(text)),
	))
	defer span.End()

	data, err := c.synthesize(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "synthesis failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("audio.bytes", len(data)))
	return playback.NewSpeech(data, c.options.EncodingInfo, nil), nil
}

func (c *TextToSpeechClient) synthesize(ctx context.Context, text string) ([]byte, error) {
	requestURL, err := c.requestURL()
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(struct {
		Text string `json:"text"`
	}{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to request speech: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("deepgram speak returned %s: %s", resp.Status, bytes.TrimSpace(msg))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSpeechBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read speech: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("deepgram speak returned no audio")
	}

	logger.DebugContext(ctx, "speech synthesized", "voice", c.voice, "bytes", len(data))
	return data, nil
}

func (c *TextToSpeechClient) requestURL() (string, error) {
	speakURL, err := url.Parse(c.speakURL)
	if err != nil {
		return "", fmt.Errorf("invalid speak url: %w", err)
	}

	encodingInfo := c.options.EncodingInfo
	urlValues := speakURL.Query()
	urlValues.Set("model", string(c.voice))
	urlValues.Set("encoding", encodingInfo.Format.Name())
	if encodingInfo.Format.IsRaw() {
		urlValues.Set("sample_rate", strconv.Itoa(encodingInfo.SampleRate))
		urlValues.Set("container", "none")
	}
	speakURL.RawQuery = urlValues.Encode()

	return speakURL.String(), nil
}
