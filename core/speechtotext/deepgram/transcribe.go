// Package deepgram transcribes complete utterances with Deepgram's live
// transcription websocket.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/speechtotext"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultListenURL = "wss://api.deepgram.com/v1/listen"
	apiKeyEnv        = "DEEPGRAM_API_KEY"

	// chunkSize keeps individual websocket messages small, about 250ms of
	// 16kHz linear16 audio.
	chunkSize = 8000
)

var ErrMissingAPIKey = errors.New("deepgram api key not found")

// TranscriptionClient opens one websocket per utterance: the audio is sent,
// the stream is closed and the final segments are joined into the
// transcript.
type TranscriptionClient struct {
	apiKey    string
	listenURL string
	dialer    *websocket.Dialer
	options   speechtotext.TranscriptionOptions
}

type ClientOption func(*TranscriptionClient)

// WithAPIKey overrides the key read from DEEPGRAM_API_KEY.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *TranscriptionClient) { c.apiKey = apiKey }
}

func WithListenURL(listenURL string) ClientOption {
	return func(c *TranscriptionClient) { c.listenURL = listenURL }
}

func WithTranscriptionOptions(opts ...speechtotext.TranscriptionOption) ClientOption {
	return func(c *TranscriptionClient) {
		for _, opt := range opts {
			opt(&c.options)
		}
	}
}

func NewTranscriptionClient(opts ...ClientOption) (*TranscriptionClient, error) {
	client := &TranscriptionClient{
		apiKey:    os.Getenv(apiKeyEnv),
		listenURL: DefaultListenURL,
		dialer:    websocket.DefaultDialer,
		options:   speechtotext.DefaultTranscriptionOptions(),
	}
	for _, opt := range opts {
		opt(client)
	}

	if client.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if _, err := url.Parse(client.listenURL); err != nil {
		return nil, fmt.Errorf("invalid listen url: %w", err)
	}

	return client, nil
}

func (c *TranscriptionClient) Transcribe(ctx context.Context, data []byte, encodingInfo audio.EncodingInfo) (string, error) {
	ctx, span := tracer.Start(ctx, "deepgram transcribe", trace.WithAttributes(
		attribute.Int("audio.bytes", len(data)),
		attribute.String("deepgram.model", c.options.Model),
	))
	defer span.End()

	transcript, err := c.transcribe(ctx, data, encodingInfo)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transcription failed")
		return "", err
	}

	return transcript, nil
}

func (c *TranscriptionClient) transcribe(ctx context.Context, data []byte, encodingInfo audio.EncodingInfo) (string, error) {
	if err := checkEncoding(encodingInfo); err != nil {
		return "", fmt.Errorf("invalid encoding: %w", err)
	}

	conn, err := c.connect(ctx, encodingInfo)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	// Unblocks reads and writes once the caller gives up
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	results := make(chan transcriptResult, 1)
	go func() { results <- c.readTranscript(conn) }()

	if err := sendAudio(conn, data); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", err
	}

	result := <-results
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	return result.transcript, result.err
}

func (c *TranscriptionClient) connect(ctx context.Context, encodingInfo audio.EncodingInfo) (*websocket.Conn, error) {
	listenURL, err := url.Parse(c.listenURL)
	if err != nil {
		return nil, fmt.Errorf("invalid listen url: %w", err)
	}

	queryParams := listenURL.Query()
	queryParams.Set("encoding", encodingInfo.Format.Name())
	queryParams.Set("sample_rate", strconv.Itoa(encodingInfo.SampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", c.options.Model)
	queryParams.Set("language", c.options.Language)
	queryParams.Set("smart_format", strconv.FormatBool(c.options.SmartFormat))
	listenURL.RawQuery = queryParams.Encode()

	conn, resp, err := c.dialer.DialContext(ctx, listenURL.String(),
		http.Header{"Authorization": {"Token " + c.apiKey}})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to open socket connection to deepgram (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}

func sendAudio(conn *websocket.Conn, data []byte) error {
	for len(data) > 0 {
		n := min(chunkSize, len(data))
		if err := conn.WriteMessage(websocket.BinaryMessage, data[:n]); err != nil {
			return fmt.Errorf("failed to write to deepgram client: %w", err)
		}
		data = data[n:]
	}

	if err := conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: string(api.TypeCloseStreamResponse)}); err != nil {
		return fmt.Errorf("failed to close deepgram stream: %w", err)
	}
	return nil
}

type transcriptResult struct {
	transcript string
	err        error
}

// readTranscript collects final segments until Deepgram sends the closing
// metadata or closes the connection.
func (c *TranscriptionClient) readTranscript(conn *websocket.Conn) transcriptResult {
	var segments []string
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return transcriptResult{transcript: strings.Join(segments, " ")}
			}
			return transcriptResult{err: fmt.Errorf("failed to read deepgram websocket message: %w", err)}
		}
		if msgType == websocket.BinaryMessage {
			continue
		}

		segment, done, err := parseMessage(msg)
		if err != nil {
			if done {
				return transcriptResult{err: err}
			}
			logger.Warn("failed to parse deepgram message", "error", err)
			continue
		}
		if segment != "" {
			segments = append(segments, segment)
			if callback := c.options.PartialTranscriptionCallback; callback != nil {
				callback(segment)
			}
		}
		if done {
			return transcriptResult{transcript: strings.Join(segments, " ")}
		}
	}
}

// parseMessage returns the final transcript segment carried by msg, if any,
// and whether msg ends the stream.
func parseMessage(msg []byte) (string, bool, error) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		return "", false, err
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			return "", false, err
		}
		if !msgResp.IsFinal || len(msgResp.Channel.Alternatives) == 0 {
			return "", false, nil
		}
		return strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript), false, nil

	case api.TypeMetadataResponse:
		return "", true, nil

	case "Error":
		var errResp struct {
			Description string `json:"description"`
			Message     string `json:"message"`
		}
		_ = json.Unmarshal(msg, &errResp)
		return "", true, fmt.Errorf("deepgram error: %s %s", errResp.Description, errResp.Message)
	}

	return "", false, nil
}
