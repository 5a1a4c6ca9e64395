// Package openai answers prompts with any OpenAI compatible chat completion
// API (OpenAI itself, Ollama, ...). A bounded window of past exchanges is sent
// along with every prompt.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultModel        = openai.GPT4oMini
	DefaultHistorySize  = 10
	DefaultInstructions = "You are a helpful voice assistant. Answer in one to three short " +
		"spoken sentences without markdown, lists or emojis."

	apiKeyEnv = "OPENAI_API_KEY"
)

var (
	ErrMissingAPIKey = errors.New("openai api key not found")
	ErrEmptyResponse = errors.New("model returned no choices")
)

type Responder struct {
	client       *openai.Client
	model        string
	instructions string
	historySize  int
	maxTokens    int

	history   []exchange
	historyMu sync.Mutex
}

type responderConfig struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

type ResponderOption func(*Responder, *responderConfig)

func WithAPIKey(apiKey string) ResponderOption {
	return func(_ *Responder, c *responderConfig) { c.apiKey = apiKey }
}

// WithBaseURL points the responder at another OpenAI compatible server. No
// API key is required then, Ollama for example ignores it.
func WithBaseURL(baseURL string) ResponderOption {
	return func(_ *Responder, c *responderConfig) { c.baseURL = baseURL }
}

func WithHTTPClient(client *http.Client) ResponderOption {
	return func(_ *Responder, c *responderConfig) { c.httpClient = client }
}

func WithModel(model string) ResponderOption {
	return func(r *Responder, _ *responderConfig) {
		if model != "" {
			r.model = model
		}
	}
}

// WithInstructions sets the system prompt.
func WithInstructions(instructions string) ResponderOption {
	return func(r *Responder, _ *responderConfig) { r.instructions = instructions }
}

// WithHistorySize bounds how many past exchanges are sent with a prompt.
// Zero disables history.
func WithHistorySize(size int) ResponderOption {
	return func(r *Responder, _ *responderConfig) {
		if size >= 0 {
			r.historySize = size
		}
	}
}

func WithMaxTokens(maxTokens int) ResponderOption {
	return func(r *Responder, _ *responderConfig) { r.maxTokens = maxTokens }
}

func NewResponder(opts ...ResponderOption) (*Responder, error) {
	r := &Responder{
		model:        DefaultModel,
		instructions: DefaultInstructions,
		historySize:  DefaultHistorySize,
	}
	config := responderConfig{
		apiKey:     os.Getenv(apiKeyEnv),
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(r, &config)
	}

	if config.apiKey == "" && config.baseURL == "" {
		return nil, ErrMissingAPIKey
	}

	clientConfig := openai.DefaultConfig(config.apiKey)
	if config.baseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(config.baseURL, "/")
	}
	if config.httpClient != nil {
		clientConfig.HTTPClient = config.httpClient
	}
	r.client = openai.NewClientWithConfig(clientConfig)

	return r, nil
}

// Respond answers prompt. Only successful exchanges are remembered.
func (r *Responder) Respond(ctx context.Context, prompt string) (string, error) {
	ctx, span := tracer.Start(ctx, "openai respond", trace.WithAttributes(
		attribute.String("openai.model", r.model),
		attribute.Int("prompt.length", len(prompt)),
	))
	defer span.End()

	messages := toChatMessages(r.instructions, r.recentHistory(), prompt)
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     r.model,
		Messages:  messages,
		MaxTokens: r.maxTokens,
	})
	if err != nil {
		err = fmt.Errorf("failed to create chat completion: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "chat completion failed")
		return "", err
	}
	if len(resp.Choices) == 0 {
		span.RecordError(ErrEmptyResponse)
		span.SetStatus(codes.Error, ErrEmptyResponse.Error())
		return "", ErrEmptyResponse
	}

	response := strings.TrimSpace(resp.Choices[0].Message.Content)
	span.SetAttributes(
		attribute.Int("response.length", len(response)),
		attribute.Int("usage.total_tokens", resp.Usage.TotalTokens),
	)
	logger.DebugContext(ctx, "response generated",
		"model", r.model,
		"finish_reason", string(resp.Choices[0].FinishReason),
		"history", len(messages))

	if response != "" {
		r.remember(exchange{prompt: prompt, response: response})
	}
	return response, nil
}

// Reset forgets all past exchanges.
func (r *Responder) Reset() {
	r.historyMu.Lock()
	defer r.historyMu.Unlock()
	r.history = nil
}

func (r *Responder) recentHistory() []exchange {
	r.historyMu.Lock()
	defer r.historyMu.Unlock()
	return append([]exchange(nil), r.history...)
}

func (r *Responder) remember(turn exchange) {
	if r.historySize == 0 {
		return
	}

	r.historyMu.Lock()
	defer r.historyMu.Unlock()
	r.history = append(r.history, turn)
	if overflow := len(r.history) - r.historySize; overflow > 0 {
		r.history = append([]exchange(nil), r.history[overflow:]...)
	}
}
