package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/sashabaranov/go-openai"
)

type fakeChatServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []openai.ChatCompletionRequest
	auth     string
}

func newFakeChatServer(t *testing.T, status int) *fakeChatServer {
	t.Helper()
	s := &fakeChatServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}

		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		s.mu.Lock()
		s.requests = append(s.requests, req)
		s.auth = r.Header.Get("Authorization")
		n := len(s.requests)
		s.mu.Unlock()

		if status != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Model: req.Model,
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleAssistant,
					Content: fmt.Sprintf("  answer %d  ", n),
				},
				FinishReason: openai.FinishReasonStop,
			}},
		})
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *fakeChatServer) request(i int) openai.ChatCompletionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[i]
}

func TestRespondSendsInstructionsAndBoundedHistory(t *testing.T) {
	server := newFakeChatServer(t, http.StatusOK)
	responder, err := NewResponder(
		WithAPIKey("secret"),
		WithBaseURL(server.URL+"/v1/"),
		WithModel("llama3.2"),
		WithInstructions("Be brief."),
		WithHistorySize(1),
	)
	if err != nil {
		t.Fatalf("NewResponder returned error: %v", err)
	}

	for i, prompt := range []string{"first", "second", "third"} {
		response, err := responder.Respond(context.Background(), prompt)
		if err != nil {
			t.Fatalf("Respond returned error: %v", err)
		}
		if want := fmt.Sprintf("answer %d", i+1); response != want {
			t.Fatalf("expected %q, got %q", want, response)
		}
	}

	last := server.request(2)
	if last.Model != "llama3.2" {
		t.Fatalf("unexpected model %q", last.Model)
	}
	roles := []string{}
	contents := []string{}
	for _, msg := range last.Messages {
		roles = append(roles, msg.Role)
		contents = append(contents, msg.Content)
	}
	wantRoles := []string{"system", "user", "assistant", "user"}
	wantContents := []string{"Be brief.", "second", "answer 2", "third"}
	if fmt.Sprint(roles) != fmt.Sprint(wantRoles) || fmt.Sprint(contents) != fmt.Sprint(wantContents) {
		t.Fatalf("unexpected messages roles=%v contents=%v", roles, contents)
	}
	server.mu.Lock()
	auth := server.auth
	server.mu.Unlock()
	if auth != "Bearer secret" {
		t.Fatalf("unexpected authorization %q", auth)
	}
}

func TestRespondDoesNotRememberFailedExchanges(t *testing.T) {
	server := newFakeChatServer(t, http.StatusInternalServerError)
	responder, err := NewResponder(WithBaseURL(server.URL + "/v1"))
	if err != nil {
		t.Fatalf("NewResponder returned error: %v", err)
	}

	if _, err := responder.Respond(context.Background(), "hello"); err == nil {
		t.Fatalf("expected an error from a failing server")
	}
	if history := responder.recentHistory(); len(history) != 0 {
		t.Fatalf("expected no history after a failure, got %v", history)
	}
}

func TestResetForgetsHistory(t *testing.T) {
	server := newFakeChatServer(t, http.StatusOK)
	responder, err := NewResponder(WithBaseURL(server.URL + "/v1"))
	if err != nil {
		t.Fatalf("NewResponder returned error: %v", err)
	}

	if _, err := responder.Respond(context.Background(), "hello"); err != nil {
		t.Fatalf("Respond returned error: %v", err)
	}
	responder.Reset()
	if _, err := responder.Respond(context.Background(), "again"); err != nil {
		t.Fatalf("Respond returned error: %v", err)
	}

	if got := len(server.request(1).Messages); got != 2 {
		t.Fatalf("expected system and user messages only after reset, got %d", got)
	}
}

func TestNewResponderRequiresAPIKeyForDefaultEndpoint(t *testing.T) {
	t.Setenv(apiKeyEnv, "")
	if _, err := NewResponder(); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}
