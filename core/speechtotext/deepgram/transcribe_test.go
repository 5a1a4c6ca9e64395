package deepgram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/speechtotext"
)

type fakeListenServer struct {
	*httptest.Server

	mu            sync.Mutex
	authorization string
	query         map[string]string
	audioBytes    int
	closed        bool
}

// newFakeListenServer answers every stream with messages once the client
// closes the stream. A nil messages slice makes the server hang.
func newFakeListenServer(t *testing.T, messages []string) *fakeListenServer {
	t.Helper()
	upgrader := websocket.Upgrader{}
	s := &fakeListenServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.authorization = r.Header.Get("Authorization")
		s.query = map[string]string{}
		for key := range r.URL.Query() {
			s.query[key] = r.URL.Query().Get(key)
		}
		s.mu.Unlock()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			msgType, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msgType == websocket.BinaryMessage {
				s.mu.Lock()
				s.audioBytes += len(msg)
				s.mu.Unlock()
				continue
			}
			if strings.Contains(string(msg), "CloseStream") {
				s.mu.Lock()
				s.closed = true
				s.mu.Unlock()
				break
			}
		}

		if messages == nil {
			_, _, _ = conn.ReadMessage()
			return
		}
		for _, msg := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *fakeListenServer) listenURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/v1/listen"
}

func results(transcript string, isFinal bool) string {
	final := "false"
	if isFinal {
		final = "true"
	}
	return `{"type":"Results","is_final":` + final + `,"channel":{"alternatives":[{"transcript":"` + transcript + `"}]}}`
}

func newTestClient(t *testing.T, server *fakeListenServer, opts ...ClientOption) *TranscriptionClient {
	t.Helper()
	opts = append([]ClientOption{WithAPIKey("secret"), WithListenURL(server.listenURL())}, opts...)
	client, err := NewTranscriptionClient(opts...)
	if err != nil {
		t.Fatalf("NewTranscriptionClient returned error: %v", err)
	}
	return client
}

func TestTranscribeJoinsFinalSegments(t *testing.T) {
	server := newFakeListenServer(t, []string{
		results("what", false),
		results("What time", true),
		results("is it?", true),
		`{"type":"Metadata"}`,
	})

	var partials []string
	client := newTestClient(t, server, WithTranscriptionOptions(
		speechtotext.WithModel("nova-2"),
		speechtotext.WithPartialTranscriptionCallback(func(transcript string) {
			partials = append(partials, transcript)
		}),
	))

	data := make([]byte, 20000)
	transcript, err := client.Transcribe(context.Background(), data, audio.GetDefaultEncodingInfo())
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if transcript != "What time is it?" {
		t.Fatalf("unexpected transcript %q", transcript)
	}
	if len(partials) != 2 {
		t.Fatalf("expected 2 partial transcripts, got %v", partials)
	}

	server.mu.Lock()
	defer server.mu.Unlock()
	if server.authorization != "Token secret" {
		t.Fatalf("unexpected authorization header %q", server.authorization)
	}
	if server.audioBytes != len(data) {
		t.Fatalf("expected %d audio bytes, server got %d", len(data), server.audioBytes)
	}
	if !server.closed {
		t.Fatalf("expected the stream to be closed")
	}
	if server.query["model"] != "nova-2" || server.query["encoding"] != "linear16" || server.query["sample_rate"] != "16000" {
		t.Fatalf("unexpected query %v", server.query)
	}
}

func TestTranscribeReturnsSegmentsOnNormalClose(t *testing.T) {
	server := newFakeListenServer(t, []string{results("hello", true)})
	client := newTestClient(t, server)

	transcript, err := client.Transcribe(context.Background(), []byte{0, 0}, audio.GetDefaultEncodingInfo())
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if transcript != "hello" {
		t.Fatalf("unexpected transcript %q", transcript)
	}
}

func TestTranscribeReportsDeepgramErrors(t *testing.T) {
	server := newFakeListenServer(t, []string{`{"type":"Error","description":"bad audio"}`})
	client := newTestClient(t, server)

	_, err := client.Transcribe(context.Background(), []byte{0, 0}, audio.GetDefaultEncodingInfo())
	if err == nil || !strings.Contains(err.Error(), "bad audio") {
		t.Fatalf("expected deepgram error, got %v", err)
	}
}

func TestTranscribeStopsWhenContextEnds(t *testing.T) {
	server := newFakeListenServer(t, nil)
	client := newTestClient(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Transcribe(ctx, []byte{0, 0}, audio.GetDefaultEncodingInfo())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("transcription did not stop promptly, took %v", elapsed)
	}
}

func TestTranscribeRejectsUnsupportedEncoding(t *testing.T) {
	server := newFakeListenServer(t, []string{})
	client := newTestClient(t, server)

	_, err := client.Transcribe(context.Background(), []byte{0}, audio.EncodingInfo{SampleRate: 16000, Format: audio.EncodingMulaw})
	if err == nil {
		t.Fatalf("expected mulaw at 16kHz to be rejected")
	}
}

func TestNewTranscriptionClientRequiresAPIKey(t *testing.T) {
	t.Setenv(apiKeyEnv, "")
	if _, err := NewTranscriptionClient(); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}
