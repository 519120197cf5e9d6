package bridge

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestFactoryAutoPrefersSlack(t *testing.T) {
	b, err := New(Config{Mode: "auto", SlackBotToken: "xoxb-test", DiscordToken: "abc"}, quietLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, ok := b.(*SlackBridge); !ok {
		t.Fatalf("New() = %T, want *SlackBridge", b)
	}
}

func TestFactoryFallsBackToMock(t *testing.T) {
	b, err := New(Config{Mode: "auto"}, quietLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, ok := b.(*MockBridge); !ok {
		t.Fatalf("New() = %T, want *MockBridge", b)
	}
}

func TestSlackPostStartsThread(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat.postMessage" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer xoxb-test" {
			t.Errorf("Authorization = %q", got)
		}
		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if payload["channel"] != "C123" {
			t.Errorf("channel = %q", payload["channel"])
		}
		if _, ok := payload["thread_ts"]; ok {
			t.Errorf("thread_ts sent on a fresh post")
		}
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "channel": "C123", "ts": "1700000001.000100"})
	}))
	defer srv.Close()

	b := NewSlackBridge("xoxb-test", quietLogger())
	b.baseURL = srv.URL

	res, err := b.Post(context.Background(), "C123", "nouvelle escalade", "")
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if res.Thread != "1700000001.000100" {
		t.Fatalf("Thread = %q, want the returned ts", res.Thread)
	}
}

func TestSlackPostIntoExistingThread(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		json.NewDecoder(r.Body).Decode(&payload)
		if payload["thread_ts"] != "1700000001.000100" {
			t.Errorf("thread_ts = %q", payload["thread_ts"])
		}
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "channel": "C123", "ts": "1700000002.000200"})
	}))
	defer srv.Close()

	b := NewSlackBridge("xoxb-test", quietLogger())
	b.baseURL = srv.URL

	res, err := b.Post(context.Background(), "C123", "suite", "1700000001.000100")
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if res.Thread != "1700000001.000100" {
		t.Fatalf("Thread = %q, replies must keep the original thread handle", res.Thread)
	}
}

func TestSlackAPIErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "channel_not_found"})
	}))
	defer srv.Close()

	b := NewSlackBridge("xoxb-test", quietLogger())
	b.baseURL = srv.URL

	if _, err := b.Post(context.Background(), "C404", "texte", ""); err == nil {
		t.Fatalf("Post() error = nil, want channel_not_found")
	}
}

func TestMockBridgeFabricatesThreads(t *testing.T) {
	m := NewMockBridge()

	first, err := m.Post(context.Background(), "support", "ouverture", "")
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if first.Thread == "" {
		t.Fatalf("Thread empty on a fresh post")
	}

	second, err := m.Post(context.Background(), "support", "suite", first.Thread)
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if second.Thread != first.Thread {
		t.Fatalf("Thread = %q, want %q", second.Thread, first.Thread)
	}
	if m.PostCount() != 2 {
		t.Fatalf("PostCount() = %d, want 2", m.PostCount())
	}
}
