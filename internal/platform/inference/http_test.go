package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPBackend_Generate(t *testing.T) {
	var got assessmentRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/emergency_assessment" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"answer":"  1. Call emergency services immediately!  "}`))
	}))
	defer ts.Close()

	b := NewHTTPBackend(ts.URL+"/", WithHTTPClient(ts.Client()))
	answer, err := b.Generate(context.Background(), Request{
		Prompt:       "EMERGENCY ASSESSMENT REQUEST",
		Profile:      &Profile{Age: 40, Allergies: []string{"Penicillin"}},
		MaxNewTokens: 768,
		Temperature:  0.3,
		TopP:         0.7,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "1. Call emergency services immediately!" {
		t.Errorf("unexpected answer %q", answer)
	}
	if got.Prompt != "EMERGENCY ASSESSMENT REQUEST" || got.MaxNewTokens != 768 {
		t.Errorf("unexpected request %+v", got)
	}
	if got.UserProfile == nil || got.UserProfile.Age != 40 {
		t.Errorf("expected profile to be forwarded, got %+v", got.UserProfile)
	}
}

func TestHTTPBackend_Generate_NonOK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"detail":"Model service temporarily unavailable"}`))
	}))
	defer ts.Close()

	b := NewHTTPBackend(ts.URL, WithHTTPClient(ts.Client()))
	_, err := b.Generate(context.Background(), Request{Prompt: "x"})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", se.Code)
	}
}

func TestHTTPBackend_Generate_MissingAnswer(t *testing.T) {
	for _, body := range []string{`{}`, `{"answer":""}`, `{"answer":"   "}`} {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		}))
		b := NewHTTPBackend(ts.URL, WithHTTPClient(ts.Client()))
		_, err := b.Generate(context.Background(), Request{Prompt: "x"})
		ts.Close()
		if !errors.Is(err, ErrEmptyAnswer) {
			t.Errorf("body %s: expected ErrEmptyAnswer, got %v", body, err)
		}
	}
}

func TestHTTPBackend_Generate_MalformedJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer ts.Close()

	b := NewHTTPBackend(ts.URL, WithHTTPClient(ts.Client()))
	_, err := b.Generate(context.Background(), Request{Prompt: "x"})
	if err == nil || !strings.Contains(err.Error(), "decode response") {
		t.Errorf("expected decode error, got %v", err)
	}
}

func TestHTTPBackend_Generate_ContextDeadline(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	b := NewHTTPBackend(ts.URL, WithHTTPClient(ts.Client()))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := b.Generate(ctx, Request{Prompt: "x"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestHTTPBackend_Health(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"status":"healthy","model_status":"not loaded","model_id":"None"}`))
	}))
	defer ts.Close()

	b := NewHTTPBackend(ts.URL, WithHTTPClient(ts.Client()))
	hs, err := b.Health(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hs.Status != "healthy" || hs.ModelStatus != "not loaded" {
		t.Errorf("unexpected health %+v", hs)
	}
	if err := b.Ping(context.Background()); err != nil {
		t.Errorf("ping: %v", err)
	}
}

func TestHTTPBackend_Chat(t *testing.T) {
	var got chatRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		w.Write([]byte(`{"answer":"Drink plenty of fluids and rest."}`))
	}))
	defer ts.Close()

	b := NewHTTPBackend(ts.URL, WithHTTPClient(ts.Client()))
	answer, err := b.Chat(context.Background(), ChatRequest{
		Prompt: "And for a fever?",
		History: []ChatMessage{
			{Role: "user", Content: "I have a cold."},
			{Role: "assistant", Content: "Rest and stay warm."},
		},
		Profile:      &Profile{Age: 30, Conditions: []string{"Asthma"}},
		MaxNewTokens: DefaultChatMaxTokens,
		Temperature:  DefaultChatTemperature,
		TopP:         DefaultChatTopP,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "Drink plenty of fluids and rest." {
		t.Errorf("unexpected answer %q", answer)
	}
	if got.Prompt != "And for a fever?" || len(got.History) != 2 || got.History[1].Role != "assistant" {
		t.Errorf("unexpected request %+v", got)
	}
	if got.MaxNewTokens != 512 || got.Temperature != 0.7 || got.TopP != 0.9 {
		t.Errorf("unexpected generation params %+v", got)
	}
	if got.UserProfile == nil || got.UserProfile.Age != 30 {
		t.Errorf("expected profile to be forwarded, got %+v", got.UserProfile)
	}
}

func TestHTTPBackend_Chat_EmptyHistorySentAsList(t *testing.T) {
	var raw map[string]json.RawMessage
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&raw)
		w.Write([]byte(`{"answer":"ok"}`))
	}))
	defer ts.Close()

	b := NewHTTPBackend(ts.URL, WithHTTPClient(ts.Client()))
	if _, err := b.Chat(context.Background(), ChatRequest{Prompt: "hi"}); err != nil {
		t.Fatal(err)
	}
	if string(raw["history"]) != "[]" {
		t.Errorf("expected empty history list, got %s", raw["history"])
	}
	if _, ok := raw["user_profile"]; ok {
		t.Error("nil profile should be omitted")
	}
}

func TestHTTPBackend_Name(t *testing.T) {
	if got := NewHTTPBackend("http://model:8000/").Name(); got != "http:http://model:8000" {
		t.Errorf("unexpected name %q", got)
	}
}
