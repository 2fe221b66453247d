package chat

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/frma/frma/internal/domain/assessment"
	"github.com/frma/frma/internal/platform/auth"
	"github.com/frma/frma/internal/platform/inference"
)

func newChatContext(e *echo.Echo, body, userID string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if userID != "" {
		req = req.WithContext(auth.WithUser(req.Context(), userID, ""))
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func assertHTTPStatus(t *testing.T, err error, want int) {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %v", err)
	}
	if he.Code != want {
		t.Errorf("expected %d, got %d", want, he.Code)
	}
}

func TestHandler_Ask_ThroughModelServer(t *testing.T) {
	var forwarded map[string]json.RawMessage
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&forwarded)
		w.Write([]byte(`{"answer":"A fever above 39C in adults warrants a doctor's visit."}`))
	}))
	defer ts.Close()

	backend := inference.NewHTTPBackend(ts.URL, inference.WithHTTPClient(ts.Client()))
	svc := NewService(backend, time.Second, zerolog.Nop())
	svc.SetProfileProvider(&mockProfiles{snap: assessment.ProfileSnapshot{Age: 70, Conditions: []string{"Diabetes"}}})
	h := NewHandler(svc)
	e := echo.New()

	c, rec := newChatContext(e, `{"prompt":"When is a fever dangerous?","history":[{"role":"user","content":"I feel hot"},{"role":"assistant","content":"Do you have a thermometer?"}]}`, "user-1")
	if err := h.Ask(c); err != nil {
		t.Fatalf("ask: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(resp.Answer, "A fever above 39C") {
		t.Errorf("unexpected answer %q", resp.Answer)
	}

	var history []inference.ChatMessage
	json.Unmarshal(forwarded["history"], &history)
	if len(history) != 2 || history[1].Role != "assistant" {
		t.Errorf("history not forwarded: %s", forwarded["history"])
	}
	var profile inference.Profile
	json.Unmarshal(forwarded["user_profile"], &profile)
	if profile.Age != 70 || len(profile.Conditions) != 1 {
		t.Errorf("profile not forwarded: %s", forwarded["user_profile"])
	}
	if string(forwarded["max_new_tokens"]) != "512" {
		t.Errorf("expected default max tokens, got %s", forwarded["max_new_tokens"])
	}
}

func TestHandler_Ask_ModelServerDown(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	backend := inference.NewHTTPBackend(ts.URL, inference.WithHTTPClient(ts.Client()))
	h := NewHandler(NewService(backend, time.Second, zerolog.Nop()))
	c, _ := newChatContext(echo.New(), `{"prompt":"hello"}`, "user-1")
	assertHTTPStatus(t, h.Ask(c), http.StatusBadGateway)
}

func TestHandler_Ask_BadRequest(t *testing.T) {
	h := NewHandler(NewService(&stubChat{answer: "ok"}, time.Second, zerolog.Nop()))
	c, _ := newChatContext(echo.New(), `{"prompt":""}`, "user-1")
	assertHTTPStatus(t, h.Ask(c), http.StatusBadRequest)
}

func TestHandler_Ask_Unauthenticated(t *testing.T) {
	h := NewHandler(NewService(&stubChat{answer: "ok"}, time.Second, zerolog.Nop()))
	c, _ := newChatContext(echo.New(), `{"prompt":"hello"}`, "")
	assertHTTPStatus(t, h.Ask(c), http.StatusUnauthorized)
}

func TestHandler_Ask_Unsupported(t *testing.T) {
	h := NewHandler(NewService(&stubChat{err: inference.ErrChatUnsupported}, time.Second, zerolog.Nop()))
	c, _ := newChatContext(echo.New(), `{"prompt":"hello"}`, "user-1")
	assertHTTPStatus(t, h.Ask(c), http.StatusNotImplemented)
}
