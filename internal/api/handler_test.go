package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/helpdesk/internal/conversation"
	"github.com/ashureev/helpdesk/internal/domain"
	"github.com/ashureev/helpdesk/internal/store"
	"github.com/go-chi/chi/v5"
)

type scriptedCompleter struct {
	calls int
}

func (s *scriptedCompleter) Complete(_ context.Context, _ []domain.Message) string {
	s.calls++
	return "scripted completion"
}

type scriptedCreator struct{}

func (scriptedCreator) Create(_ context.Context, _, _ string) string {
	return "INC0099"
}

func newTestRouter(limiter *RateLimiter) (*chi.Mux, *scriptedCompleter, *store.MemoryStore) {
	completer := &scriptedCompleter{}
	repo := store.NewMemory()
	engine := conversation.NewEngine(repo, completer, scriptedCreator{}, nil)
	handler := NewHandler(engine, limiter, 0)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, completer, repo
}

func postAsk(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestAskRejectsMissingSessionID(t *testing.T) {
	router, completer, _ := newTestRouter(nil)

	w := postAsk(t, router, `{"message":"hello"}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}

	var got map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got["reply"] != "Error: Missing session ID." {
		t.Errorf("Expected fixed error reply, got %v", got["reply"])
	}
	if completer.calls != 0 {
		t.Error("Completion gateway must not be reached without a session ID")
	}
}

func TestAskRejectsInvalidBody(t *testing.T) {
	router, _, _ := newTestRouter(nil)

	w := postAsk(t, router, `{not json`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestAskFirstTurn(t *testing.T) {
	router, _, repo := newTestRouter(nil)

	w := postAsk(t, router, `{"message":"Alice","sessionId":"s1"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var got struct {
		Reply   string           `json:"reply"`
		History []domain.Message `json:"history"`
	}
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !strings.Contains(got.Reply, "Alice") {
		t.Errorf("Expected reply to reference the name, got %q", got.Reply)
	}
	if len(got.History) != 3 {
		t.Errorf("Expected 3 history entries, got %d", len(got.History))
	}

	session, err := repo.GetSession(context.Background(), "s1")
	if err != nil || session == nil {
		t.Fatalf("Expected session to be persisted, got %v / %v", session, err)
	}
	if session.Stage != domain.StageAskEmail {
		t.Errorf("Expected stage %s, got %s", domain.StageAskEmail, session.Stage)
	}
}

func TestAskAbsentMessageSkipsHistoryAppend(t *testing.T) {
	router, _, _ := newTestRouter(nil)

	w := postAsk(t, router, `{"sessionId":"s1"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var got struct {
		History []domain.Message `json:"history"`
	}
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	// Greeting plus assistant reply; no user entry for the absent message.
	if len(got.History) != 2 {
		t.Errorf("Expected 2 history entries, got %d", len(got.History))
	}
}

func TestAskRateLimited(t *testing.T) {
	router, _, _ := newTestRouter(NewRateLimiter(1, time.Minute))

	if w := postAsk(t, router, `{"message":"Alice","sessionId":"s1"}`); w.Code != http.StatusOK {
		t.Fatalf("Expected first request to pass, got %d", w.Code)
	}
	if w := postAsk(t, router, `{"message":"again","sessionId":"s1"}`); w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected status 429, got %d", w.Code)
	}
	// A different session is unaffected.
	if w := postAsk(t, router, `{"message":"Bob","sessionId":"s2"}`); w.Code != http.StatusOK {
		t.Errorf("Expected other session to pass, got %d", w.Code)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	router, _, _ := newTestRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/session?session_id=unknown", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestGetSessionReturnsTranscript(t *testing.T) {
	router, _, repo := newTestRouter(nil)

	session := domain.NewSession("s9")
	session.Stage = domain.StageAskIssue
	if err := repo.SaveSession(context.Background(), session); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/session?session_id=s9", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var got map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got["stage"] != string(domain.StageAskIssue) {
		t.Errorf("Expected stage %s, got %v", domain.StageAskIssue, got["stage"])
	}
}
