package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"customer-support-rag/models"
	"customer-support-rag/services"

	"github.com/gin-gonic/gin"
)

type fakeAnswerer struct {
	tokens    []string
	followups []string
	err       error
	question  string
}

func (f *fakeAnswerer) Answer(_ context.Context, question string, events services.StreamEvents) (*services.AnswerResult, error) {
	f.question = question
	if f.err != nil {
		return nil, f.err
	}
	var sb strings.Builder
	for _, token := range f.tokens {
		if err := events.OnContent(token); err != nil {
			return nil, err
		}
		sb.WriteString(token)
	}
	if len(f.followups) > 0 {
		if err := events.OnFollowups(f.followups); err != nil {
			return nil, err
		}
	}
	return &services.AnswerResult{
		Answer:    sb.String(),
		Followups: f.followups,
		Retrieved: 2,
	}, nil
}

func newChatRouter(responder Answerer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	SetupChatRoutes(router, responder, nil)
	return router
}

func postChat(t *testing.T, router *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/stream", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestStreamChatWireFormat(t *testing.T) {
	responder := &fakeAnswerer{
		tokens:    []string{"You can reset it ", "from the login page."},
		followups: []string{"How long does the reset link stay valid?"},
	}
	router := newChatRouter(responder)

	w := postChat(t, router, `{"messages":[{"role":"user","content":"How do I reset my password?"}]}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
	if responder.question != "How do I reset my password?" {
		t.Errorf("question = %q", responder.question)
	}

	body := w.Body.String()
	wantLines := []string{
		`data: {"content":"You can reset it "}`,
		`data: {"content":"from the login page."}`,
		`data: {"followup_questions":["How long does the reset link stay valid?"]}`,
		`data: [DONE]`,
	}
	pos := 0
	for _, line := range wantLines {
		idx := strings.Index(body[pos:], line)
		if idx < 0 {
			t.Fatalf("missing or out-of-order event %q in body:\n%s", line, body)
		}
		pos += idx + len(line)
	}
}

func TestStreamChatRejectsInvalidBody(t *testing.T) {
	router := newChatRouter(&fakeAnswerer{})

	for _, body := range []string{
		`{}`,
		`{"messages":[]}`,
		`{"messages":[{"role":"wizard","content":"hi"}]}`,
	} {
		w := postChat(t, router, body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, w.Code)
		}
	}
}

func TestStreamChatRejectsBlankQuestion(t *testing.T) {
	router := newChatRouter(&fakeAnswerer{})

	w := postChat(t, router, `{"messages":[{"role":"user","content":"   "}]}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestStreamChatEmitsErrorEvent(t *testing.T) {
	responder := &fakeAnswerer{err: models.ErrCollectionNotFound}
	router := newChatRouter(responder)

	w := postChat(t, router, `{"messages":[{"role":"user","content":"Where is my order?"}]}`)

	body := w.Body.String()
	if !strings.Contains(body, `data: {"error":`) {
		t.Fatalf("expected error event, got:\n%s", body)
	}
	if !strings.Contains(body, "collection does not exist") {
		t.Errorf("error message should mention the missing collection, got:\n%s", body)
	}
	if !strings.HasSuffix(strings.TrimSpace(body), "data: [DONE]") {
		t.Errorf("stream must end with [DONE], got:\n%s", body)
	}
}
