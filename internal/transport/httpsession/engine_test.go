package httpsession

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/mcphub/mcphubd/internal/domain/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeDispatcher struct {
	reply []byte
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, frame []byte) []byte {
	return f.reply
}

func TestNonStreamingPostUsesExistingSession(t *testing.T) {
	d := &fakeDispatcher{reply: []byte(`{"jsonrpc":"2.0","id":1,"result":{}}`)}
	e := New(d, discardLogger(), nil, time.Hour)
	sess := session.New()
	e.store.Create(sess)

	body := `{"jsonrpc":"2.0","id":1,"method":"alpha/tools/list","params":{"server":"alpha"}}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Mcp-Session-Id", sess.ID)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Mcp-Session-Id") != "" {
		t.Fatal("expected no Mcp-Session-Id header for an existing session")
	}
	if rec.Body.String() != string(d.reply) {
		t.Fatalf("expected reply passed through, got %s", rec.Body.String())
	}
}

func TestPostWithoutSessionRejectsNonInitialize(t *testing.T) {
	e := New(&fakeDispatcher{}, discardLogger(), nil, time.Hour)
	body := `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 session_not_found, got %d", rec.Code)
	}
}

func TestGetWithoutSessionReturns404(t *testing.T) {
	e := New(&fakeDispatcher{}, discardLogger(), nil, time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestPostWithUnknownSessionReturns404(t *testing.T) {
	e := New(&fakeDispatcher{}, discardLogger(), nil, time.Hour)
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	req.Header.Set("Mcp-Session-Id", "nonexistent")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestProtocolVersionMismatchRejected(t *testing.T) {
	e := New(&fakeDispatcher{}, discardLogger(), nil, time.Hour)
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{}`))
	req.Header.Set("MCP-Protocol-Version", "1999-01-01")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestOriginForbidden(t *testing.T) {
	e := New(&fakeDispatcher{}, discardLogger(), nil, time.Hour)
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{}`))
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestOriginLocalhostAllowed(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	e := New(&fakeDispatcher{reply: []byte(`{"jsonrpc":"2.0","id":1,"result":{}}`)}, discardLogger(), nil, time.Hour)
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`)).WithContext(ctx)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code == http.StatusForbidden {
		t.Fatal("expected localhost origin to be allowed")
	}
}

func TestStreamingInitializeEmitsSessionThenData(t *testing.T) {
	d := &fakeDispatcher{reply: []byte(`{"jsonrpc":"2.0","id":1,"result":{"ok":true}}`)}
	e := New(d, discardLogger(), nil, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	body := `{"jsonrpc":"2.0","id":1,"method":"initialize"}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body)).WithContext(ctx)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	out := rec.Body.String()
	if !strings.Contains(out, "event: session") {
		t.Fatalf("expected a session event, got: %s", out)
	}
	if !strings.Contains(out, `"ok":true`) {
		t.Fatalf("expected the dispatched reply to be emitted, got: %s", out)
	}
	if strings.Index(out, "event: session") > strings.Index(out, `"ok":true`) {
		t.Fatalf("expected the session event before the reply, got: %s", out)
	}
	if rec.Header().Get("Content-Type") != "text/event-stream" {
		t.Fatalf("expected SSE content type, got %q", rec.Header().Get("Content-Type"))
	}
}
