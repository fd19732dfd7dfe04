package router

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mcphub/mcphubd/internal/jsonrpc"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSupervisor struct {
	lastName     string
	lastFrame    []byte
	reply        []byte
	err          *jsonrpc.RouterError
	notifyErr    *jsonrpc.RouterError
	notifyCalled bool
}

func (f *fakeSupervisor) Route(ctx context.Context, name string, frame []byte) ([]byte, *jsonrpc.RouterError) {
	f.lastName = name
	f.lastFrame = frame
	return f.reply, f.err
}

func (f *fakeSupervisor) Notify(ctx context.Context, name string, frame []byte) *jsonrpc.RouterError {
	f.notifyCalled = true
	f.lastName = name
	f.lastFrame = frame
	return f.notifyErr
}

func TestDispatchParseError(t *testing.T) {
	sup := &fakeSupervisor{}
	r := New(sup, discardLogger())
	out := r.Dispatch(context.Background(), []byte(`not json`))
	assertErrorKind(t, out, jsonrpc.KindParseError)
}

func TestDispatchParamsServer(t *testing.T) {
	sup := &fakeSupervisor{reply: []byte(`{"jsonrpc":"2.0","id":1,"result":{}}`)}
	r := New(sup, discardLogger())
	in := []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{"server":"alpha"}}`)
	out := r.Dispatch(context.Background(), in)

	if sup.lastName != "alpha" {
		t.Fatalf("expected route to alpha, got %q", sup.lastName)
	}
	if string(out) != string(sup.reply) {
		t.Fatalf("expected reply passed through, got %s", out)
	}
}

func TestDispatchMethodPrefix(t *testing.T) {
	sup := &fakeSupervisor{reply: []byte(`{"jsonrpc":"2.0","id":1,"result":{}}`)}
	r := New(sup, discardLogger())
	in := []byte(`{"jsonrpc":"2.0","id":1,"method":"alpha/tools/list"}`)
	r.Dispatch(context.Background(), in)

	if sup.lastName != "alpha" {
		t.Fatalf("expected route to alpha, got %q", sup.lastName)
	}
	var rewritten struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(sup.lastFrame, &rewritten); err != nil {
		t.Fatalf("unmarshal forwarded frame: %v", err)
	}
	if rewritten.Method != "tools/list" {
		t.Fatalf("expected rewritten method 'tools/list', got %q", rewritten.Method)
	}
}

func TestDispatchNoServerNoSlash(t *testing.T) {
	sup := &fakeSupervisor{}
	r := New(sup, discardLogger())
	in := []byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	out := r.Dispatch(context.Background(), in)
	assertErrorKind(t, out, jsonrpc.KindServerNotFound)
}

func TestDispatchRejectsTraversalName(t *testing.T) {
	sup := &fakeSupervisor{}
	r := New(sup, discardLogger())
	in := []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{"server":"../etc"}}`)
	out := r.Dispatch(context.Background(), in)
	assertErrorKind(t, out, jsonrpc.KindServerNotFound)
}

func TestDispatchSupervisorError(t *testing.T) {
	sup := &fakeSupervisor{err: jsonrpc.NewRouterError(jsonrpc.KindServerCrash, "alpha", "")}
	r := New(sup, discardLogger())
	in := []byte(`{"jsonrpc":"2.0","id":1,"method":"alpha/tools/list"}`)
	out := r.Dispatch(context.Background(), in)
	assertErrorKind(t, out, jsonrpc.KindServerCrash)
}

func TestDispatchNotificationGetsNoReply(t *testing.T) {
	sup := &fakeSupervisor{}
	r := New(sup, discardLogger())
	in := []byte(`{"jsonrpc":"2.0","method":"alpha/notifications/progress"}`)
	out := r.Dispatch(context.Background(), in)

	if !sup.notifyCalled {
		t.Fatal("expected Notify to be called for a notification frame")
	}
	if out != nil {
		t.Fatalf("expected nil reply for a notification, got %s", out)
	}
	var rewritten struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(sup.lastFrame, &rewritten); err != nil {
		t.Fatalf("unmarshal forwarded frame: %v", err)
	}
	if rewritten.Method != "notifications/progress" {
		t.Fatalf("expected rewritten method, got %q", rewritten.Method)
	}
}

func assertErrorKind(t *testing.T, frame []byte, kind jsonrpc.ErrorKind) {
	t.Helper()
	if !strings.Contains(string(frame), `"type":"`+string(kind)+`"`) {
		t.Fatalf("expected error kind %q in frame: %s", kind, frame)
	}
}
