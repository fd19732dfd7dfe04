package local

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type echoDispatcher struct{}

func (echoDispatcher) Dispatch(ctx context.Context, frame []byte) []byte {
	return frame
}

func TestListenChmodsSocketAndAccepts(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "test.sock")
	tr := New(sockPath, echoDispatcher{}, discardLogger())
	if err := tr.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer tr.Close()

	info, err := os.Stat(sockPath)
	if err != nil {
		t.Fatalf("stat socket: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("expected mode 0600, got %v", info.Mode().Perm())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tr.Serve(ctx)

	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reply, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	want := `{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n"
	if reply != want {
		t.Fatalf("expected echoed frame, got %q", reply)
	}
}

func TestListenRemovesStaleSocket(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "stale.sock")
	if err := os.WriteFile(sockPath, []byte("not a socket"), 0600); err != nil {
		t.Fatalf("seed stale file: %v", err)
	}

	tr := New(sockPath, echoDispatcher{}, discardLogger())
	if err := tr.Listen(); err != nil {
		t.Fatalf("expected stale socket file to be replaced, got: %v", err)
	}
	tr.Close()
}

func TestServeStopsOnContextCancel(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "shutdown.sock")
	tr := New(sockPath, echoDispatcher{}, discardLogger())
	if err := tr.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after context cancellation")
	}
}
