package daemon

import (
	"context"
	"testing"
)

func TestNotifyShutdownReturnsCancelableContext(t *testing.T) {
	ctx, cancel := NotifyShutdown(context.Background())
	defer cancel()

	select {
	case <-ctx.Done():
		t.Fatal("context should not be done before a signal or cancel")
	default:
	}

	cancel()
	select {
	case <-ctx.Done():
	default:
		t.Fatal("expected context to be done after cancel")
	}
}
