package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

type flakyRunner struct {
	calls  atomic.Int32
	cancel context.CancelFunc
}

func (r *flakyRunner) Run(ctx context.Context) error {
	if r.calls.Add(1) == 2 {
		r.cancel()
		<-ctx.Done()
		return nil
	}
	return errors.New("subscription dropped")
}

func TestRunWithRestartRestartsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &flakyRunner{cancel: cancel}

	done := make(chan struct{})
	go func() {
		RunWithRestart(ctx, "fanout", r, zap.NewNop())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("RunWithRestart did not return after cancel")
	}
	if got := r.calls.Load(); got != 2 {
		t.Fatalf("Run called %d times, want 2", got)
	}
}

func TestStartNotificationWorkerNil(t *testing.T) {
	StartNotificationWorker(nil)
}
