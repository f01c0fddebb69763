package async

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/classhub/classhub/pkg/observability"
)

func testLogger(buf *bytes.Buffer) *observability.Logger {
	return observability.NewLogger(observability.DebugLevel, buf)
}

func TestSafeGo(t *testing.T) {
	t.Run("runs function", func(t *testing.T) {
		var buf bytes.Buffer
		done := make(chan struct{})

		SafeGo(context.Background(), time.Second, "test task", testLogger(&buf), func(ctx context.Context) error {
			close(done)
			return nil
		})

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("function never ran")
		}
	})

	t.Run("recovers from panic", func(t *testing.T) {
		var buf bytes.Buffer
		done := make(chan struct{})

		SafeGo(context.Background(), time.Second, "panicky task", testLogger(&buf), func(ctx context.Context) error {
			defer close(done)
			panic("boom")
		})

		<-done
		// Give the deferred recovery a moment to log.
		deadline := time.Now().Add(time.Second)
		for time.Now().Before(deadline) {
			if strings.Contains(buf.String(), "panic in background task") {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
		t.Errorf("expected panic log, got %q", buf.String())
	})

	t.Run("logs errors", func(t *testing.T) {
		var buf bytes.Buffer
		done := make(chan struct{})

		SafeGo(context.Background(), time.Second, "failing task", testLogger(&buf), func(ctx context.Context) error {
			defer close(done)
			return errors.New("task error")
		})

		<-done
		deadline := time.Now().Add(time.Second)
		for time.Now().Before(deadline) {
			if strings.Contains(buf.String(), "task error") {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
		t.Errorf("expected error log, got %q", buf.String())
	})

	t.Run("enforces timeout", func(t *testing.T) {
		var buf bytes.Buffer
		var expired atomic.Bool
		done := make(chan struct{})

		SafeGo(context.Background(), 20*time.Millisecond, "slow task", testLogger(&buf), func(ctx context.Context) error {
			defer close(done)
			select {
			case <-ctx.Done():
				expired.Store(true)
			case <-time.After(5 * time.Second):
			}
			return nil
		})

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("task did not observe timeout")
		}
		if !expired.Load() {
			t.Error("expected context to expire")
		}
	})
}

func TestSafeGoNoError(t *testing.T) {
	var buf bytes.Buffer
	done := make(chan struct{})

	SafeGoNoError(context.Background(), time.Second, "test task", testLogger(&buf), func(ctx context.Context) {
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("function never ran")
	}
}
