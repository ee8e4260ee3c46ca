package cli

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinnerWritesMessage(t *testing.T) {
	var out syncBuffer
	s := newSpinnerTo(context.Background(), &out, "Loading tree of P1")
	s.Start()
	time.Sleep(200 * time.Millisecond)
	s.SetMessage("Resolving places")
	time.Sleep(200 * time.Millisecond)
	s.Stop()

	got := out.String()
	for _, want := range []string{"Loading tree of P1", "Resolving places"} {
		if !strings.Contains(got, want) {
			t.Errorf("spinner output missing %q", want)
		}
	}
	if !strings.HasSuffix(got, "\r") {
		t.Error("line was not cleared on Stop")
	}
}

func TestSpinnerShowsElapsed(t *testing.T) {
	var out syncBuffer
	s := newSpinnerTo(context.Background(), &out, "Waiting")
	s.start = time.Now().Add(-5 * time.Second)
	s.Start()
	time.Sleep(150 * time.Millisecond)
	s.Stop()

	if !strings.Contains(out.String(), "Waiting (5s)") {
		t.Errorf("output %q has no elapsed time", out.String())
	}
}

func TestSpinnerStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newSpinnerTo(ctx, &syncBuffer{}, "Waiting")
	s.Start()
	cancel()

	select {
	case <-s.stopped:
	case <-time.After(time.Second):
		t.Fatal("spinner still running after its context ended")
	}
	s.Stop()
}

func TestSpinnerStop(t *testing.T) {
	t.Run("twice", func(t *testing.T) {
		s := newSpinnerTo(context.Background(), &syncBuffer{}, "Stopping")
		s.Start()
		s.Stop()
		s.Stop()
	})
	t.Run("never started", func(t *testing.T) {
		s := newSpinnerTo(context.Background(), &syncBuffer{}, "Idle")
		s.Stop()
	})
}
