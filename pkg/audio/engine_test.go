package audio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/teslashibe/go-orb/pkg/audioio"
	"github.com/teslashibe/go-orb/pkg/level"
)

func newTestEngine(t *testing.T) (*Engine, *audioio.MockSink) {
	t.Helper()
	sink := audioio.NewMockSink(audioio.DefaultSinkConfig(), nil)
	return NewEngine(sink), sink
}

func TestEngineGestureUnblocksReady(t *testing.T) {
	e, _ := newTestEngine(t)
	if e.State() != StateAwaitingGesture {
		t.Fatalf("state = %v", e.State())
	}
	if err := e.Readable(); !errors.Is(err, level.ErrSuspended) {
		t.Errorf("Readable before gesture = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- e.Ready(context.Background()) }()

	select {
	case err := <-done:
		t.Fatalf("Ready returned early: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	if err := e.Gesture(context.Background()); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Ready = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Ready still blocked after gesture")
	}
	if err := e.Readable(); err != nil {
		t.Errorf("Readable = %v", err)
	}
	if err := e.Gesture(context.Background()); err != nil {
		t.Errorf("second gesture: %v", err)
	}
}

func TestEngineReadyHonorsContext(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := e.Ready(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v", err)
	}
}

func TestEngineSuspendResumeClose(t *testing.T) {
	var states []State
	sink := audioio.NewMockSink(audioio.DefaultSinkConfig(), nil)
	e := NewEngine(sink, WithStateHook(func(s State) { states = append(states, s) }))
	ctx := context.Background()

	if err := e.Resume(ctx); !errors.Is(err, ErrNotSuspended) {
		t.Errorf("Resume before suspend = %v", err)
	}
	if err := e.Gesture(ctx); err != nil {
		t.Fatal(err)
	}
	if err := e.Suspend(); err != nil {
		t.Fatal(err)
	}
	if err := e.Readable(); !errors.Is(err, level.ErrSuspended) {
		t.Errorf("Readable while suspended = %v", err)
	}
	if err := e.Resume(ctx); err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if err := e.Readable(); !errors.Is(err, level.ErrClosed) {
		t.Errorf("Readable after close = %v", err)
	}
	if err := e.Ready(ctx); !errors.Is(err, level.ErrClosed) {
		t.Errorf("Ready after close = %v", err)
	}
	if err := e.Gesture(ctx); !errors.Is(err, level.ErrClosed) {
		t.Errorf("Gesture after close = %v", err)
	}

	want := []State{StateReady, StateSuspended, StateReady, StateClosed}
	if len(states) != len(want) {
		t.Fatalf("states = %v", states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("states[%d] = %v, want %v", i, states[i], want[i])
		}
	}
}

func TestEngineGestureFailure(t *testing.T) {
	e, sink := newTestEngine(t)
	sink.StartFunc = func(context.Context) error { return errors.New("no device") }
	if err := e.Gesture(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if e.State() != StateAwaitingGesture {
		t.Errorf("state = %v", e.State())
	}
}
