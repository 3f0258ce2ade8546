package turn_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/teslashibe/go-orb/pkg/audio"
	"github.com/teslashibe/go-orb/pkg/audioio"
	"github.com/teslashibe/go-orb/pkg/conversation"
	"github.com/teslashibe/go-orb/pkg/inference"
	"github.com/teslashibe/go-orb/pkg/level"
	"github.com/teslashibe/go-orb/pkg/speech"
	"github.com/teslashibe/go-orb/pkg/tts"
	"github.com/teslashibe/go-orb/pkg/turn"
)

// display records every call in order.
type display struct {
	mu    sync.Mutex
	calls []string
}

func (d *display) record(s string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, s)
}

func (d *display) AddMessage(text string, isUser bool) {
	if isUser {
		d.record("user:" + text)
		return
	}
	d.record("ai:" + text)
}
func (d *display) StartAIMessage()              { d.record("start") }
func (d *display) UpdateAIMessage(chunk string) { d.record("update:" + chunk) }
func (d *display) EndAIMessage()                { d.record("end") }

func (d *display) get() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func (d *display) count(prefix string) int {
	n := 0
	for _, c := range d.get() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

type fixture struct {
	rec     *speech.Mock
	machine *conversation.Machine
	sink    *audioio.MockSink
	engine  *audio.Engine
	llm     *inference.Mock
	synth   *tts.Mock
	display *display
	pipe    *turn.Pipeline

	results chan error

	// overlaps counts sink writes made while the recognizer was running.
	overlaps atomic.Int32
}

func newFixture(t *testing.T, llm *inference.Mock, synth *tts.Mock) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	f := &fixture{
		rec:     speech.NewMock(),
		sink:    audioio.NewMockSink(audioio.DefaultSinkConfig(), nil),
		llm:     llm,
		synth:   synth,
		display: &display{},
		results: make(chan error, 8),
	}
	f.sink.WriteFunc = func(ctx context.Context, chunk audioio.Chunk) error {
		if f.rec.Running() {
			f.overlaps.Add(1)
		}
		return nil
	}

	f.engine = audio.NewEngine(f.sink)
	if err := f.engine.Gesture(ctx); err != nil {
		t.Fatalf("Gesture: %v", err)
	}
	player := audio.NewPlayer(f.engine, level.NewAnalyser(2048), audio.PlayerConfig{
		Retries:    3,
		RetryDelay: 5 * time.Millisecond,
	})

	m, err := conversation.New(f.rec, f.engine, conversation.WithSettleDelay(5*time.Millisecond))
	if err != nil {
		t.Fatalf("conversation.New: %v", err)
	}
	f.machine = m

	f.pipe, err = turn.New(m, inference.NewGenerator(llm, nil, nil), synth, player,
		turn.WithGate(f.engine),
		turn.WithDisplay(f.display),
	)
	if err != nil {
		t.Fatalf("turn.New: %v", err)
	}
	m.OnFinal = func(text string) {
		f.results <- f.pipe.Process(ctx, text)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	if err := m.Enable(ctx); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	eventually(t, "recognizer running", f.rec.Running)
	return f
}

// say delivers a final transcript through the recognizer and waits for
// the resulting turn.
func (f *fixture) say(t *testing.T, text string) error {
	t.Helper()
	if !f.rec.Result(text, true) {
		t.Fatal("recognizer not running")
	}
	select {
	case err := <-f.results:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("turn did not complete")
		return nil
	}
}

func (f *fixture) backToListening(t *testing.T) {
	t.Helper()
	eventually(t, "listening again", func() bool {
		s := f.machine.Snapshot()
		return s.State == conversation.StateListening && !s.Processing && !s.Playing && f.rec.Running()
	})
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := turn.New(nil, nil, nil, nil); err == nil {
		t.Error("expected error for missing collaborators")
	}
}

func TestSpokenTurn(t *testing.T) {
	f := newFixture(t, inference.NewStreamMock("Hi", " there"), tts.NewMock())

	if err := f.say(t, "hello"); err != nil {
		t.Fatalf("turn failed: %v", err)
	}

	want := []string{"user:hello", "start", "update:Hi", "update: there", "end"}
	got := f.display.get()
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("display calls = %q, want %q", got, want)
	}

	if text, _ := f.synth.LastSpoken(); text != "Hi there" {
		t.Errorf("synthesized %q, want %q", text, "Hi there")
	}
	if len(f.sink.Played()) == 0 {
		t.Error("nothing played")
	}
	if n := f.overlaps.Load(); n != 0 {
		t.Errorf("%d sink writes while recognizing", n)
	}
	f.backToListening(t)
}

func TestInputWhileBusyIgnored(t *testing.T) {
	release := make(chan struct{})
	llm := inference.NewMock()
	llm.StreamFunc = func(ctx context.Context, req *inference.ChatRequest) (inference.Stream, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return inference.StreamOf(ctx, "Sure."), nil
	}
	f := newFixture(t, llm, tts.NewMock())

	if !f.rec.Result("first", true) {
		t.Fatal("recognizer not running")
	}
	eventually(t, "processing", func() bool { return f.machine.Snapshot().Processing })

	if err := f.pipe.Process(context.Background(), "second"); !errors.Is(err, turn.ErrBusy) {
		t.Errorf("Process while busy = %v, want ErrBusy", err)
	}
	if f.rec.Running() {
		t.Error("recognizer running during a turn")
	}

	close(release)
	select {
	case err := <-f.results:
		if err != nil {
			t.Fatalf("first turn: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first turn did not complete")
	}

	if n := f.display.count("user:"); n != 1 {
		t.Errorf("user messages = %d, want 1", n)
	}
	if n := f.llm.CallCount("Stream"); n != 1 {
		t.Errorf("generations = %d, want 1", n)
	}
	f.backToListening(t)
}

func TestPlaybackStartFailure(t *testing.T) {
	f := newFixture(t, inference.NewStreamMock("Hello"), tts.NewMock())

	var writes atomic.Int32
	f.sink.WriteFunc = func(ctx context.Context, chunk audioio.Chunk) error {
		writes.Add(1)
		return errors.New("device busy")
	}

	err := f.say(t, "hello")
	if !errors.Is(err, audio.ErrPlaybackFailed) {
		t.Fatalf("err = %v, want ErrPlaybackFailed", err)
	}
	if n := writes.Load(); n != 3 {
		t.Errorf("start attempts = %d, want 3", n)
	}
	if len(f.sink.Played()) != 0 {
		t.Error("audio played despite failure")
	}
	if f.pipe.Busy() {
		t.Error("pipeline still busy")
	}
	f.backToListening(t)
}

func TestEmptySynthesis(t *testing.T) {
	synth := tts.NewMock()
	synth.SynthesizeFunc = func(ctx context.Context, text string) (*tts.AudioResult, error) {
		return &tts.AudioResult{Format: tts.AudioFormat{SampleRate: 24000}}, nil
	}
	f := newFixture(t, inference.NewStreamMock("Hello"), synth)

	var reported error
	f.pipe.OnError = func(err error) { reported = err }

	err := f.say(t, "hello")
	if !errors.Is(err, tts.ErrEmptyAudio) {
		t.Fatalf("err = %v, want ErrEmptyAudio", err)
	}
	if !errors.Is(reported, tts.ErrEmptyAudio) {
		t.Errorf("OnError got %v", reported)
	}
	if f.sink.Stats().ChunksWritten != 0 {
		t.Error("audio written for an empty clip")
	}
	f.backToListening(t)
}

func TestGenerationFailure(t *testing.T) {
	f := newFixture(t, inference.WithError(errors.New("upstream down")), tts.NewMock())

	if err := f.say(t, "hello"); err == nil {
		t.Fatal("expected error")
	}
	if n := f.synth.CallCount("Synthesize"); n != 0 {
		t.Errorf("synthesized after failed generation (%d calls)", n)
	}
	if got := f.display.get(); got[len(got)-1] != "end" {
		t.Errorf("AI message not closed: %q", got)
	}
	f.backToListening(t)
}

func TestInterruptStopsPlayback(t *testing.T) {
	f := newFixture(t, inference.NewStreamMock("A long answer that takes a while to say."), tts.NewMock())
	f.sink.Realtime = true

	if !f.rec.Result("talk to me", true) {
		t.Fatal("recognizer not running")
	}
	eventually(t, "audio playing", func() bool { return len(f.sink.Played()) > 0 })

	f.pipe.Interrupt()

	select {
	case err := <-f.results:
		if err != nil {
			t.Errorf("interrupted turn = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("turn did not end after Interrupt")
	}
	if f.sink.Clears() == 0 {
		t.Error("sink not cleared")
	}
	f.backToListening(t)
}

func TestGreet(t *testing.T) {
	f := newFixture(t, inference.NewStreamMock("unused"), tts.NewMock())

	if err := f.pipe.Greet(context.Background(), "Welcome back!"); err != nil {
		t.Fatalf("Greet: %v", err)
	}
	want := []string{"start", "update:Welcome back!", "end"}
	if got := f.display.get(); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("display calls = %q, want %q", got, want)
	}
	if n := f.llm.CallCount("Stream"); n != 0 {
		t.Errorf("greeting generated a reply (%d calls)", n)
	}
	f.backToListening(t)
}

func TestEmptyInput(t *testing.T) {
	f := newFixture(t, inference.NewStreamMock("x"), tts.NewMock())
	if err := f.pipe.Process(context.Background(), "  "); !errors.Is(err, turn.ErrEmptyInput) {
		t.Errorf("err = %v, want ErrEmptyInput", err)
	}
	if f.machine.Snapshot().Processing {
		t.Error("empty input started a turn")
	}
}

func TestSubmitRunsInBackground(t *testing.T) {
	f := newFixture(t, inference.NewStreamMock("Typed reply."), tts.NewMock())

	failed := make(chan error, 1)
	f.pipe.OnError = func(err error) { failed <- err }

	if err := f.pipe.Submit(context.Background(), "typed input"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := f.pipe.Submit(context.Background(), "again"); !errors.Is(err, turn.ErrBusy) {
		t.Errorf("second Submit = %v, want ErrBusy", err)
	}

	eventually(t, "reply spoken", func() bool {
		text, ok := f.synth.LastSpoken()
		return ok && text == "Typed reply."
	})
	f.backToListening(t)

	select {
	case err := <-failed:
		t.Errorf("OnError(%v)", err)
	default:
	}
}
