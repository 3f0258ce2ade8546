package orb

import (
	"sync"
	"time"
)

// DefaultFrameRate is the target frames per second of a draw loop.
const DefaultFrameRate = 60

// Ticker is the frame scheduler owned by one live orb. Start acquires the
// surface and Stop releases it after the loop goroutine has exited.
type Ticker struct {
	surface  *Surface
	interval time.Duration

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewTicker creates a ticker for surface at fps frames per second.
func NewTicker(surface *Surface, fps int) *Ticker {
	if fps <= 0 {
		fps = DefaultFrameRate
	}
	return &Ticker{
		surface:  surface,
		interval: time.Second / time.Duration(fps),
	}
}

// Interval returns the time between frames.
func (t *Ticker) Interval() time.Duration {
	return t.interval
}

// Start runs frame once immediately and then once per interval.
func (t *Ticker) Start(frame func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stop != nil {
		return ErrAlreadyRunning
	}
	if err := t.surface.acquire(t); err != nil {
		return err
	}

	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go t.loop(frame, t.stop, t.done)
	return nil
}

func (t *Ticker) loop(frame func(), stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	tk := time.NewTicker(t.interval)
	defer tk.Stop()

	frame()
	for {
		select {
		case <-stop:
			return
		case <-tk.C:
			// Stop may race with a pending tick.
			select {
			case <-stop:
				return
			default:
			}
			frame()
		}
	}
}

// Stop cancels the loop and waits for it to exit. It reports whether a loop
// was running. Calling Stop on a stopped ticker is a no-op.
func (t *Ticker) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stop == nil {
		return false
	}
	close(t.stop)
	<-t.done
	t.surface.release(t)
	t.stop = nil
	t.done = nil
	return true
}

// Running reports whether the loop is active.
func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop != nil
}
