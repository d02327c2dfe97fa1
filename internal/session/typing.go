package session

import (
	"sync"
	"time"
)

// typist turns key presses into start/stop typing notifications: start on
// the first press, stop after threshold without presses.
type typist struct {
	threshold time.Duration
	notify    func(typing bool)

	mu     sync.Mutex
	typing bool
	timer  *time.Timer
	gen    uint64
	closed bool
}

func newTypist(threshold time.Duration, notify func(bool)) *typist {
	if threshold <= 0 {
		threshold = DefaultTypingThreshold
	}
	return &typist{threshold: threshold, notify: notify}
}

func (t *typist) KeyPress() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.timer = time.AfterFunc(t.threshold, func() { t.stop(gen) })
	if !t.typing {
		t.typing = true
		t.notify(true)
	}
}

func (t *typist) Typing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.typing
}

// stop ignores timers superseded by a later key press.
func (t *typist) stop(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen || !t.typing || t.closed {
		return
	}
	t.typing = false
	t.timer = nil
	t.notify(false)
}

func (t *typist) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.typing = false
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
