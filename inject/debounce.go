package inject

import "time"

// DefaultDebounce is the mutation coalescing window.
const DefaultDebounce = 100 * time.Millisecond

// debouncer coalesces signals: every add restarts the window, and the
// timer channel fires once the window passes with no further adds. It is
// owned by the engine loop goroutine and is not safe for concurrent use.
type debouncer struct {
	window  time.Duration
	pending int
	timer   *time.Timer
	timerCh <-chan time.Time
}

func newDebouncer(window time.Duration) *debouncer {
	if window <= 0 {
		window = DefaultDebounce
	}
	return &debouncer{window: window}
}

// add records one signal and (re)starts the window.
func (d *debouncer) add() {
	d.pending++
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.NewTimer(d.window)
	d.timerCh = d.timer.C
}

// timerC fires when the window expires. Nil when nothing is pending.
func (d *debouncer) timerC() <-chan time.Time {
	return d.timerCh
}

// fire resets the debouncer and returns how many signals were coalesced.
func (d *debouncer) fire() int {
	n := d.pending
	d.pending = 0
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
		d.timerCh = nil
	}
	return n
}
