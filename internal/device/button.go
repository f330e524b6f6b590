package device

import "time"

// DefaultDebounceInterval matches the mechanical bounce time of the
// panel buttons with comfortable margin.
const DefaultDebounceInterval = 200 * time.Millisecond

// Debouncer filters mechanical switch bounce: a press is accepted only
// when at least the configured interval has passed since the last
// accepted press. Rejected presses do not reset the window, so a
// bouncing contact cannot lock the button out forever.
type Debouncer struct {
	interval time.Duration
	last     time.Time
	now      func() time.Time
}

// NewDebouncer creates a debouncer. A non-positive interval gets the
// default. The first press after creation is always accepted.
func NewDebouncer(interval time.Duration) *Debouncer {
	if interval <= 0 {
		interval = DefaultDebounceInterval
	}
	return &Debouncer{interval: interval, now: time.Now}
}

// Press reports whether this press should be acted on.
func (d *Debouncer) Press() bool {
	now := d.now()
	if !d.last.IsZero() && now.Sub(d.last) < d.interval {
		return false
	}
	d.last = now
	return true
}
