package filewatcher

import (
	"sync"
	"time"
)

// debouncer coalesces repeated triggers for the same path within delay into
// a single callback invocation, so a burst of writes to one file produces
// one process instead of one per fsnotify event.
type debouncer struct {
	mu       sync.Mutex
	timers   map[string]*time.Timer
	delay    time.Duration
	callback func(string)
}

func newDebouncer(delay time.Duration, callback func(string)) *debouncer {
	return &debouncer{
		timers:   make(map[string]*time.Timer),
		delay:    delay,
		callback: callback,
	}
}

// trigger (re)schedules callback(path) to run after delay, resetting any
// pending timer for the same path.
func (d *debouncer) trigger(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if timer, exists := d.timers[path]; exists {
		timer.Stop()
	}
	d.timers[path] = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		delete(d.timers, path)
		cb := d.callback
		d.mu.Unlock()
		if cb != nil {
			cb(path)
		}
	})
}

// stop cancels every pending timer.
func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, timer := range d.timers {
		timer.Stop()
	}
	d.timers = make(map[string]*time.Timer)
}
