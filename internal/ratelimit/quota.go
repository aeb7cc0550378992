package ratelimit

import (
	"sync"
	"time"
)

// WindowLength is the lifetime of a quota window
const WindowLength = time.Hour

// Window counts the requests admitted for one identity since Start
type Window struct {
	mu    sync.Mutex
	count int
	start time.Time
}

func (w *Window) Count() int {
	return w.count
}

func (w *Window) Start() time.Time {
	return w.start
}

func (w *Window) Expired(now time.Time) bool {
	return now.Sub(w.start) >= WindowLength
}

// Reset discards the previous count and opens a new window at now
func (w *Window) Reset(now time.Time) {
	w.count = 0
	w.start = now
}

func (w *Window) Increment() {
	w.count++
}

// QuotaTable holds one lazily created window per identity key.
//
// Update hands out a window with its lock held, and the lock is taken before
// the table lock is released. Sweep removes a window only while holding both,
// so an update never lands on a window that has already been dropped.
type QuotaTable struct {
	mu      sync.RWMutex
	windows map[string]*Window

	sweepMu sync.Mutex
	done    chan struct{}
	wg      sync.WaitGroup
}

func NewQuotaTable() *QuotaTable {
	return &QuotaTable{
		windows: make(map[string]*Window),
	}
}

// Update runs fn with exclusive access to the key's window, creating it
// with start=now if the key has none. Everything fn does is atomic per key.
func (t *QuotaTable) Update(key string, now time.Time, fn func(w *Window)) {
	w := t.lockWindow(key, now)
	defer w.mu.Unlock()

	fn(w)
}

func (t *QuotaTable) lockWindow(key string, now time.Time) *Window {
	t.mu.RLock()
	if w, ok := t.windows[key]; ok {
		w.mu.Lock()
		t.mu.RUnlock()
		return w
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.windows[key]
	if !ok {
		w = &Window{start: now}
		t.windows[key] = w
	}
	w.mu.Lock()

	return w
}

// Snapshot returns the key's current count and window start without creating anything
func (t *QuotaTable) Snapshot(key string) (count int, start time.Time, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	w, ok := t.windows[key]
	if !ok {
		return 0, time.Time{}, false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	return w.count, w.start, true
}

// Sweep drops expired windows and returns how many were removed.
// An expired window behaves exactly like a missing one, so nothing observable changes.
func (t *QuotaTable) Sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for key, w := range t.windows {
		w.mu.Lock()
		if w.Expired(now) {
			delete(t.windows, key)
			removed++
		}
		w.mu.Unlock()
	}

	return removed
}

func (t *QuotaTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.windows)
}

// StartSweeper runs Sweep every interval until Close is called.
// onSweep, if set, receives the number of windows removed by each pass.
func (t *QuotaTable) StartSweeper(interval time.Duration, clock func() time.Time, onSweep func(removed int)) {
	if interval <= 0 {
		return
	}

	t.sweepMu.Lock()
	defer t.sweepMu.Unlock()

	if t.done != nil {
		return
	}
	t.done = make(chan struct{})

	t.wg.Add(1)
	go func(done <-chan struct{}) {
		defer t.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				removed := t.Sweep(clock())
				if onSweep != nil {
					onSweep(removed)
				}
			}
		}
	}(t.done)
}

// Close stops the sweeper. Safe to call more than once.
func (t *QuotaTable) Close() {
	t.sweepMu.Lock()
	if t.done != nil {
		close(t.done)
		t.done = nil
	}
	t.sweepMu.Unlock()

	t.wg.Wait()
}
