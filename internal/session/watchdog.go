package session

import (
	"log"
	"sync"
	"time"
)

// Watchdog periodically re-checks token validity and ends the session
// when it has expired. It is the only component allowed to force a
// navigation outside the route guard, which it does through onExpired.
type Watchdog struct {
	store     *Store
	interval  time.Duration
	onExpired func()

	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

func NewWatchdog(store *Store, interval time.Duration, onExpired func()) *Watchdog {
	return &Watchdog{
		store:     store,
		interval:  interval,
		onExpired: onExpired,
		now:       time.Now,
		stop:      make(chan struct{}),
	}
}

func (w *Watchdog) Start() {
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-w.stop:
				return
			case <-ticker.C:
				w.Check()
			}
		}
	}()
}

// Stop is idempotent and safe to call before Start.
func (w *Watchdog) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
}

// Check runs a single watchdog tick.
func (w *Watchdog) Check() {
	if !w.store.HasSession() {
		return
	}
	if w.store.Valid(w.now()) {
		return
	}

	log.Printf("session: token expired, ending session")
	w.store.Logout()
	if w.onExpired != nil {
		w.onExpired()
	}
}
