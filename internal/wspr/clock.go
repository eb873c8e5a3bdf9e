package wspr

import (
	"fmt"
	"sync"
	"time"
)

// StaleAfter is how long the mirror clock runs without a GPS update before
// it is reported as stale.
const StaleAfter = 5 * time.Second

// MirrorClock follows the GPS time reported by GTM. The device stops
// sending GTM while it transmits, so between updates the clock advances on
// the host clock.
type MirrorClock struct {
	mu     sync.Mutex
	now    func() time.Time
	base   time.Duration
	syncAt time.Time
	valid  bool
}

func NewMirrorClock(now func() time.Time) *MirrorClock {
	if now == nil {
		now = time.Now
	}
	return &MirrorClock{now: now}
}

// Set syncs the clock to an "HH:MM:SS" value.
func (c *MirrorClock) Set(hms string) error {
	var h, m, s int
	if _, err := fmt.Sscanf(hms, "%d:%d:%d", &h, &m, &s); err != nil {
		return fmt.Errorf("%w: time %q", ErrInvalidValue, hms)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || s < 0 || s > 59 {
		return fmt.Errorf("%w: time %q", ErrInvalidValue, hms)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.base = time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second
	c.syncAt = c.now()
	c.valid = true
	return nil
}

// Time returns the current mirrored time of day and whether the last sync is
// older than StaleAfter. Before the first sync it returns "--:--:--".
func (c *MirrorClock) Time() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid {
		return "--:--:--", true
	}
	elapsed := c.now().Sub(c.syncAt)
	d := (c.base + elapsed.Truncate(time.Second)) % (24 * time.Hour)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s), elapsed > StaleAfter
}
