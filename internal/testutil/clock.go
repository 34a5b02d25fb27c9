package testutil

import (
	"sync"
	"time"
)

// FrozenTime returns a fixed wall clock function for deterministic
// queue-age and tracker-age tests, plus an advance function that moves it.
func FrozenTime(start time.Time) (now func() time.Time, advance func(time.Duration)) {
	var mu sync.Mutex
	cur := start
	now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return cur
	}
	advance = func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		cur = cur.Add(d)
	}
	return now, advance
}
