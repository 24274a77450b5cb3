package services

import (
	"sync"
	"time"
)

// durationClock ticks once per interval while an emergency is active. It is
// owned by exactly one coordinator and released by Stop on every exit path.
type durationClock struct {
	stop chan struct{}
	once sync.Once
}

func startDurationClock(interval time.Duration, startedAt time.Time, now func() time.Time, onTick func(seconds int64)) *durationClock {
	c := &durationClock{stop: make(chan struct{})}
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-c.stop:
				return
			case <-ticker.C:
				select {
				case <-c.stop:
					return
				default:
				}
				onTick(elapsedSeconds(startedAt, now()))
			}
		}
	}()

	return c
}

func (c *durationClock) Stop() {
	if c == nil {
		return
	}
	c.once.Do(func() { close(c.stop) })
}

func elapsedSeconds(startedAt, now time.Time) int64 {
	d := now.Sub(startedAt)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}
