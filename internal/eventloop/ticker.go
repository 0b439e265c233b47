package eventloop

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/facebookgo/clock"
)

// Every posts fn to the loop once per tick of a clk ticker with period d. The
// returned stop function is idempotent. Once stop has returned, fn is never
// invoked again, including for ticks that were already queued.
func Every(l *Loop, clk clock.Clock, d time.Duration, fn func(time.Time)) (stop func()) {
	ticker := clk.Ticker(d)
	quit := make(chan struct{})
	var stopped atomic.Bool

	go func() {
		for {
			select {
			case <-quit:
				return
			case <-l.Done():
				ticker.Stop()
				return
			case now := <-ticker.C:
				l.Post(func() {
					if stopped.Load() {
						return
					}
					fn(now)
				})
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			stopped.Store(true)
			ticker.Stop()
			close(quit)
		})
	}
}
