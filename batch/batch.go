// Package batch groups bursts of items from a channel into batches.
package batch

import (
	"context"
	"time"
)

// Debounce reads items from in and sends them to out in batches.
//
// The first item of a batch starts a timer of length period.
// Each further item that arrives before the timer fires
// is appended to the batch and restarts the timer,
// so a batch is emitted only after period has passed with no new arrivals.
//
// Every batch is non-empty.
// Items keep their arrival order within and across batches.
//
// Debounce returns ctx.Err() when ctx is canceled,
// discarding any partial batch.
// If in is closed,
// any partial batch is sent and Debounce returns nil.
// Either way out is closed and no timer is left running.
func Debounce[T any](ctx context.Context, in <-chan T, period time.Duration, out chan<- []T) error {
	defer close(out)

	timer := time.NewTimer(period)
	stopTimer(timer)
	defer timer.Stop()

	var pending []T

	for {
		// While nothing is pending the timer is stopped and drained,
		// and this select waits only on in.
		var fire <-chan time.Time
		if len(pending) > 0 {
			fire = timer.C
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case item, ok := <-in:
			if !ok {
				if len(pending) > 0 {
					select {
					case <-ctx.Done():
						return ctx.Err()
					case out <- pending:
					}
				}
				return nil
			}
			pending = append(pending, item)
			stopTimer(timer)
			timer.Reset(period)

		case <-fire:
			select {
			case <-ctx.Done():
				return ctx.Err()
			case out <- pending:
			}
			pending = nil
		}
	}
}

// stopTimer stops t and drains its channel,
// leaving it safe to Reset.
func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
