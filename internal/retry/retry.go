// Package retry implements the backoff-polling policy used to await
// asynchronously materializing resources.  The policy is independent of any
// transport: callers supply the probe as a closure.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/ticketchief/checkout-gateway/internal/clock"
)

// ErrDeadline is returned by Do when the overall deadline passes without the
// probe reporting done.
var ErrDeadline = errors.New("retry: deadline exceeded")

// Policy describes an exponential backoff with a per-step cap and an overall
// deadline.
type Policy struct {
	Initial    time.Duration // delay before the second probe
	Multiplier float64       // growth factor between steps
	Max        time.Duration // cap applied to each step
	Deadline   time.Duration // total time budget measured from the first probe
}

// Do probes fn until it reports done, returns an error, or the deadline
// passes.  fn returning (false, nil) means "not yet" and schedules another
// probe; any non-nil error is fatal and returned as-is.  The final delay is
// clamped so one last probe lands exactly at the deadline.  Context
// cancellation interrupts the sleep and surfaces ctx.Err().
func (p Policy) Do(ctx context.Context, clk clock.Clock, fn func(context.Context) (bool, error)) error {
	start := clk.Now()
	delay := p.Initial
	for {
		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		elapsed := clk.Now().Sub(start)
		if elapsed >= p.Deadline {
			return ErrDeadline
		}
		step := delay
		if remaining := p.Deadline - elapsed; step > remaining {
			step = remaining
		}
		if err := clk.Sleep(ctx, step); err != nil {
			return err
		}
		delay = time.Duration(float64(delay) * p.Multiplier)
		if delay > p.Max {
			delay = p.Max
		}
	}
}
