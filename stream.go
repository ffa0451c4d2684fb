package cveval

import (
	"context"
	"fmt"
)

// Accumulate adds every batch received from batches to ev until the channel is
// closed. It is the single consumer that batch producers running on other
// goroutines should feed. It stops at the first rejected batch or when ctx is
// done, leaving the batches accumulated so far in ev.
func Accumulate(ctx context.Context, ev Evaluator, batches <-chan Batch) error {
	for n := 0; ; n++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b, ok := <-batches:
			if !ok {
				return nil
			}
			if err := ev.Add(b); err != nil {
				return fmt.Errorf("batch %d: %w", n, err)
			}
		}
	}
}
