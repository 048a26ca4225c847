package submit

import (
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// WaitAll waits for every future, each with the given timeout, and
// returns the first failure: ErrTimedOut when a future hit the deadline,
// or the future's own error when it failed. A nil result means every
// future completed.
//
// The waits run concurrently, so the overall bound is one timeout, not
// one per future.
func WaitAll(timeout time.Duration, futures ...*Future) error {
	var g errgroup.Group
	for _, f := range futures {
		g.Go(func() error {
			switch st := f.Wait(timeout); st {
			case StatusComplete:
				return nil
			case StatusTimedOut:
				return fmt.Errorf("%w: submission %d", ErrTimedOut, f.ID())
			default:
				return fmt.Errorf("submission %d: %w", f.ID(), f.Err())
			}
		})
	}
	return g.Wait()
}
