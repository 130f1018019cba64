package session

import (
	"context"
	"fmt"
)

// step is one fallible stage of a user action that needs several calls.
type step struct {
	name string
	run  func(ctx context.Context) error
}

// runPipeline runs steps in order and stops at the first failure. Effects of completed steps
// are kept.
func runPipeline(ctx context.Context, steps ...step) error {
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		if err := s.run(ctx); err != nil {
			return err
		}
	}
	return nil
}

// nextItemError marks a failure to fetch the item revealed by an answer.
type nextItemError struct {
	err error
}

func (e *nextItemError) Error() string { return "fetch next item: " + e.err.Error() }

func (e *nextItemError) Unwrap() error { return e.err }
