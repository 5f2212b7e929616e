package bachroot

import (
	"context"
	"errors"
	"fmt"
)

// stage is one gated step of an operation.
type stage struct {
	name string
	run  func(ctx context.Context) error
}

// StepError reports the stage at which an operation stopped. Stages before
// it completed; nothing is rolled back.
type StepError struct {
	Op    string
	Stage string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Stage, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// runStages executes stages in order and stops at the first failure.
// A StepError from a nested operation is passed through unchanged so the
// innermost failing stage is the one reported.
func runStages(ctx context.Context, op string, stages []stage) error {
	for i, st := range stages {
		if err := ctx.Err(); err != nil {
			return &StepError{Op: op, Stage: st.name, Err: err}
		}
		debugf("%s: stage %d/%d: %s", op, i+1, len(stages), st.name)
		if err := st.run(ctx); err != nil {
			var nested *StepError
			if errors.As(err, &nested) {
				return err
			}
			return &StepError{Op: op, Stage: st.name, Err: err}
		}
	}
	return nil
}
