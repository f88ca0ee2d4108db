// Package flow runs multi-step actions (hash, submit transaction, write the
// relay record, ...) in order, reporting each step and stopping at the first
// failure.
package flow

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
)

// StepError names the step that aborted a flow.
type StepError struct {
	Label string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("Error [%s]: %v", e.Label, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

type Step struct {
	Label    string
	Callback func(ctx context.Context) error
	Done     bool
}

type Flow struct {
	Steps    []*Step
	progress *Progress
}

// New creates a flow reporting to progress, which may be nil.
func New(progress *Progress) *Flow {
	return &Flow{progress: progress}
}

func (f *Flow) Add(label string, callback func(ctx context.Context) error) {
	f.Steps = append(f.Steps, &Step{Label: label, Callback: callback})
}

// Run executes the steps in order. The first failing step aborts the rest
// and its error is returned as a *StepError.
func (f *Flow) Run(ctx context.Context) error {
	f.progress.Reset()

	for _, step := range f.Steps {
		if err := ctx.Err(); err != nil {
			return f.fail(step, err)
		}
		f.progress.SetActiveStep(step.Label)
		log.Debug("flow [Run]", "step", step.Label)
		if err := step.Callback(ctx); err != nil {
			return f.fail(step, err)
		}
		step.Done = true
	}

	f.progress.SetCompleted()
	return nil
}

func (f *Flow) fail(step *Step, err error) error {
	stepErr := &StepError{Label: step.Label, Err: err}
	log.Error("flow [Run]", "step", step.Label, "err", err)
	f.progress.SetError(stepErr)
	return stepErr
}
