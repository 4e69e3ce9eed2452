// Package saga runs an ordered list of steps and, on failure, undoes the
// completed ones in reverse order.
package saga

import (
	"context"
	"errors"
	"fmt"

	"canchas/pkg/logger"
)

type Step struct {
	Name       string
	Execute    func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

func NewStep(name string, execute, compensate func(ctx context.Context) error) *Step {
	return &Step{
		Name:       name,
		Execute:    execute,
		Compensate: compensate,
	}
}

type Saga struct {
	name  string
	log   *logger.Logger
	steps []*Step
}

func New(name string, log *logger.Logger) *Saga {
	return &Saga{name: name, log: log}
}

func (s *Saga) Add(step *Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

func (s *Saga) Len() int {
	return len(s.steps)
}

// Run executes the steps in order. When a step fails and compensate is true,
// every step that already completed is compensated, last first. The step's
// own error is returned; compensation failures are logged and joined to it.
func (s *Saga) Run(ctx context.Context, compensate bool) error {
	for i, step := range s.steps {
		err := step.Execute(ctx)
		if err == nil {
			continue
		}

		s.log.Debug("Saga step failed",
			"saga", s.name,
			"step", step.Name,
			"error", err,
		)
		if !compensate {
			return err
		}
		if cerr := s.compensate(ctx, s.steps[:i]); cerr != nil {
			return errors.Join(err, cerr)
		}
		return err
	}
	return nil
}

func (s *Saga) compensate(ctx context.Context, done []*Step) error {
	// The request context may already be cancelled; undo must still run.
	ctx = context.WithoutCancel(ctx)

	var errs []error
	for i := len(done) - 1; i >= 0; i-- {
		step := done[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			s.log.Error("Saga compensation failed",
				"saga", s.name,
				"step", step.Name,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("compensate %s: %w", step.Name, err))
		}
	}
	return errors.Join(errs...)
}
