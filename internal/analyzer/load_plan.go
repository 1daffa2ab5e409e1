package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourbasic/graph"
)

// ErrCycle is returned when load steps depend on each other in a loop
var ErrCycle = errors.New("load plan contains a dependency cycle")

// Step is one named stage of a load
type Step struct {
	Name  string
	After []string
	Run   func(ctx context.Context) error
}

// LoadPlan runs steps in dependency order
type LoadPlan struct {
	Steps  []Step
	Logger *logrus.Logger
}

// NewLoadPlan creates an empty load plan
func NewLoadPlan(logger *logrus.Logger) *LoadPlan {
	return &LoadPlan{Logger: logger}
}

// Add appends a step that runs after the named steps
func (lp *LoadPlan) Add(name string, run func(ctx context.Context) error, after ...string) {
	lp.Steps = append(lp.Steps, Step{Name: name, After: after, Run: run})
}

// Order returns the step names in an order that honours every dependency
func (lp *LoadPlan) Order() ([]string, error) {
	index := make(map[string]int, len(lp.Steps))
	for i, step := range lp.Steps {
		if _, dup := index[step.Name]; dup {
			return nil, fmt.Errorf("duplicate load step %q", step.Name)
		}
		index[step.Name] = i
	}

	g := graph.New(len(lp.Steps))
	for i, step := range lp.Steps {
		for _, dep := range step.After {
			j, ok := index[dep]
			if !ok {
				return nil, fmt.Errorf("load step %q depends on unknown step %q", step.Name, dep)
			}
			g.Add(j, i)
		}
	}

	order, ok := graph.TopSort(g)
	if !ok {
		return nil, ErrCycle
	}

	names := make([]string, len(order))
	for i, v := range order {
		names[i] = lp.Steps[v].Name
	}
	return names, nil
}

// Run validates the plan, then executes the steps one by one. The first
// failing step aborts the rest.
func (lp *LoadPlan) Run(ctx context.Context) error {
	order, err := lp.Order()
	if err != nil {
		return err
	}

	steps := make(map[string]Step, len(lp.Steps))
	for _, step := range lp.Steps {
		steps[step.Name] = step
	}

	for i, name := range order {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		lp.Logger.Infof("[%d/%d] %s", i+1, len(order), name)
		if err := steps[name].Run(ctx); err != nil {
			lp.Logger.Errorf("Step %s failed: %v", name, err)
			return fmt.Errorf("%s: %w", name, err)
		}
		lp.Logger.Debugf("Step %s finished in %s", name, time.Since(start))
	}

	return nil
}
