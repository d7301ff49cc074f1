package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ErrWorkflowNotFound is returned by Execute for an unknown workflow id
var ErrWorkflowNotFound = errors.New("workflow not found")

// Provider executes one workflow action. The execution context carries the
// trigger payload plus mutations written by earlier actions; providers may
// write to it so later actions see their output.
type Provider interface {
	Run(ctx context.Context, params map[string]interface{}, execCtx map[string]interface{}) (map[string]interface{}, error)
}

// Engine executes workflows against a provider registry. Workflows are
// loaded once at startup and the registry is read-only afterward.
type Engine struct {
	workflows map[string]Workflow
	providers map[string]Provider
	fallback  Provider
}

// NewEngine creates a workflow engine over the given definitions. Unknown
// provider types dispatch to a simulated no-op so new workflow files do not
// break older binaries.
func NewEngine(workflows []Workflow) *Engine {
	e := &Engine{
		workflows: make(map[string]Workflow, len(workflows)),
		providers: make(map[string]Provider),
		fallback:  &SimulatedProvider{},
	}
	for _, w := range workflows {
		e.workflows[w.ID] = w
	}
	e.providers["console"] = &ConsoleProvider{}
	e.providers["http"] = NewHTTPProvider(10 * time.Second)
	e.providers["enrich"] = &EnrichProvider{}
	e.providers["noop"] = &NoopProvider{}
	return e
}

// RegisterProvider installs or replaces a provider for an action type.
// Must be called before any Execute.
func (e *Engine) RegisterProvider(name string, p Provider) {
	e.providers[name] = p
}

// Workflows returns all loaded definitions sorted by id
func (e *Engine) Workflows() []Workflow {
	out := make([]Workflow, 0, len(e.workflows))
	for _, w := range e.workflows {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns a workflow definition by id
func (e *Engine) Get(id string) (Workflow, bool) {
	w, ok := e.workflows[id]
	return w, ok
}

// MatchTrigger returns the workflows that declare the given trigger
func (e *Engine) MatchTrigger(trigger string) []Workflow {
	var matched []Workflow
	for _, w := range e.Workflows() {
		for _, t := range w.Triggers {
			if t == trigger {
				matched = append(matched, w)
				break
			}
		}
	}
	return matched
}

// Execute runs a workflow by id. Actions run strictly in order; a failing
// action is recorded and execution continues with the next one. The final
// status is success if every step succeeded, failed if every step failed,
// partial_failure otherwise.
func (e *Engine) Execute(ctx context.Context, workflowID, trigger string, extra map[string]interface{}) (*ExecutionResult, error) {
	wf, ok := e.workflows[workflowID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, workflowID)
	}

	execCtx := map[string]interface{}{
		"trigger":       trigger,
		"workflow_id":   wf.ID,
		"workflow_name": wf.Name,
	}
	for k, v := range extra {
		execCtx[k] = v
	}

	result := &ExecutionResult{
		RunID:      uuid.New().String(),
		WorkflowID: wf.ID,
		Trigger:    trigger,
		Status:     StatusPending,
		Steps:      make([]StepResult, 0, len(wf.Actions)),
		StartedAt:  time.Now().UTC(),
	}
	result.Status = StatusRunning
	log.Printf("Executing workflow %s (run %s, trigger=%s)", wf.ID, result.RunID, trigger)

	succeeded, failed := 0, 0
	for _, action := range wf.Actions {
		step := StepResult{Name: action.Name, Provider: action.Provider}

		provider, ok := e.providers[action.Provider]
		if !ok {
			provider = e.fallback
		}

		output, err := provider.Run(ctx, action.With, execCtx)
		if err != nil {
			step.Status = StatusFailed
			step.Error = err.Error()
			failed++
			log.Printf("Workflow %s step %q failed: %v", wf.ID, action.Name, err)
		} else {
			step.Status = StatusSuccess
			step.Output = output
			succeeded++
		}
		result.Steps = append(result.Steps, step)
	}

	switch {
	case failed == 0:
		result.Status = StatusSuccess
	case succeeded == 0:
		result.Status = StatusFailed
	default:
		result.Status = StatusPartialFailure
	}
	result.Context = execCtx
	result.FinishedAt = time.Now().UTC()

	log.Printf("Workflow %s run %s finished: %s (%d succeeded, %d failed)",
		wf.ID, result.RunID, result.Status, succeeded, failed)
	return result, nil
}
