package workflow

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Workflow is an automation definition loaded from YAML at startup
type Workflow struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Triggers    []string `json:"triggers,omitempty" yaml:"triggers,omitempty"`
	Actions     []Action `json:"actions" yaml:"actions"`
}

// Action is one step of a workflow, dispatched to a provider by type
type Action struct {
	Name     string                 `json:"name" yaml:"name"`
	Provider string                 `json:"provider" yaml:"provider"`
	With     map[string]interface{} `json:"with,omitempty" yaml:"with,omitempty"`
}

// Execution statuses
const (
	StatusPending        = "pending"
	StatusRunning        = "running"
	StatusSuccess        = "success"
	StatusPartialFailure = "partial_failure"
	StatusFailed         = "failed"
)

// StepResult records one action's outcome within a run
type StepResult struct {
	Name     string                 `json:"name"`
	Provider string                 `json:"provider"`
	Status   string                 `json:"status"`
	Output   map[string]interface{} `json:"output,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// ExecutionResult is the full record of one workflow run
type ExecutionResult struct {
	RunID      string                 `json:"run_id"`
	WorkflowID string                 `json:"workflow_id"`
	Trigger    string                 `json:"trigger"`
	Status     string                 `json:"status"`
	Steps      []StepResult           `json:"steps"`
	Context    map[string]interface{} `json:"context,omitempty"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
}

// LoadDir reads all workflow definitions from *.yml and *.yaml files in dir.
// A file may hold a single workflow document or a top-level "workflows" list.
func LoadDir(dir string) ([]Workflow, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow directory %s: %w", dir, err)
	}

	var workflows []Workflow
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yml" && ext != ".yaml" {
			continue
		}
		loaded, err := LoadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, loaded...)
	}

	log.Printf("Loaded %d workflows from %s", len(workflows), dir)
	return workflows, nil
}

// LoadFile reads workflow definitions from one YAML file
func LoadFile(path string) ([]Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}

	var doc struct {
		Workflows []Workflow `yaml:"workflows"`
	}
	if err := yaml.Unmarshal(data, &doc); err == nil && len(doc.Workflows) > 0 {
		for i := range doc.Workflows {
			if err := validateWorkflow(&doc.Workflows[i]); err != nil {
				return nil, fmt.Errorf("invalid workflow in %s: %w", path, err)
			}
		}
		return doc.Workflows, nil
	}

	var single Workflow
	if err := yaml.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("failed to parse workflow file %s: %w", path, err)
	}
	if err := validateWorkflow(&single); err != nil {
		return nil, fmt.Errorf("invalid workflow in %s: %w", path, err)
	}
	return []Workflow{single}, nil
}

func validateWorkflow(w *Workflow) error {
	if w.ID == "" {
		return fmt.Errorf("workflow is missing an id")
	}
	if len(w.Actions) == 0 {
		return fmt.Errorf("workflow %s has no actions", w.ID)
	}
	for i, a := range w.Actions {
		if a.Provider == "" {
			return fmt.Errorf("workflow %s action %d has no provider", w.ID, i)
		}
	}
	return nil
}

var placeholderRe = regexp.MustCompile(`\{\{\s*([\w.]+)\s*\}\}`)

// RenderTemplate substitutes {{ path.to.value }} placeholders from the
// execution context. Unresolvable placeholders render as an empty string.
func RenderTemplate(tmpl string, execCtx map[string]interface{}) string {
	return placeholderRe.ReplaceAllStringFunc(tmpl, func(match string) string {
		path := placeholderRe.FindStringSubmatch(match)[1]
		if v, ok := lookupPath(execCtx, path); ok {
			return fmt.Sprint(v)
		}
		return ""
	})
}

// lookupPath walks a dotted path through nested string-keyed maps
func lookupPath(m map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var cur interface{} = m
	for _, part := range parts {
		node, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = node[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
