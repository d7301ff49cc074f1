package pipeline

import (
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/alertforge/alertforge/internal/alerts"
	"gopkg.in/yaml.v3"
)

// Rule is a single noise-reduction rule evaluated against an alert.
// Field is resolved with the three-tier lookup (top-level field, then
// labels, then annotations). Value may be a scalar or a list depending
// on the operator.
type Rule struct {
	Name        string      `json:"name" yaml:"name"`
	Field       string      `json:"field" yaml:"field"`
	Operator    string      `json:"operator" yaml:"operator"`
	Value       interface{} `json:"value" yaml:"value"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
}

// FilterEngine evaluates configurable rules against alerts. Rules are
// combined with logical AND: an alert passes only if every rule evaluates
// true. The ruleset is shared mutable state across pipeline runs.
type FilterEngine struct {
	mu    sync.RWMutex
	rules []Rule
}

// NewFilterEngine creates a filter engine preloaded with the default ruleset
func NewFilterEngine() *FilterEngine {
	f := &FilterEngine{}
	f.rules = DefaultRules()
	log.Printf("FilterEngine initialized with %d default rules", len(f.rules))
	return f
}

// DefaultRules returns the shipped noise-reduction rules: keep only
// critical/high active alerts and drop test/demo noise.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:        "high_severity_only",
			Field:       "severity",
			Operator:    "in",
			Value:       []string{"critical", "high"},
			Description: "Only process critical and high severity alerts",
		},
		{
			Name:        "active_status_only",
			Field:       "status",
			Operator:    "equals",
			Value:       "active",
			Description: "Only process active alerts",
		},
		{
			Name:        "exclude_test_alerts",
			Field:       "title",
			Operator:    "not_regex",
			Value:       `.*test.*|.*demo.*`,
			Description: "Exclude test and demo alerts",
		},
	}
}

// AddRule appends a rule to the active ruleset
func (f *FilterEngine) AddRule(rule Rule) error {
	if rule.Name == "" || rule.Field == "" || rule.Operator == "" {
		return fmt.Errorf("rule must have name, field and operator")
	}

	f.mu.Lock()
	f.rules = append(f.rules, rule)
	f.mu.Unlock()

	log.Printf("Added filtering rule: %s", rule.Name)
	return nil
}

// RemoveRule removes a rule by name. Returns true if a rule was removed.
func (f *FilterEngine) RemoveRule(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	kept := f.rules[:0]
	removed := false
	for _, r := range f.rules {
		if r.Name == name {
			removed = true
			continue
		}
		kept = append(kept, r)
	}
	f.rules = kept

	if removed {
		log.Printf("Removed filtering rule: %s", name)
	}
	return removed
}

// Rules returns a copy of the active ruleset
func (f *FilterEngine) Rules() []Rule {
	f.mu.RLock()
	defer f.mu.RUnlock()

	rules := make([]Rule, len(f.rules))
	copy(rules, f.rules)
	return rules
}

// SetRules replaces the active ruleset
func (f *FilterEngine) SetRules(rules []Rule) {
	f.mu.Lock()
	f.rules = rules
	f.mu.Unlock()
}

// LoadRulesFile replaces the active ruleset with rules from a YAML file
// laid out as a top-level "rules" list.
func (f *FilterEngine) LoadRulesFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read rules file: %w", err)
	}

	var doc struct {
		Rules []Rule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}

	f.SetRules(doc.Rules)
	log.Printf("Loaded %d filtering rules from %s", len(doc.Rules), path)
	return nil
}

// Passes returns true if the alert passes every active rule.
// An empty ruleset passes everything.
func (f *FilterEngine) Passes(a *alerts.Alert) bool {
	for _, rule := range f.Rules() {
		if !applyRule(a, rule) {
			return false
		}
	}
	return true
}

// FilterAlerts returns the alerts that pass all active rules, in input order
func (f *FilterEngine) FilterAlerts(batch []*alerts.Alert) []*alerts.Alert {
	passed := make([]*alerts.Alert, 0, len(batch))
	for _, a := range batch {
		if f.Passes(a) {
			passed = append(passed, a)
		}
	}
	log.Printf("Filtering complete: %d total, %d passed, %d filtered out",
		len(batch), len(passed), len(batch)-len(passed))
	return passed
}

// applyRule evaluates one rule against an alert. Unknown operators and
// evaluation errors fail open: a misconfigured rule must never silently
// block all alerts.
func applyRule(a *alerts.Alert, rule Rule) bool {
	resolved, _ := a.Field(rule.Field)

	switch rule.Operator {
	case "equals":
		return resolved == stringify(rule.Value)
	case "in":
		return contains(collection(rule.Value), resolved)
	case "not_in":
		return !contains(collection(rule.Value), resolved)
	case "regex":
		matched, err := matchPattern(stringify(rule.Value), resolved)
		if err != nil {
			log.Printf("Error applying rule %q: %v", rule.Name, err)
			return true
		}
		return matched
	case "not_regex":
		matched, err := matchPattern(stringify(rule.Value), resolved)
		if err != nil {
			log.Printf("Error applying rule %q: %v", rule.Name, err)
			return true
		}
		return !matched
	case "contains":
		return strings.Contains(strings.ToLower(resolved), strings.ToLower(stringify(rule.Value)))
	case "not_contains":
		return !strings.Contains(strings.ToLower(resolved), strings.ToLower(stringify(rule.Value)))
	default:
		log.Printf("Unknown operator %q in rule %q", rule.Operator, rule.Name)
		return true
	}
}

// matchPattern performs a case-insensitive regexp search
func matchPattern(pattern, value string) (bool, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(value), nil
}

// stringify renders a rule value for comparison
func stringify(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// collection renders a rule value as a collection of strings. Scalar values
// become a single-element collection.
func collection(v interface{}) []string {
	switch val := v.(type) {
	case []string:
		return val
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			out = append(out, stringify(item))
		}
		return out
	case nil:
		return nil
	default:
		return []string{stringify(val)}
	}
}

func contains(set []string, value string) bool {
	for _, s := range set {
		if s == value {
			return true
		}
	}
	return false
}
