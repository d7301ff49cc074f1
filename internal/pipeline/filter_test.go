package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alertforge/alertforge/internal/alerts"
)

func makeAlert(title string, severity alerts.Severity, status alerts.Status) *alerts.Alert {
	a := &alerts.Alert{
		Title:    title,
		Severity: severity,
		Status:   status,
		Source:   "test-source",
		Service:  "api",
	}
	a.Prepare(time.Now().UTC())
	return a
}

func TestDefaultRules(t *testing.T) {
	f := NewFilterEngine()

	tests := []struct {
		name  string
		alert *alerts.Alert
		want  bool
	}{
		{"critical active passes", makeAlert("Disk full", alerts.SeverityCritical, alerts.StatusActive), true},
		{"high active passes", makeAlert("High latency", alerts.SeverityHigh, alerts.StatusActive), true},
		{"medium filtered", makeAlert("Slow query", alerts.SeverityMedium, alerts.StatusActive), false},
		{"info filtered", makeAlert("Deploy done", alerts.SeverityInfo, alerts.StatusActive), false},
		{"resolved filtered", makeAlert("Disk full", alerts.SeverityCritical, alerts.StatusResolved), false},
		{"test alert filtered", makeAlert("This is a test alert", alerts.SeverityCritical, alerts.StatusActive), false},
		{"demo alert filtered", makeAlert("Demo: outage drill", alerts.SeverityHigh, alerts.StatusActive), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Passes(tt.alert); got != tt.want {
				t.Errorf("Passes() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOperators(t *testing.T) {
	a := makeAlert("CPU saturation on worker-3", alerts.SeverityHigh, alerts.StatusActive)
	a.Labels = map[string]string{"team": "platform", "region": "eu-west-1"}
	a.Annotations = map[string]string{"runbook": "https://wiki/runbooks/cpu"}

	tests := []struct {
		name string
		rule Rule
		want bool
	}{
		{"equals match", Rule{Name: "r", Field: "severity", Operator: "equals", Value: "high"}, true},
		{"equals miss", Rule{Name: "r", Field: "severity", Operator: "equals", Value: "critical"}, false},
		{"in match", Rule{Name: "r", Field: "severity", Operator: "in", Value: []string{"critical", "high"}}, true},
		{"in miss", Rule{Name: "r", Field: "severity", Operator: "in", Value: []string{"low"}}, false},
		{"not_in match", Rule{Name: "r", Field: "source", Operator: "not_in", Value: []string{"staging"}}, true},
		{"regex match", Rule{Name: "r", Field: "title", Operator: "regex", Value: "cpu.*worker"}, true},
		{"not_regex miss", Rule{Name: "r", Field: "title", Operator: "not_regex", Value: "saturation"}, false},
		{"contains match", Rule{Name: "r", Field: "title", Operator: "contains", Value: "WORKER"}, true},
		{"not_contains match", Rule{Name: "r", Field: "title", Operator: "not_contains", Value: "database"}, true},
		{"label lookup", Rule{Name: "r", Field: "team", Operator: "equals", Value: "platform"}, true},
		{"annotation lookup", Rule{Name: "r", Field: "runbook", Operator: "contains", Value: "runbooks"}, true},
		{"missing field equals empty", Rule{Name: "r", Field: "absent", Operator: "equals", Value: ""}, true},
		{"yaml list values", Rule{Name: "r", Field: "severity", Operator: "in", Value: []interface{}{"high", "medium"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := applyRule(a, tt.rule); got != tt.want {
				t.Errorf("applyRule(%s) = %v, want %v", tt.rule.Operator, got, tt.want)
			}
		})
	}
}

func TestFailOpen(t *testing.T) {
	a := makeAlert("Disk full", alerts.SeverityCritical, alerts.StatusActive)

	t.Run("unknown operator passes", func(t *testing.T) {
		rule := Rule{Name: "bad", Field: "severity", Operator: "fuzzy_match", Value: "x"}
		if !applyRule(a, rule) {
			t.Error("unknown operator should fail open")
		}
	})

	t.Run("invalid regex passes", func(t *testing.T) {
		rule := Rule{Name: "bad", Field: "title", Operator: "regex", Value: "[unclosed"}
		if !applyRule(a, rule) {
			t.Error("invalid regex should fail open")
		}
	})
}

func TestEmptyRulesetPassesAll(t *testing.T) {
	f := &FilterEngine{}
	a := makeAlert("Anything", alerts.SeverityInfo, alerts.StatusResolved)
	if !f.Passes(a) {
		t.Error("empty ruleset should pass every alert")
	}
}

func TestAddRemoveRules(t *testing.T) {
	f := NewFilterEngine()
	initial := len(f.Rules())

	if err := f.AddRule(Rule{Name: "block_staging", Field: "source", Operator: "not_in", Value: []string{"staging"}}); err != nil {
		t.Fatalf("AddRule failed: %v", err)
	}
	if got := len(f.Rules()); got != initial+1 {
		t.Errorf("expected %d rules, got %d", initial+1, got)
	}

	if err := f.AddRule(Rule{Name: "", Field: "x", Operator: "equals"}); err == nil {
		t.Error("expected error for rule without name")
	}

	if !f.RemoveRule("block_staging") {
		t.Error("RemoveRule should report removal")
	}
	if f.RemoveRule("block_staging") {
		t.Error("RemoveRule should report false for missing rule")
	}
}

func TestFilterAlertsPreservesOrder(t *testing.T) {
	f := NewFilterEngine()
	batch := []*alerts.Alert{
		makeAlert("First failure", alerts.SeverityCritical, alerts.StatusActive),
		makeAlert("Low noise", alerts.SeverityLow, alerts.StatusActive),
		makeAlert("Second failure", alerts.SeverityHigh, alerts.StatusActive),
	}

	passed := f.FilterAlerts(batch)
	if len(passed) != 2 {
		t.Fatalf("expected 2 passed alerts, got %d", len(passed))
	}
	if passed[0].Title != "First failure" || passed[1].Title != "Second failure" {
		t.Errorf("input order not preserved: %s, %s", passed[0].Title, passed[1].Title)
	}
}

func TestLoadRulesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yml")
	content := `rules:
  - name: critical_only
    field: severity
    operator: equals
    value: critical
  - name: exclude_batch_jobs
    field: service
    operator: not_in
    value: [cron, batch]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	f := NewFilterEngine()
	if err := f.LoadRulesFile(path); err != nil {
		t.Fatalf("LoadRulesFile failed: %v", err)
	}

	rules := f.Rules()
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}
	if rules[0].Name != "critical_only" {
		t.Errorf("unexpected first rule: %s", rules[0].Name)
	}

	if !f.Passes(makeAlert("DB down", alerts.SeverityCritical, alerts.StatusActive)) {
		t.Error("critical alert should pass loaded rules")
	}
	if f.Passes(makeAlert("DB slow", alerts.SeverityHigh, alerts.StatusActive)) {
		t.Error("high alert should be filtered by loaded rules")
	}
}
