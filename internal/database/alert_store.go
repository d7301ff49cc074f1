package database

import (
	"errors"
	"fmt"

	"github.com/alertforge/alertforge/internal/alerts"
	"github.com/alertforge/alertforge/internal/pipeline"
	"github.com/alertforge/alertforge/internal/workflow"
	"gorm.io/gorm"
)

// ErrAlertNotFound is returned when an alert id does not exist
var ErrAlertNotFound = errors.New("alert not found")

// AlertStore persists processed alerts and pipeline artifacts
type AlertStore struct {
	db *gorm.DB
}

// NewAlertStore creates a store over the given connection
func NewAlertStore(db *gorm.DB) *AlertStore {
	return &AlertStore{db: db}
}

// AlertFilter narrows List results. Zero values mean "any".
type AlertFilter struct {
	Severity string
	Status   string
	Source   string
	Service  string
}

// Save upserts an alert by id
func (s *AlertStore) Save(a *alerts.Alert) error {
	record := toRecord(a)
	if err := s.db.Save(record).Error; err != nil {
		return fmt.Errorf("failed to save alert %s: %w", a.ID, err)
	}
	return nil
}

// Get returns one alert by id
func (s *AlertStore) Get(id string) (*alerts.Alert, error) {
	var record AlertRecord
	err := s.db.First(&record, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAlertNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load alert %s: %w", id, err)
	}
	return fromRecord(&record), nil
}

// List returns a page of alerts matching the filter, newest first,
// along with the total match count. offset and limit come straight from
// the parsed pagination parameters.
func (s *AlertStore) List(filter AlertFilter, offset, limit int) ([]*alerts.Alert, int64, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	query := s.db.Model(&AlertRecord{})
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Source != "" {
		query = query.Where("source = ?", filter.Source)
	}
	if filter.Service != "" {
		query = query.Where("service = ?", filter.Service)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	var records []AlertRecord
	err := query.Order("started_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list alerts: %w", err)
	}

	out := make([]*alerts.Alert, 0, len(records))
	for i := range records {
		out = append(out, fromRecord(&records[i]))
	}
	return out, total, nil
}

// Update applies a partial patch to an alert. Only status, severity and
// description are patchable over the API.
func (s *AlertStore) Update(id string, patch map[string]interface{}) (*alerts.Alert, error) {
	allowed := map[string]bool{"status": true, "severity": true, "description": true}
	updates := make(map[string]interface{})
	for k, v := range patch {
		if allowed[k] {
			updates[k] = v
		}
	}
	if len(updates) == 0 {
		return s.Get(id)
	}

	result := s.db.Model(&AlertRecord{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update alert %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrAlertNotFound
	}
	return s.Get(id)
}

// Delete removes an alert by id
func (s *AlertStore) Delete(id string) error {
	result := s.db.Delete(&AlertRecord{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete alert %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlertNotFound
	}
	return nil
}

// SaveCorrelation persists one correlation result
func (s *AlertStore) SaveCorrelation(c *pipeline.Correlation) error {
	ids := make([]interface{}, 0, len(c.AlertIDs))
	for _, id := range c.AlertIDs {
		ids = append(ids, id)
	}
	record := CorrelationRecord{
		ID:         c.ID,
		Pattern:    c.Pattern,
		Confidence: c.Confidence,
		Service:    c.Service,
		AlertIDs:   JSONB{"ids": ids},
		CreatedAt:  c.CreatedAt,
	}
	if err := s.db.Save(&record).Error; err != nil {
		return fmt.Errorf("failed to save correlation %s: %w", c.ID, err)
	}
	return nil
}

// SaveWorkflowRun persists one workflow execution outcome
func (s *AlertStore) SaveWorkflowRun(r *workflow.ExecutionResult) error {
	steps := make([]interface{}, 0, len(r.Steps))
	for _, step := range r.Steps {
		steps = append(steps, map[string]interface{}{
			"name":     step.Name,
			"provider": step.Provider,
			"status":   step.Status,
			"error":    step.Error,
		})
	}
	record := WorkflowRunRecord{
		ID:         r.RunID,
		WorkflowID: r.WorkflowID,
		Trigger:    r.Trigger,
		Status:     r.Status,
		Steps:      JSONB{"steps": steps},
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	if err := s.db.Save(&record).Error; err != nil {
		return fmt.Errorf("failed to save workflow run %s: %w", r.RunID, err)
	}
	return nil
}

// FilterRules returns all enabled persisted filter rules as engine rules
func (s *AlertStore) FilterRules() ([]pipeline.Rule, error) {
	var records []FilterRuleRecord
	if err := s.db.Where("enabled = ?", true).Order("id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load filter rules: %w", err)
	}

	rules := make([]pipeline.Rule, 0, len(records))
	for _, r := range records {
		rules = append(rules, pipeline.Rule{
			Name:        r.Name,
			Field:       r.Field,
			Operator:    r.Operator,
			Value:       ruleValue(r.Value),
			Description: r.Description,
		})
	}
	return rules, nil
}

// SaveFilterRule persists a filter rule added over the API
func (s *AlertStore) SaveFilterRule(rule pipeline.Rule) error {
	value := JSONB{}
	if list, ok := rule.Value.([]interface{}); ok {
		value["values"] = list
	} else if list, ok := rule.Value.([]string); ok {
		vals := make([]interface{}, 0, len(list))
		for _, v := range list {
			vals = append(vals, v)
		}
		value["values"] = vals
	} else {
		value["value"] = rule.Value
	}

	record := FilterRuleRecord{
		Name:        rule.Name,
		Field:       rule.Field,
		Operator:    rule.Operator,
		Value:       value,
		Description: rule.Description,
		Enabled:     true,
	}
	if err := s.db.Create(&record).Error; err != nil {
		return fmt.Errorf("failed to save filter rule %s: %w", rule.Name, err)
	}
	return nil
}

// DeleteFilterRule removes a persisted rule by name
func (s *AlertStore) DeleteFilterRule(name string) error {
	result := s.db.Delete(&FilterRuleRecord{}, "name = ?", name)
	if result.Error != nil {
		return fmt.Errorf("failed to delete filter rule %s: %w", name, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("filter rule %s not found", name)
	}
	return nil
}

// ruleValue unwraps the JSONB envelope back into an engine rule value
func ruleValue(v JSONB) interface{} {
	if list, ok := v["values"]; ok {
		return list
	}
	return v["value"]
}

func toRecord(a *alerts.Alert) *AlertRecord {
	enrichments := make([]interface{}, 0, len(a.Enrichments))
	for _, e := range a.Enrichments {
		enrichments = append(enrichments, map[string]interface{}{
			"key":        e.Key,
			"value":      e.Value,
			"source":     e.Source,
			"created_at": e.CreatedAt,
		})
	}
	return &AlertRecord{
		ID:            a.ID,
		Title:         a.Title,
		Description:   a.Description,
		Severity:      string(a.Severity),
		Status:        string(a.Status),
		Source:        a.Source,
		Service:       a.Service,
		Fingerprint:   a.Fingerprint,
		Labels:        stringMapToJSONB(a.Labels),
		Annotations:   stringMapToJSONB(a.Annotations),
		Enrichments:   JSONB{"items": enrichments},
		CorrelationID: a.CorrelationID,
		StartedAt:     a.StartedAt,
	}
}

func fromRecord(r *AlertRecord) *alerts.Alert {
	return &alerts.Alert{
		ID:            r.ID,
		Title:         r.Title,
		Description:   r.Description,
		Severity:      alerts.Severity(r.Severity),
		Status:        alerts.Status(r.Status),
		Source:        r.Source,
		Service:       r.Service,
		Fingerprint:   r.Fingerprint,
		Labels:        jsonbToStringMap(r.Labels),
		Annotations:   jsonbToStringMap(r.Annotations),
		CorrelationID: r.CorrelationID,
		StartedAt:     r.StartedAt,
	}
}

func stringMapToJSONB(m map[string]string) JSONB {
	if m == nil {
		return nil
	}
	out := make(JSONB, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func jsonbToStringMap(j JSONB) map[string]string {
	if len(j) == 0 {
		return nil
	}
	out := make(map[string]string, len(j))
	for k, v := range j {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
