package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/alertforge/alertforge/internal/alerts"
	"github.com/alertforge/alertforge/internal/triage"
	"github.com/slack-go/slack"
)

// ConsoleProvider logs a templated message. Used for audit trails and as a
// visible stand-in during workflow development.
type ConsoleProvider struct{}

func (p *ConsoleProvider) Run(ctx context.Context, params map[string]interface{}, execCtx map[string]interface{}) (map[string]interface{}, error) {
	message := RenderTemplate(paramString(params, "message"), execCtx)
	log.Printf("[workflow] %s", message)
	return map[string]interface{}{"message": message}, nil
}

// HTTPProvider posts the execution context as JSON to a templated URL
type HTTPProvider struct {
	client *http.Client
}

func NewHTTPProvider(timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{client: &http.Client{Timeout: timeout}}
}

func (p *HTTPProvider) Run(ctx context.Context, params map[string]interface{}, execCtx map[string]interface{}) (map[string]interface{}, error) {
	url := RenderTemplate(paramString(params, "url"), execCtx)
	if url == "" {
		return nil, fmt.Errorf("http action requires a url parameter")
	}

	method := paramString(params, "method")
	if method == "" {
		method = http.MethodPost
	}

	var payload interface{} = execCtx
	if body, ok := params["body"]; ok {
		payload = body
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http action failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("http action returned status %d", resp.StatusCode)
	}
	return map[string]interface{}{"status_code": resp.StatusCode, "url": url}, nil
}

// EnrichProvider writes static key/value annotations into the execution
// context so later actions and the final report can see them.
type EnrichProvider struct{}

func (p *EnrichProvider) Run(ctx context.Context, params map[string]interface{}, execCtx map[string]interface{}) (map[string]interface{}, error) {
	added := make(map[string]interface{}, len(params))
	for k, v := range params {
		rendered := v
		if s, ok := v.(string); ok {
			rendered = RenderTemplate(s, execCtx)
		}
		execCtx[k] = rendered
		added[k] = rendered
	}
	return added, nil
}

// AIProvider asks the triage collaborator for a summary of the alert carried
// in the execution context and writes it back for later actions.
type AIProvider struct {
	Triager triage.Triager
}

func (p *AIProvider) Run(ctx context.Context, params map[string]interface{}, execCtx map[string]interface{}) (map[string]interface{}, error) {
	a := alertFromContext(execCtx)
	result, err := p.Triager.Triage(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("triage action failed: %w", err)
	}
	execCtx["triage_summary"] = result.Summary
	return map[string]interface{}{
		"summary":    result.Summary,
		"confidence": result.Confidence,
	}, nil
}

// alertFromContext rebuilds the alert carried under the "alert" context key
func alertFromContext(execCtx map[string]interface{}) *alerts.Alert {
	a := &alerts.Alert{}
	fields, ok := execCtx["alert"].(map[string]interface{})
	if !ok {
		return a
	}
	pick := func(key string) string {
		if s, ok := fields[key].(string); ok {
			return s
		}
		return ""
	}
	a.ID = pick("id")
	a.Title = pick("title")
	a.Severity = alerts.Severity(pick("severity"))
	a.Source = pick("source")
	a.Service = pick("service")
	return a
}

// SlackMessagePoster is the slice of the Slack API the provider needs
type SlackMessagePoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackProvider posts a templated message to a Slack channel
type SlackProvider struct {
	Client         SlackMessagePoster
	DefaultChannel string
}

func (p *SlackProvider) Run(ctx context.Context, params map[string]interface{}, execCtx map[string]interface{}) (map[string]interface{}, error) {
	channel := paramString(params, "channel")
	if channel == "" {
		channel = p.DefaultChannel
	}
	if channel == "" {
		return nil, fmt.Errorf("slack action requires a channel")
	}

	message := RenderTemplate(paramString(params, "message"), execCtx)
	_, ts, err := p.Client.PostMessageContext(ctx, channel, slack.MsgOptionText(message, false))
	if err != nil {
		return nil, fmt.Errorf("slack action failed: %w", err)
	}
	return map[string]interface{}{"channel": channel, "timestamp": ts}, nil
}

// NoopProvider does nothing and succeeds
type NoopProvider struct{}

func (p *NoopProvider) Run(ctx context.Context, params map[string]interface{}, execCtx map[string]interface{}) (map[string]interface{}, error) {
	return map[string]interface{}{}, nil
}

// SimulatedProvider stands in for provider types this binary does not know.
// It succeeds so workflow files can reference newer action types without
// breaking older deployments.
type SimulatedProvider struct{}

func (p *SimulatedProvider) Run(ctx context.Context, params map[string]interface{}, execCtx map[string]interface{}) (map[string]interface{}, error) {
	return map[string]interface{}{"simulated": true}, nil
}

func paramString(params map[string]interface{}, key string) string {
	if params == nil {
		return ""
	}
	if s, ok := params[key].(string); ok {
		return s
	}
	return ""
}
