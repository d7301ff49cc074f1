package notify

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/alertforge/alertforge/internal/alerts"
	"github.com/alertforge/alertforge/internal/pipeline"
	"github.com/slack-go/slack"
)

// MessagePoster is the slice of the Slack API the notifier needs
type MessagePoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackNotifier posts critical-alert summaries to a Slack channel.
// A nil notifier is valid and drops everything, so callers don't need to
// guard on whether Slack is configured.
type SlackNotifier struct {
	client  MessagePoster
	channel string
}

// NewSlackNotifier creates a notifier for the given bot token and channel.
// Returns nil when the token is empty.
func NewSlackNotifier(token, channel string) *SlackNotifier {
	if token == "" {
		return nil
	}
	return &SlackNotifier{
		client:  slack.New(token),
		channel: channel,
	}
}

// NewSlackClient creates a raw Slack client for callers that need the full
// API surface, like the workflow slack provider.
func NewSlackClient(token string) *slack.Client {
	return slack.New(token)
}

// NotifyReport posts a summary of the run's critical alerts and triage
// insights. Failures are logged, never returned: notification must not
// affect pipeline outcomes.
func (n *SlackNotifier) NotifyReport(ctx context.Context, report *pipeline.Report, critical []*alerts.Alert) {
	if n == nil || len(critical) == 0 {
		return
	}

	insights := make(map[string]string, len(report.TriageInsights))
	for _, insight := range report.TriageInsights {
		insights[insight.AlertID] = insight.Summary
	}

	for _, a := range critical {
		message := n.formatAlertMessage(a, insights[a.ID])
		_, _, err := n.client.PostMessageContext(ctx, n.channel, slack.MsgOptionText(message, false))
		if err != nil {
			log.Printf("Warning: Error posting alert to Slack: %v", err)
		}
	}
}

// formatAlertMessage renders one alert as a Slack message
func (n *SlackNotifier) formatAlertMessage(a *alerts.Alert, triageSummary string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s *%s*\n", severityEmoji(a.Severity), a.Title)
	fmt.Fprintf(&b, "*Severity:* %s\n", a.Severity)
	fmt.Fprintf(&b, "*Source:* %s\n", a.Source)
	if a.Service != "" {
		fmt.Fprintf(&b, "*Service:* %s\n", a.Service)
	}
	if a.Description != "" {
		fmt.Fprintf(&b, "*Description:* %s\n", a.Description)
	}
	if a.CorrelationID != "" {
		fmt.Fprintf(&b, "*Correlation:* %s\n", a.CorrelationID)
	}
	if triageSummary != "" {
		fmt.Fprintf(&b, "\n:robot_face: %s\n", triageSummary)
	}
	return b.String()
}

func severityEmoji(s alerts.Severity) string {
	switch s {
	case alerts.SeverityCritical:
		return "🚨"
	case alerts.SeverityHigh:
		return "🔴"
	case alerts.SeverityMedium:
		return "🟡"
	case alerts.SeverityLow:
		return "🔵"
	default:
		return "ℹ️"
	}
}
