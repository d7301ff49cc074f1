package notify

import (
	"context"
	"strings"
	"testing"

	"github.com/alertforge/alertforge/internal/alerts"
	"github.com/alertforge/alertforge/internal/pipeline"
	"github.com/slack-go/slack"
)

type fakePoster struct {
	channels []string
	posts    int
}

func (f *fakePoster) PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	f.channels = append(f.channels, channelID)
	f.posts++
	return channelID, "123.456", nil
}

func TestNilNotifierIsSafe(t *testing.T) {
	var n *SlackNotifier
	n.NotifyReport(context.Background(), &pipeline.Report{}, nil)

	if NewSlackNotifier("", "#alerts") != nil {
		t.Error("empty token must yield a nil notifier")
	}
}

func TestNotifyReportPostsCriticalAlerts(t *testing.T) {
	poster := &fakePoster{}
	n := &SlackNotifier{client: poster, channel: "#alerts"}

	critical := []*alerts.Alert{
		{ID: "a-1", Title: "DB down", Severity: alerts.SeverityCritical, Source: "prometheus", Service: "db"},
		{ID: "a-2", Title: "API down", Severity: alerts.SeverityCritical, Source: "prometheus", Service: "api"},
	}
	report := &pipeline.Report{
		TriageInsights: []pipeline.TriageInsight{
			{AlertID: "a-1", Summary: "primary database unreachable", Confidence: 0.9},
		},
	}

	n.NotifyReport(context.Background(), report, critical)

	if poster.posts != 2 {
		t.Fatalf("expected 2 posts, got %d", poster.posts)
	}
	for _, ch := range poster.channels {
		if ch != "#alerts" {
			t.Errorf("posted to %s, want #alerts", ch)
		}
	}
}

func TestNotifyReportSkipsEmptyBatch(t *testing.T) {
	poster := &fakePoster{}
	n := &SlackNotifier{client: poster, channel: "#alerts"}

	n.NotifyReport(context.Background(), &pipeline.Report{}, nil)
	if poster.posts != 0 {
		t.Errorf("expected no posts, got %d", poster.posts)
	}
}

func TestFormatAlertMessage(t *testing.T) {
	n := &SlackNotifier{channel: "#alerts"}
	a := &alerts.Alert{
		Title:         "DB down",
		Severity:      alerts.SeverityCritical,
		Source:        "prometheus",
		Service:       "db",
		Description:   "primary unreachable",
		CorrelationID: "c-1",
	}

	msg := n.formatAlertMessage(a, "replica promotion recommended")
	for _, want := range []string{"🚨", "DB down", "critical", "prometheus", "db", "primary unreachable", "c-1", "replica promotion recommended"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}
