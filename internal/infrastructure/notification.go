package infrastructure

import (
	"context"
	"fmt"
	"strings"

	"github.com/yourusername/vidsplit-go/internal/domain"
	"go.uber.org/zap"
)

// NotificationService sends desktop notifications
type NotificationService struct {
	config *domain.NotificationConfig
	runner CommandRunner
	logger *zap.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(config *domain.NotificationConfig, runner CommandRunner, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		config: config,
		runner: runner,
		logger: logger,
	}
}

// Send sends a notification
func (n *NotificationService) Send(ctx context.Context, title, message string) error {
	if !n.config.Enabled {
		n.logger.Debug("Notifications disabled, skipping",
			zap.String("title", title),
			zap.String("message", message))
		return nil
	}

	var cmd Command
	switch n.config.Method {
	case "osascript":
		script := fmt.Sprintf(`display notification "%s" with title "%s"`, escapeAppleScript(message), escapeAppleScript(title))
		cmd = Command{Binary: "osascript", Args: []string{"-e", script}}
	case "notify-send":
		cmd = Command{Binary: "notify-send", Args: []string{title, message}}
	default:
		n.logger.Warn("Unknown notification method", zap.String("method", n.config.Method))
		return nil
	}

	if err := n.runner.Run(ctx, cmd); err != nil {
		n.logger.Error("Failed to send notification",
			zap.String("method", n.config.Method),
			zap.Error(err))
		return err
	}

	n.logger.Debug("Notification sent",
		zap.String("title", title),
		zap.String("message", message))
	return nil
}

// NotifyOutcome sends one notification summarizing a finished session
func (n *NotificationService) NotifyOutcome(ctx context.Context, outcome *domain.Outcome) error {
	var title string
	switch outcome.Kind {
	case domain.OutcomeDelivered:
		title = "Download Completed"
	case domain.OutcomeCancelled:
		title = "Download Cancelled"
	default:
		title = "Download Failed"
	}
	message := fmt.Sprintf("%s: %s", truncateString(outcome.URL, 30), outcome.Message())
	return n.Send(ctx, title, message)
}

// NotifyingReporter sends a desktop notification, then hands the outcome to next
type NotifyingReporter struct {
	notifier *NotificationService
	next     domain.Reporter
}

// NewNotifyingReporter wraps next; a nil next only notifies
func NewNotifyingReporter(notifier *NotificationService, next domain.Reporter) *NotifyingReporter {
	return &NotifyingReporter{notifier: notifier, next: next}
}

// Report notifies and forwards. Notification errors never fail the report.
func (r *NotifyingReporter) Report(ctx context.Context, outcome *domain.Outcome) error {
	r.notifier.NotifyOutcome(ctx, outcome)
	if r.next == nil {
		return nil
	}
	return r.next.Report(ctx, outcome)
}

func escapeAppleScript(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// truncateString truncates a string to the specified length
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
