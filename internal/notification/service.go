package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/martforge/martforge-api/internal/models"
	"github.com/martforge/martforge-api/internal/repository"
)

// Event is an operational occurrence worth surfacing to an operator.
type Event struct {
	OrgID    *int
	Event    models.NotificationEvent
	Severity models.NotificationSeverity
	Title    string
	Message  string
	Metadata map[string]interface{}
}

// Service persists events and fans them out to the configured channels.
// Delivery failures are logged, never propagated: alerting must not break
// the pipeline it reports on.
type Service interface {
	Publish(ctx context.Context, evt Event) (models.Notification, error)
	NotifyRunFailed(ctx context.Context, jobName string, orgID int, reason string) error
	NotifyTenantSkipped(ctx context.Context, tenantName, reason string) error
	NotifyPassComplete(ctx context.Context, jobName, summary string, allSucceeded bool) error
	ListRecent(ctx context.Context, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, notificationID string) (models.Notification, error)
}

type service struct {
	repo      repository.NotificationRepository
	logger    zerolog.Logger
	notifiers []Notifier
}

func NewService(repo repository.NotificationRepository, logger zerolog.Logger, notifiers ...Notifier) Service {
	active := make([]Notifier, 0, len(notifiers))
	for _, notifier := range notifiers {
		if notifier != nil {
			active = append(active, notifier)
		}
	}
	return &service{
		repo:      repo,
		logger:    logger.With().Str("component", "notification_service").Logger(),
		notifiers: active,
	}
}

func (s *service) Publish(ctx context.Context, evt Event) (models.Notification, error) {
	if evt.Event == "" {
		return models.Notification{}, fmt.Errorf("event type is required")
	}
	if evt.Severity == "" {
		evt.Severity = models.NotificationSeverityInfo
	}
	title := strings.TrimSpace(evt.Title)
	if title == "" {
		title = string(evt.Event)
	}

	notif, err := s.repo.Create(ctx, repository.CreateNotificationParams{
		OrgID:    evt.OrgID,
		Event:    evt.Event,
		Severity: evt.Severity,
		Title:    title,
		Message:  strings.TrimSpace(evt.Message),
		Metadata: evt.Metadata,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("event_type", string(evt.Event)).Msg("failed to persist notification")
		return models.Notification{}, err
	}

	for _, notifier := range s.notifiers {
		if err := notifier.Notify(ctx, notif); err != nil {
			logNotifyError(s.logger, err, channelName(notifier), notif)
		}
	}
	return notif, nil
}

// NotifyRunFailed satisfies the ETL runner's failure-listener contract.
func (s *service) NotifyRunFailed(ctx context.Context, jobName string, orgID int, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown error"
	}
	_, err := s.Publish(ctx, Event{
		OrgID:    &orgID,
		Event:    models.NotificationEventRunFailed,
		Severity: models.NotificationSeverityError,
		Title:    fmt.Sprintf("ETL run failed: %s", jobName),
		Message:  fmt.Sprintf("Job %s failed for organization %d: %s", jobName, orgID, reason),
		Metadata: map[string]interface{}{
			"job":    jobName,
			"org_id": orgID,
			"reason": reason,
		},
	})
	return err
}

func (s *service) NotifyTenantSkipped(ctx context.Context, tenantName, reason string) error {
	_, err := s.Publish(ctx, Event{
		Event:    models.NotificationEventTenantSkipped,
		Severity: models.NotificationSeverityWarning,
		Title:    fmt.Sprintf("Tenant skipped: %s", tenantName),
		Message:  fmt.Sprintf("Tenant %s was skipped this pass: %s", tenantName, reason),
		Metadata: map[string]interface{}{
			"tenant": tenantName,
			"reason": reason,
		},
	})
	return err
}

func (s *service) NotifyPassComplete(ctx context.Context, jobName, summary string, allSucceeded bool) error {
	severity := models.NotificationSeverityInfo
	if !allSucceeded {
		severity = models.NotificationSeverityWarning
	}
	_, err := s.Publish(ctx, Event{
		Event:    models.NotificationEventPassComplete,
		Severity: severity,
		Title:    fmt.Sprintf("ETL pass complete: %s", jobName),
		Message:  fmt.Sprintf("Job %s finished across all tenants: %s", jobName, summary),
		Metadata: map[string]interface{}{
			"job":     jobName,
			"summary": summary,
		},
	})
	return err
}

func (s *service) ListRecent(ctx context.Context, limit int) ([]models.Notification, error) {
	return s.repo.ListRecent(ctx, limit)
}

func (s *service) MarkRead(ctx context.Context, notificationID string) (models.Notification, error) {
	return s.repo.MarkRead(ctx, notificationID)
}

func channelName(n Notifier) string {
	type named interface {
		String() string
	}
	if v, ok := n.(named); ok {
		return v.String()
	}
	return fmt.Sprintf("%T", n)
}
