package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martforge/martforge-api/internal/models"
	"github.com/martforge/martforge-api/internal/repository"
)

type fakeNotificationRepo struct {
	created []repository.CreateNotificationParams
	err     error
}

func (f *fakeNotificationRepo) Create(_ context.Context, params repository.CreateNotificationParams) (models.Notification, error) {
	if f.err != nil {
		return models.Notification{}, f.err
	}
	f.created = append(f.created, params)
	return models.Notification{
		ID:        "n-1",
		OrgID:     params.OrgID,
		EventType: params.Event,
		Severity:  params.Severity,
		Title:     params.Title,
		Message:   params.Message,
	}, nil
}

func (f *fakeNotificationRepo) ListRecent(context.Context, int) ([]models.Notification, error) {
	return nil, nil
}

func (f *fakeNotificationRepo) MarkRead(context.Context, string) (models.Notification, error) {
	return models.Notification{}, nil
}

type fakeNotifier struct {
	delivered []models.Notification
	err       error
}

func (f *fakeNotifier) Notify(_ context.Context, notif models.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.delivered = append(f.delivered, notif)
	return nil
}

func TestPublishPersistsAndFansOut(t *testing.T) {
	repo := &fakeNotificationRepo{}
	channel := &fakeNotifier{}
	svc := NewService(repo, zerolog.Nop(), channel)

	orgID := 42
	notif, err := svc.Publish(context.Background(), Event{
		OrgID:    &orgID,
		Event:    models.NotificationEventRunFailed,
		Severity: models.NotificationSeverityError,
		Title:    "ETL run failed: sales_daily",
		Message:  "boom",
	})
	require.NoError(t, err)

	require.Len(t, repo.created, 1)
	require.Len(t, channel.delivered, 1)
	assert.Equal(t, notif.ID, channel.delivered[0].ID)
	assert.Equal(t, models.NotificationEventRunFailed, channel.delivered[0].EventType)
}

func TestPublishSurvivesChannelFailure(t *testing.T) {
	repo := &fakeNotificationRepo{}
	broken := &fakeNotifier{err: errors.New("smtp down")}
	healthy := &fakeNotifier{}
	svc := NewService(repo, zerolog.Nop(), broken, healthy)

	_, err := svc.Publish(context.Background(), Event{
		Event:   models.NotificationEventPassComplete,
		Message: "done",
	})
	require.NoError(t, err)
	// The failed channel did not stop the healthy one.
	assert.Len(t, healthy.delivered, 1)
}

func TestPublishRequiresEventType(t *testing.T) {
	svc := NewService(&fakeNotificationRepo{}, zerolog.Nop())

	_, err := svc.Publish(context.Background(), Event{Message: "no type"})
	assert.Error(t, err)
}

func TestNotifyRunFailedShapesEvent(t *testing.T) {
	repo := &fakeNotificationRepo{}
	svc := NewService(repo, zerolog.Nop())

	err := svc.NotifyRunFailed(context.Background(), "cash_flow", 7, "source unreachable")
	require.NoError(t, err)

	require.Len(t, repo.created, 1)
	created := repo.created[0]
	assert.Equal(t, models.NotificationEventRunFailed, created.Event)
	assert.Equal(t, models.NotificationSeverityError, created.Severity)
	require.NotNil(t, created.OrgID)
	assert.Equal(t, 7, *created.OrgID)
	assert.Contains(t, created.Message, "source unreachable")
}

func TestNotifyPassCompleteSeverityTracksOutcome(t *testing.T) {
	repo := &fakeNotificationRepo{}
	svc := NewService(repo, zerolog.Nop())

	require.NoError(t, svc.NotifyPassComplete(context.Background(), "sales_daily", "3 succeeded, 0 failed", true))
	require.NoError(t, svc.NotifyPassComplete(context.Background(), "sales_daily", "2 succeeded, 1 failed", false))

	require.Len(t, repo.created, 2)
	assert.Equal(t, models.NotificationSeverityInfo, repo.created[0].Severity)
	assert.Equal(t, models.NotificationSeverityWarning, repo.created[1].Severity)
}
