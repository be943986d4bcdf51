package notification

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medvault/medvault-api/internal/model"
	"github.com/medvault/medvault-api/internal/repository/repotest"
	apperrors "github.com/medvault/medvault-api/pkg/errors"
)

type notificationFixture struct {
	svc   *Service
	repo  *repotest.NotificationRepo
	alice *model.User
	bob   *model.User
}

func newNotificationFixture() *notificationFixture {
	f := &notificationFixture{
		repo:  repotest.NewNotificationRepo(),
		alice: &model.User{ID: uuid.New(), UserCode: "PAT-0001", Role: model.RolePatient, Name: "Alice", IsActive: true},
		bob:   &model.User{ID: uuid.New(), UserCode: "DOC-0001", Role: model.RoleDoctor, Name: "Bob", IsActive: true},
	}
	f.svc = NewService(f.repo, repotest.NewUserRepo(f.alice, f.bob))
	return f
}

func TestCreateAndList(t *testing.T) {
	f := newNotificationFixture()

	fileID := uuid.NewString()
	created, err := f.svc.Create(context.Background(), &model.CreateNotificationRequest{
		RecipientCode: "PAT-0001",
		Type:          model.NotificationTypeFileShared,
		Title:         "New file shared with you",
		Message:       "DOC-0001 shared scan.pdf with you",
		RelatedFileID: &fileID,
		Metadata:      model.JSONMap{"access_level": "read"},
	})
	require.NoError(t, err)
	assert.Equal(t, f.alice.ID, created.UserID)
	require.NotNil(t, created.RelatedFileID)
	assert.Equal(t, fileID, created.RelatedFileID.String())

	resp, err := f.svc.List(context.Background(), "PAT-0001")
	require.NoError(t, err)
	require.Len(t, resp.Notifications, 1)
	assert.Equal(t, 1, resp.UnreadCount)

	// Other users see nothing.
	resp, err = f.svc.List(context.Background(), "DOC-0001")
	require.NoError(t, err)
	assert.Empty(t, resp.Notifications)
	assert.Equal(t, 0, resp.UnreadCount)
}

func TestCreateRejectsUnknownRecipient(t *testing.T) {
	f := newNotificationFixture()
	_, err := f.svc.Create(context.Background(), &model.CreateNotificationRequest{
		RecipientCode: "PAT-9999",
		Type:          model.NotificationTypeSystem,
		Title:         "t",
		Message:       "m",
	})
	assert.Equal(t, 404, apperrors.Status(err))
}

func TestCreateRejectsBadFileID(t *testing.T) {
	f := newNotificationFixture()
	bad := "not-a-uuid"
	_, err := f.svc.Create(context.Background(), &model.CreateNotificationRequest{
		RecipientCode: "PAT-0001",
		Type:          model.NotificationTypeSystem,
		Title:         "t",
		Message:       "m",
		RelatedFileID: &bad,
	})
	assert.Equal(t, 400, apperrors.Status(err))
}

func TestMarkReadOwnership(t *testing.T) {
	f := newNotificationFixture()
	created, err := f.svc.Create(context.Background(), &model.CreateNotificationRequest{
		RecipientCode: "PAT-0001",
		Type:          model.NotificationTypeSystem,
		Title:         "t",
		Message:       "m",
	})
	require.NoError(t, err)

	// Someone else's notification reads as missing.
	err = f.svc.MarkRead(context.Background(), created.ID, "DOC-0001")
	assert.Equal(t, 404, apperrors.Status(err))

	require.NoError(t, f.svc.MarkRead(context.Background(), created.ID, "PAT-0001"))
	unread, err := f.svc.UnreadCount(context.Background(), "PAT-0001")
	require.NoError(t, err)
	assert.Equal(t, 0, unread)
}

func TestMarkAllReadAndDeleteAll(t *testing.T) {
	f := newNotificationFixture()
	for i := 0; i < 3; i++ {
		_, err := f.svc.Create(context.Background(), &model.CreateNotificationRequest{
			RecipientCode: "PAT-0001",
			Type:          model.NotificationTypeSystem,
			Title:         "t",
			Message:       "m",
		})
		require.NoError(t, err)
	}

	marked, err := f.svc.MarkAllRead(context.Background(), "PAT-0001")
	require.NoError(t, err)
	assert.Equal(t, int64(3), marked)

	removed, err := f.svc.DeleteAll(context.Background(), "PAT-0001")
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	resp, err := f.svc.List(context.Background(), "PAT-0001")
	require.NoError(t, err)
	assert.Empty(t, resp.Notifications)
}

func TestDeleteOwnership(t *testing.T) {
	f := newNotificationFixture()
	created, err := f.svc.Create(context.Background(), &model.CreateNotificationRequest{
		RecipientCode: "PAT-0001",
		Type:          model.NotificationTypeSystem,
		Title:         "t",
		Message:       "m",
	})
	require.NoError(t, err)

	err = f.svc.Delete(context.Background(), created.ID, "DOC-0001")
	assert.Equal(t, 404, apperrors.Status(err))
	assert.NoError(t, f.svc.Delete(context.Background(), created.ID, "PAT-0001"))
}

func TestNotifySwallowsFailures(t *testing.T) {
	f := newNotificationFixture()

	// Unknown recipient must not panic or error the caller.
	f.svc.Notify(context.Background(), "PAT-9999", model.NotificationTypeSystem, "t", "m", nil, nil)

	f.svc.Notify(context.Background(), "PAT-0001", model.NotificationTypeSystem, "t", "m", nil, nil)
	unread, err := f.svc.UnreadCount(context.Background(), "PAT-0001")
	require.NoError(t, err)
	assert.Equal(t, 1, unread)
}
