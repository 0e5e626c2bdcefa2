package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/diagramforge/sentry/pkg/domain/content"
	"github.com/diagramforge/sentry/pkg/domain/moderation"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLogRepository struct {
	entries []moderation.LogEntry
	err     error
}

func (r *fakeLogRepository) Create(context.Context, *moderation.LogEntry) error {
	return nil
}

func (r *fakeLogRepository) ListByContent(context.Context, uuid.UUID) ([]moderation.LogEntry, error) {
	return r.entries, r.err
}

func newLogApp(repo moderation.Repository) *fiber.App {
	app := fiber.New()
	app.Get("/api/v1/moderations/:content_id/log", NewModerationLogHandler(logrus.New(), repo).Handle)
	return app
}

func TestModerationLogHandler(t *testing.T) {
	contentID := uuid.New()
	confidence := 0.9

	repo := &fakeLogRepository{entries: []moderation.LogEntry{
		{
			ID:             uuid.New(),
			ContentID:      contentID,
			Action:         moderation.ActionAIManualReview,
			PreviousStatus: content.StatusPending,
			NewStatus:      content.StatusManualReview,
			Reason:         "Prompt injection patterns detected",
			AIConfidence:   &confidence,
		},
		{
			ID:             uuid.New(),
			ContentID:      contentID,
			Action:         moderation.ActionAdminApprove,
			PreviousStatus: content.StatusManualReview,
			NewStatus:      content.StatusApproved,
			Reason:         "Reviewed and cleared",
		},
	}}
	app := newLogApp(repo)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/moderations/"+contentID.String()+"/log", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var parsed struct {
		ContentID uuid.UUID             `json:"content_id"`
		Entries   []moderation.LogEntry `json:"entries"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	assert.Equal(t, contentID, parsed.ContentID)
	require.Len(t, parsed.Entries, 2)
	assert.Equal(t, moderation.ActionAIManualReview, parsed.Entries[0].Action)
	assert.Equal(t, moderation.ActionAdminApprove, parsed.Entries[1].Action)
}

func TestModerationLogHandler_Errors(t *testing.T) {
	t.Run("invalid content id", func(t *testing.T) {
		app := newLogApp(&fakeLogRepository{})
		resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/moderations/not-a-uuid/log", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("repository failure", func(t *testing.T) {
		app := newLogApp(&fakeLogRepository{err: errors.New("db down")})
		resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/moderations/"+uuid.New().String()+"/log", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	})
}
