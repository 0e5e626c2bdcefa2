package http

import (
	"github.com/diagramforge/sentry/pkg/domain/moderation"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type moderationLogHandler struct {
	logger *logrus.Logger
	repo   moderation.Repository
}

// NewModerationLogHandler serves the audit trail of a content item,
// oldest entry first.
func NewModerationLogHandler(logger *logrus.Logger, repo moderation.Repository) Handler {
	return &moderationLogHandler{logger: logger, repo: repo}
}

func (h *moderationLogHandler) Handle(c *fiber.Ctx) error {
	contentID, err := uuid.Parse(c.Params("content_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid content id"})
	}

	entries, err := h.repo.ListByContent(c.Context(), contentID)
	if err != nil {
		h.logger.WithField("content_id", contentID).WithError(err).Error("failed to list moderation log")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"content_id": contentID,
		"entries":    entries,
	})
}
