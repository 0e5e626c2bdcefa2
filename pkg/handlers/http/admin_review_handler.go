package http

import (
	"errors"

	"github.com/diagramforge/sentry/pkg/domain/content"
	"github.com/diagramforge/sentry/pkg/infra/repository"
	"github.com/diagramforge/sentry/pkg/pipeline"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type adminReviewRequest struct {
	AdminID        string `json:"admin_id"`
	Approve        bool   `json:"approve"`
	Reason         string `json:"reason"`
	PreviousStatus string `json:"previous_status"`
}

type adminReviewHandler struct {
	logger   *logrus.Logger
	pipeline *pipeline.Pipeline
}

// NewAdminReviewHandler applies a human decision to content in any
// state, manual-review resolution and reversals alike.
func NewAdminReviewHandler(logger *logrus.Logger, p *pipeline.Pipeline) Handler {
	return &adminReviewHandler{logger: logger, pipeline: p}
}

func (h *adminReviewHandler) Handle(c *fiber.Ctx) error {
	contentID, err := uuid.Parse(c.Params("content_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid content id"})
	}

	var req adminReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	adminID, err := uuid.Parse(req.AdminID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid admin id"})
	}

	previous := content.Status(req.PreviousStatus)
	if !previous.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid previous_status"})
	}

	entry, err := h.pipeline.AdminReview(c.Context(), contentID, adminID, req.Approve, req.Reason, previous)
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "content status changed concurrently, reload and retry",
			})
		}
		h.logger.WithFields(logrus.Fields{
			"content_id": contentID,
			"admin_id":   adminID,
		}).WithError(err).Error("admin review failed")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(fiber.StatusOK).JSON(entry)
}
