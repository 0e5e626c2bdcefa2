package http

import (
	"errors"

	"github.com/diagramforge/sentry/pkg/domain/content"
	"github.com/diagramforge/sentry/pkg/domain/moderation"
	"github.com/diagramforge/sentry/pkg/moderator"
	"github.com/diagramforge/sentry/pkg/pipeline"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type moderationRequest struct {
	UserID  string `json:"user_id"`
	IP      string `json:"ip"`
	Content struct {
		ID         string `json:"id"`
		Title      string `json:"title"`
		Summary    string `json:"summary"`
		SourceText string `json:"source_text"`
		Format     string `json:"format"`
	} `json:"content"`
}

type moderationResponse struct {
	Decision   moderation.Decision `json:"decision"`
	Confidence float64             `json:"confidence"`
	Reason     string              `json:"reason"`
	Flags      []string            `json:"flags"`
	// AutoApprove reports whether an approval cleared the advisory
	// confidence threshold; borderline approvals come back false.
	AutoApprove bool `json:"auto_approve"`
}

type moderationHandler struct {
	logger    *logrus.Logger
	pipeline  *pipeline.Pipeline
	moderator *moderator.Moderator
}

func NewModerationHandler(
	logger *logrus.Logger,
	p *pipeline.Pipeline,
	m *moderator.Moderator,
) Handler {
	return &moderationHandler{
		logger:    logger,
		pipeline:  p,
		moderator: m,
	}
}

func (h *moderationHandler) Handle(c *fiber.Ctx) error {
	var req moderationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	contentID, err := uuid.Parse(req.Content.ID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid content id"})
	}
	if req.UserID == "" && req.IP == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id or ip is required"})
	}

	outcome, err := h.pipeline.Submit(c.Context(), pipeline.Submission{
		UserID: req.UserID,
		IP:     req.IP,
		Content: &content.Candidate{
			ID:         contentID,
			Title:      req.Content.Title,
			Summary:    req.Content.Summary,
			SourceText: req.Content.SourceText,
			Format:     content.Format(req.Content.Format),
		},
	})
	if err != nil {
		return h.handleError(c, contentID, err)
	}

	if outcome.RateLimited {
		c.Set("Retry-After", formatSeconds(outcome.RetryAfter))
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error":       "rate limit exceeded, try again later",
			"retry_after": int(outcome.RetryAfter.Seconds()),
		})
	}

	result := outcome.Result
	return c.Status(fiber.StatusOK).JSON(moderationResponse{
		Decision:   result.Decision,
		Confidence: result.Confidence,
		Reason:     result.Reason,
		Flags:      result.Flags,
		AutoApprove: result.Decision == moderation.DecisionApprove &&
			result.Confidence >= h.moderator.AutoApproveThreshold(),
	})
}

// handleError keeps provider and parse failures opaque to the
// submitter: the content is simply not moderated yet.
func (h *moderationHandler) handleError(c *fiber.Ctx, contentID uuid.UUID, err error) error {
	var providerErr *moderator.ProviderError
	var parseErr *moderator.ParseError
	if errors.As(err, &providerErr) || errors.As(err, &parseErr) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "moderation temporarily unavailable",
		})
	}

	h.logger.WithField("content_id", contentID).WithError(err).Error("moderation submission failed")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal server error",
	})
}
