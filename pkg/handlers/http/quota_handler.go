package http

import (
	"time"

	"github.com/diagramforge/sentry/pkg/infra/cache"
	"github.com/diagramforge/sentry/pkg/ratelimiter"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// QuotaCacheTTL is how long a quota response may be served from the
// local TTL map before re-reading the counters.
const QuotaCacheTTL = 5 * time.Second

type quotaHandler struct {
	logger    *logrus.Logger
	limiter   *ratelimiter.RateLimiter
	responses *cache.TTLMap
}

// NewQuotaHandler serves the non-consuming quota view. Responses are
// cached briefly per user so a chatty UI cannot hammer redis.
func NewQuotaHandler(
	logger *logrus.Logger,
	limiter *ratelimiter.RateLimiter,
	responses *cache.TTLMap,
) Handler {
	return &quotaHandler{
		logger:    logger,
		limiter:   limiter,
		responses: responses,
	}
}

func (h *quotaHandler) Handle(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
	}

	if cached, ok := h.responses.Get(userID); ok {
		return c.Status(fiber.StatusOK).JSON(cached.(ratelimiter.Quota))
	}

	quota, err := h.limiter.GetRemainingQuota(c.Context(), userID)
	if err != nil {
		h.logger.WithField("user_id", userID).WithError(err).Error("failed to read quota")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	h.responses.Set(userID, quota)
	return c.Status(fiber.StatusOK).JSON(quota)
}
