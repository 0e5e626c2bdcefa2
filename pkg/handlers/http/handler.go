package http

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

type Handler interface {
	Handle(c *fiber.Ctx) error
}

// HandlerTransport groups the handlers the server mounts.
type HandlerTransport struct {
	ModerationHandler    Handler
	QuotaHandler         Handler
	ModerationLogHandler Handler
	AdminReviewHandler   Handler
}

func formatSeconds(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
