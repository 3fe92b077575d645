package health

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/eliseohh/anydownbot/internal/queue"
	"github.com/eliseohh/anydownbot/internal/store"
)

// QueueStats is satisfied by *queue.Pool.
type QueueStats interface {
	Stats() queue.Stats
}

// Totals is satisfied by *store.DB.
type Totals interface {
	Totals(ctx context.Context) (store.Stats, error)
}

type Handler struct {
	queue  QueueStats
	totals Totals
}

func NewHandler(q QueueStats, t Totals) *Handler {
	return &Handler{queue: q, totals: t}
}

func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"queue":  h.queue.Stats(),
	})
}

func (h *Handler) Stats(c *fiber.Ctx) error {
	st, err := h.totals.Totals(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(st)
}

// NewApp wires the routes. The caller owns Listen and Shutdown.
func NewApp(h *Handler) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/healthz", h.Health)
	app.Get("/stats", h.Stats)
	return app
}
