package handler

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// Routes groups the handlers mounted on the app.
type Routes struct {
	Generation *GenerationHandler
	History    *HistoryHandler
	Stream     *StreamHandler

	// SubmitLimit guards job submission; nil mounts no limiter.
	SubmitLimit fiber.Handler
}

// Register mounts the API and WebSocket routes on app.
func (r *Routes) Register(app *fiber.App) {
	api := app.Group("/api")
	api.Get("/options", r.Generation.Options)

	generations := api.Group("/generations")
	if r.SubmitLimit != nil {
		generations.Post("/", r.SubmitLimit, r.Generation.Submit)
	} else {
		generations.Post("/", r.Generation.Submit)
	}
	generations.Get("/:jobId", r.Generation.Status)
	generations.Post("/:jobId/cancel", r.Generation.Cancel)

	history := api.Group("/history")
	history.Get("/", r.History.List)
	history.Get("/:assetId", r.History.Get)
	history.Post("/:assetId/play", r.History.Play)
	history.Get("/:assetId/download", r.History.Download)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/jobs/:jobId", websocket.New(r.Stream.Stream))
}
