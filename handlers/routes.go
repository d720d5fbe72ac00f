package handlers

import (
	"classroom-economy/middleware"
	"classroom-economy/services"

	"github.com/gofiber/fiber/v2"
)

// Services bundles everything the HTTP layer calls into.
type Services struct {
	Core        *services.Core
	Progression *services.ProgressionService
	Jobs        *services.JobService
	Quests      *services.QuestService
	Events      *services.EventService
	Guilds      *services.GuildService
}

// SetupRoutes mounts /health and every secured route under /s.
func SetupRoutes(app *fiber.App, svc Services) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// 🔐 Secured routes require user context (userID, roles)
	secured := app.Group("/s", middleware.UserContextMiddleware(svc.Core))

	SetupProgressionRoutes(secured, svc.Core, svc.Progression)
	SetupJobRoutes(secured, svc.Jobs)
	SetupQuestRoutes(secured, svc.Quests, svc.Events)
	SetupGuildRoutes(secured, svc.Guilds)
}
