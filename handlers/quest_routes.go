package handlers

import (
	"classroom-economy/middleware"
	"classroom-economy/models"
	"classroom-economy/services"

	"github.com/gofiber/fiber/v2"
)

func SetupQuestRoutes(secured fiber.Router, quests *services.QuestService, events *services.EventService) {
	issuers := middleware.RequireRole(models.RoleTeacher, models.RoleOperator)

	secured.Post("/quests", issuers, func(c *fiber.Ctx) error {
		var in services.NewQuest
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, "invalid request body", err)
		}
		q, err := quests.CreateQuest(c.UserContext(), userID(c), in)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(q)
	})

	secured.Post("/quests/:id/accept", func(c *fiber.Ctx) error {
		p, err := quests.AcceptQuest(c.UserContext(), c.Params("id"), userID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(p)
	})

	secured.Post("/quests/:id/complete", func(c *fiber.Ctx) error {
		res, err := quests.CompleteQuest(c.UserContext(), c.Params("id"), userID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	})

	secured.Post("/events", issuers, func(c *fiber.Ctx) error {
		var in services.NewEvent
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, "invalid request body", err)
		}
		ev, err := events.CreateEvent(c.UserContext(), userID(c), in)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(ev)
	})

	secured.Post("/events/:id/join", func(c *fiber.Ctx) error {
		p, err := events.JoinEvent(c.UserContext(), c.Params("id"), userID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(p)
	})

	secured.Post("/events/:id/close", issuers, func(c *fiber.Ctx) error {
		res, err := events.CloseEvent(c.UserContext(), c.Params("id"), userID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	})
}
