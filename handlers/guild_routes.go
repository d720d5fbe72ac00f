package handlers

import (
	"classroom-economy/services"

	"github.com/gofiber/fiber/v2"
)

func SetupGuildRoutes(secured fiber.Router, guilds *services.GuildService) {
	secured.Post("/guilds", func(c *fiber.Ctx) error {
		var body struct {
			Name       string `json:"name"`
			MaxMembers int    `json:"max_members"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, "invalid request body", err)
		}
		g, err := guilds.CreateGuild(c.UserContext(), userID(c), body.Name, body.MaxMembers)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(g)
	})

	// static paths before /guilds/:id
	secured.Post("/guilds/leave", func(c *fiber.Ctx) error {
		if err := guilds.LeaveGuild(c.UserContext(), userID(c)); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"left": true})
	})

	secured.Post("/guilds/contribute", func(c *fiber.Ctx) error {
		var body struct {
			Amount int64 `json:"amount"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, "invalid request body", err)
		}
		g, err := guilds.Contribute(c.UserContext(), userID(c), body.Amount)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(g)
	})

	secured.Post("/guilds/:id/join", func(c *fiber.Ctx) error {
		m, err := guilds.JoinGuild(c.UserContext(), c.Params("id"), userID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(m)
	})

	secured.Get("/guilds/:id", func(c *fiber.Ctx) error {
		view, err := guilds.GetGuild(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(view)
	})
}
