package handlers

import (
	"classroom-economy/middleware"
	"classroom-economy/models"
	"classroom-economy/services"

	"github.com/gofiber/fiber/v2"
)

func SetupJobRoutes(secured fiber.Router, jobs *services.JobService) {
	issuers := middleware.RequireRole(models.RoleTeacher, models.RoleOperator)

	secured.Post("/jobs", issuers, func(c *fiber.Ctx) error {
		var in services.NewJob
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, "invalid request body", err)
		}
		job, err := jobs.CreateJob(c.UserContext(), userID(c), in)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(job)
	})

	secured.Post("/jobs/:id/apply", func(c *fiber.Ctx) error {
		a, err := jobs.ApplyJob(c.UserContext(), c.Params("id"), userID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(a)
	})

	secured.Post("/jobs/:id/assignments/:user_id/approve", issuers, func(c *fiber.Ctx) error {
		a, err := jobs.ApproveAssignment(c.UserContext(), c.Params("id"), userID(c), c.Params("user_id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(a)
	})

	secured.Post("/jobs/:id/assignments/:user_id/reject", issuers, func(c *fiber.Ctx) error {
		a, err := jobs.RejectAssignment(c.UserContext(), c.Params("id"), userID(c), c.Params("user_id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(a)
	})

	secured.Post("/jobs/:id/close", issuers, func(c *fiber.Ctx) error {
		res, err := jobs.CloseJob(c.UserContext(), c.Params("id"), userID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	})

	secured.Post("/jobs/:id/cancel", issuers, func(c *fiber.Ctx) error {
		job, err := jobs.CancelJob(c.UserContext(), c.Params("id"), userID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(job)
	})
}
