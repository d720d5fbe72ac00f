// handlers/progression_routes.go
package handlers

import (
	"strconv"
	"time"

	"classroom-economy/middleware"
	"classroom-economy/models"
	"classroom-economy/services"

	"github.com/gofiber/fiber/v2"
)

func SetupProgressionRoutes(secured fiber.Router, core *services.Core, progression *services.ProgressionService) {
	secured.Post("/xp/grant", middleware.RequireRole(models.RoleTeacher, models.RoleOperator), func(c *fiber.Ctx) error {
		var req services.GrantRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body", err)
		}
		if req.StudentID == "" {
			return badRequest(c, "student_id is required", nil)
		}
		req.TeacherID = userID(c)

		res, err := progression.GrantXP(c.UserContext(), req)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	})

	secured.Get("/user/progress", func(c *fiber.Ctx) error {
		snap, err := progression.Snapshot(c.UserContext(), userID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(snap)
	})

	secured.Get("/users/:id/progress", middleware.RequireRole(models.RoleTeacher, models.RoleOperator), func(c *fiber.Ctx) error {
		snap, err := progression.Snapshot(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(snap)
	})

	secured.Get("/user/progress/history", func(c *fiber.Ctx) error {
		limit, _ := strconv.Atoi(c.Query("limit", "50"))
		grants, err := progression.History(c.UserContext(), userID(c), limit)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"grants": grants, "count": len(grants)})
	})

	secured.Post("/skills/:skill_id/spend", func(c *fiber.Ctx) error {
		var body struct {
			Points int64 `json:"points"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, "invalid request body", err)
		}
		res, err := progression.SpendSkillPoint(c.UserContext(), userID(c), c.Params("skill_id"), body.Points)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	})

	admin := secured.Group("/admin", middleware.RequireRole(models.RoleOperator))

	admin.Put("/budgets", func(c *fiber.Ctx) error {
		var body struct {
			TeacherID string `json:"teacher_id"`
			SubjectID string `json:"subject_id"`
			Day       string `json:"day"` // YYYY-MM-DD, defaults to today
			Ceiling   int64  `json:"ceiling"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, "invalid request body", err)
		}
		var day time.Time
		if body.Day != "" {
			d, err := time.Parse(time.DateOnly, body.Day)
			if err != nil {
				return badRequest(c, "invalid day (use YYYY-MM-DD)", err)
			}
			day = d
		}
		rec, err := core.SetDailyBudget(c.UserContext(), userID(c), body.TeacherID, body.SubjectID, day, body.Ceiling)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(rec)
	})

	admin.Post("/skills", func(c *fiber.Ctx) error {
		var skill models.Skill
		if err := c.BodyParser(&skill); err != nil {
			return badRequest(c, "invalid request body", err)
		}
		created, err := core.CreateSkill(c.UserContext(), userID(c), &skill)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(created)
	})
}
