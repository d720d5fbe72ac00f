package handlers

import (
	"errors"
	"log"

	"classroom-economy/services"

	"github.com/gofiber/fiber/v2"
)

type errorMapping struct {
	kind   error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{services.ErrPermissionDenied, fiber.StatusForbidden, "permission_denied"},
	{services.ErrNotFound, fiber.StatusNotFound, "not_found"},
	{services.ErrInvalidInput, fiber.StatusBadRequest, "invalid_input"},
	{services.ErrInvalidState, fiber.StatusConflict, "invalid_state"},
	{services.ErrAlreadyExists, fiber.StatusConflict, "already_exists"},
	{services.ErrBudgetExceeded, fiber.StatusUnprocessableEntity, "budget_exceeded"},
	{services.ErrInsufficientFunds, fiber.StatusUnprocessableEntity, "insufficient_funds"},
	{services.ErrInsufficientSkillPoints, fiber.StatusUnprocessableEntity, "insufficient_skill_points"},
	{services.ErrCapacityExceeded, fiber.StatusUnprocessableEntity, "capacity_exceeded"},
}

// respondError maps economy failures to HTTP statuses. Anything unrecognised is a 500.
func respondError(c *fiber.Ctx, err error) error {
	for _, m := range errorMappings {
		if !errors.Is(err, m.kind) {
			continue
		}
		body := fiber.Map{"error": m.code, "cause": err.Error()}
		var be *services.BudgetExceededError
		if errors.As(err, &be) {
			body["available"] = be.Available
			body["requested"] = be.Requested
		}
		return c.Status(m.status).JSON(body)
	}
	log.Printf("❌ [HTTP] %s %s: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal error",
		"cause": err.Error(),
	})
}

func badRequest(c *fiber.Ctx, msg string, err error) error {
	body := fiber.Map{"error": msg}
	if err != nil {
		body["cause"] = err.Error()
	}
	return c.Status(fiber.StatusBadRequest).JSON(body)
}

func userID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}
