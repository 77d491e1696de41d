package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"notebook-engine-server/middleware"
	"notebook-engine-server/models"
	"notebook-engine-server/services"
)

type ScheduleHandler struct {
	service *services.ScheduleService
}

func NewScheduleHandler(service *services.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{service: service}
}

// CreateSchedule godoc
// @Summary Create a scheduled training run
// @Tags schedules
// @Accept json
// @Produce json
// @Param schedule body models.CreateScheduleRequest true "Schedule request"
// @Success 200 {object} models.TrainingSchedule
// @Router /training/schedules [post]
func (h *ScheduleHandler) CreateSchedule(c *fiber.Ctx) error {
	var req models.CreateScheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	sched, err := h.service.CreateSchedule(middleware.GetXRayContext(c), &req)
	if err != nil {
		status := fiber.StatusInternalServerError
		if models.IsValidation(err) {
			status = fiber.StatusBadRequest
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(sched)
}

// ListSchedules godoc
// @Summary List training schedules
// @Tags schedules
// @Produce json
// @Success 200 {array} models.TrainingSchedule
// @Router /training/schedules [get]
func (h *ScheduleHandler) ListSchedules(c *fiber.Ctx) error {
	schedules, err := h.service.ListSchedules(middleware.GetXRayContext(c))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(schedules)
}

// DeleteSchedule godoc
// @Summary Delete a training schedule
// @Tags schedules
// @Param scheduleId path int true "Schedule ID"
// @Success 204
// @Router /training/schedules/{scheduleId} [delete]
func (h *ScheduleHandler) DeleteSchedule(c *fiber.Ctx) error {
	scheduleID, err := strconv.ParseInt(c.Params("scheduleId"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid schedule ID"})
	}

	if err := h.service.DeleteSchedule(middleware.GetXRayContext(c), scheduleID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.SendStatus(fiber.StatusNoContent)
}
