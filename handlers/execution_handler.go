package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"notebook-engine-server/middleware"
	"notebook-engine-server/models"
	"notebook-engine-server/services"
)

type ExecutionHandler struct {
	service *services.ExecutionService
}

func NewExecutionHandler(svc *services.ExecutionService) *ExecutionHandler {
	return &ExecutionHandler{service: svc}
}

// ExecuteCode godoc
// @Summary Execute analysis code synchronously
// @Description Run analysis code against the interpreter with an optional data context and wait for the result envelope
// @Tags executions
// @Accept json
// @Produce json
// @Param request body models.ExecutionRequest true "Code to execute"
// @Success 200 {object} models.ExecutionResult
// @Failure 400 {object} map[string]string
// @Router /execute [post]
func (h *ExecutionHandler) ExecuteCode(c *fiber.Ctx) error {
	var req models.ExecutionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if strings.TrimSpace(req.Code) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "code is required",
		})
	}

	res := h.service.Execute(middleware.GetXRayContext(c), &req)
	return c.JSON(res)
}

// SubmitExecution godoc
// @Summary Submit an async execution
// @Description Persist a pending execution, run it in the background, and return the id to poll
// @Tags executions
// @Accept json
// @Produce json
// @Param request body models.SubmitExecutionRequest true "Code to execute"
// @Success 200 {object} models.ExecutionStatusResponse
// @Failure 400 {object} map[string]string
// @Router /executions [post]
func (h *ExecutionHandler) SubmitExecution(c *fiber.Ctx) error {
	var req models.SubmitExecutionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if strings.TrimSpace(req.Code) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "code is required",
		})
	}

	submittedBy := c.IP()
	if submittedBy == "" {
		submittedBy = "anonymous"
	}

	exec, err := h.service.SubmitExecution(middleware.GetXRayContext(c), &req, submittedBy)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(models.ExecutionStatusResponse{
		ExecutionID: exec.ID,
		Status:      exec.Status,
		SubmittedAt: exec.SubmittedAt,
	})
}

// GetExecutionResult godoc
// @Summary Get async execution result
// @Description Poll for the result of a submitted execution
// @Tags executions
// @Produce json
// @Param id path int true "Execution ID"
// @Success 200 {object} models.ExecutionStatusResponse
// @Failure 404 {object} map[string]string
// @Router /executions/{id} [get]
func (h *ExecutionHandler) GetExecutionResult(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid execution ID",
		})
	}

	exec, err := h.service.GetExecutionResult(middleware.GetXRayContext(c), id)
	if err != nil {
		if errors.Is(err, models.ErrExecutionNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(models.ExecutionStatusResponse{
		ExecutionID:  exec.ID,
		Status:       exec.Status,
		Output:       exec.Output,
		Result:       exec.Result,
		ErrorMessage: exec.ErrorMessage,
		DurationMs:   exec.DurationMs,
		SubmittedAt:  exec.SubmittedAt,
	})
}

// ListExecutions godoc
// @Summary List recent executions
// @Tags executions
// @Produce json
// @Param limit query int false "Number of results to return" default(20)
// @Success 200 {array} models.ExecutionListItem
// @Router /executions [get]
func (h *ExecutionHandler) ListExecutions(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)

	executions, err := h.service.ListExecutions(middleware.GetXRayContext(c), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if executions == nil {
		executions = []models.ExecutionListItem{}
	}

	return c.JSON(executions)
}

// InstallPackage godoc
// @Summary Install an interpreter package
// @Description Best-effort install through the interpreter ecosystem's package manager
// @Tags packages
// @Accept json
// @Produce json
// @Param request body models.InstallPackageRequest true "Package to install"
// @Success 200 {object} models.InstallPackageResponse
// @Failure 400 {object} map[string]string
// @Router /packages [post]
func (h *ExecutionHandler) InstallPackage(c *fiber.Ctx) error {
	var req models.InstallPackageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "name is required",
		})
	}

	ok, output := h.service.InstallPackage(middleware.GetXRayContext(c), req.Name)
	return c.JSON(models.InstallPackageResponse{
		Package: req.Name,
		Success: ok,
		Output:  output,
	})
}
