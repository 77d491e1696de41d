package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"notebook-engine-server/middleware"
	"notebook-engine-server/models"
	"notebook-engine-server/services"
)

type ModelHandler struct {
	training *services.TrainingService
	automl   *services.AutoMLService
	registry *services.RegistryService
}

func NewModelHandler(training *services.TrainingService, automl *services.AutoMLService, registry *services.RegistryService) *ModelHandler {
	return &ModelHandler{
		training: training,
		automl:   automl,
		registry: registry,
	}
}

func statusFor(err error) int {
	switch {
	case models.IsValidation(err):
		return fiber.StatusBadRequest
	case errors.Is(err, models.ErrModelNotFound):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// TrainModel godoc
// @Summary Train a model
// @Description Run a training script for the requested algorithm and persist the resulting model
// @Tags models
// @Accept json
// @Produce json
// @Param request body models.TrainingRequest true "Training request"
// @Success 200 {object} models.TrainingOutcome
// @Failure 400 {object} map[string]string
// @Router /models/train [post]
func (h *ModelHandler) TrainModel(c *fiber.Ctx) error {
	var req models.TrainingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	outcome, err := h.training.TrainModel(middleware.GetXRayContext(c), &req)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(outcome)
}

// RunAutoML godoc
// @Summary Run AutoML
// @Description Train candidate algorithms within a time budget, persist the winner, and return the leaderboard
// @Tags models
// @Accept json
// @Produce json
// @Param request body models.AutoMLRequest true "AutoML request"
// @Success 200 {object} models.AutoMLResult
// @Failure 400 {object} map[string]string
// @Router /models/automl [post]
func (h *ModelHandler) RunAutoML(c *fiber.Ctx) error {
	var req models.AutoMLRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	result, err := h.automl.RunAutoML(middleware.GetXRayContext(c), &req)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(result)
}

// ListModels godoc
// @Summary List all models
// @Tags models
// @Produce json
// @Success 200 {array} models.ModelListItem
// @Router /models [get]
func (h *ModelHandler) ListModels(c *fiber.Ctx) error {
	items := h.registry.List(middleware.GetXRayContext(c))
	if items == nil {
		items = []models.ModelListItem{}
	}
	return c.JSON(items)
}

// GetModel godoc
// @Summary Get model details
// @Tags models
// @Produce json
// @Param id path string true "Model ID"
// @Success 200 {object} models.ModelRecord
// @Failure 404 {object} map[string]string
// @Router /models/{id} [get]
func (h *ModelHandler) GetModel(c *fiber.Ctx) error {
	rec, err := h.registry.Get(middleware.GetXRayContext(c), c.Params("id"))
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	// The bundle can be megabytes; detail view returns metadata only
	rec.SerializedState = ""
	return c.JSON(rec)
}

// DeleteModel godoc
// @Summary Delete a model
// @Tags models
// @Produce json
// @Param id path string true "Model ID"
// @Success 200 {object} map[string]bool
// @Router /models/{id} [delete]
func (h *ModelHandler) DeleteModel(c *fiber.Ctx) error {
	deleted, err := h.registry.Delete(middleware.GetXRayContext(c), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"deleted": deleted})
}

// ExportModel godoc
// @Summary Export a model
// @Description Serialize a model record, bundle included, as portable JSON text
// @Tags models
// @Produce plain
// @Param id path string true "Model ID"
// @Success 200 {string} string
// @Failure 404 {object} map[string]string
// @Router /models/{id}/export [get]
func (h *ModelHandler) ExportModel(c *fiber.Ctx) error {
	text, err := h.registry.Export(middleware.GetXRayContext(c), c.Params("id"))
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.SendString(text)
}

// ImportModel godoc
// @Summary Import a model
// @Description Ingest exported model JSON, either inline or fetched from a URL, under a fresh id
// @Tags models
// @Accept json
// @Produce json
// @Param request body models.ImportModelRequest true "Export text or URL"
// @Success 200 {object} models.ModelRecord
// @Failure 400 {object} map[string]string
// @Router /models/import [post]
func (h *ModelHandler) ImportModel(c *fiber.Ctx) error {
	var req models.ImportModelRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	text := req.Export
	if text == "" && req.URL != "" {
		fetched, err := fetchExport(middleware.GetXRayContext(c), req.URL)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		text = fetched
	}
	if text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "export or url is required",
		})
	}

	rec, err := h.registry.Import(middleware.GetXRayContext(c), text)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	rec.SerializedState = ""
	return c.JSON(rec)
}

// Predict godoc
// @Summary Predict with a stored model
// @Description Rehydrate the model bundle and score new rows through the same fitted preprocessing
// @Tags models
// @Accept json
// @Produce json
// @Param id path string true "Model ID"
// @Param request body models.PredictRequest true "Rows to score"
// @Success 200 {object} models.PredictResponse
// @Failure 404 {object} map[string]string
// @Router /models/{id}/predict [post]
func (h *ModelHandler) Predict(c *fiber.Ctx) error {
	var req models.PredictRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	resp, err := h.training.Predict(middleware.GetXRayContext(c), c.Params("id"), req.Rows)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(resp)
}

// fetchExport downloads export text through the X-Ray instrumented client
func fetchExport(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	client := middleware.GetXRayHTTPClient()
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.New("export fetch failed: " + resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
