package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notebook-engine-server/models"
	"notebook-engine-server/services"
)

func newModelTestApp(t *testing.T) (*fiber.App, *services.RegistryService) {
	t.Helper()

	registry := services.NewRegistryService(nil, nil)
	builder := services.NewScriptBuilder()
	supervisor := services.NewSupervisor("sh", t.TempDir())
	execSvc := services.NewExecutionService(builder, services.NewMarshaler(), supervisor, 5*time.Second, nil, nil)
	training := services.NewTrainingService(builder, execSvc, registry)
	automl := services.NewAutoMLService(builder, execSvc, registry)

	h := NewModelHandler(training, automl, registry)

	app := fiber.New()
	api := app.Group("/api")
	api.Post("/models/train", h.TrainModel)
	api.Post("/models/import", h.ImportModel)
	api.Get("/models", h.ListModels)
	api.Get("/models/:id", h.GetModel)
	api.Delete("/models/:id", h.DeleteModel)
	api.Get("/models/:id/export", h.ExportModel)
	api.Post("/models/:id/predict", h.Predict)

	return app, registry
}

func seedModel(t *testing.T, registry *services.RegistryService, id string) {
	t.Helper()
	err := registry.Put(context.Background(), &models.ModelRecord{
		ID:              id,
		Name:            "seeded",
		Algorithm:       "random_forest",
		TaskType:        models.TaskClassification,
		FeatureColumns:  []string{"a", "b"},
		TargetColumn:    "y",
		Performance:     map[string]float64{"accuracy": 0.9},
		SerializedState: "YnVuZGxl",
		CreatedAt:       time.Now().UTC(),
		Version:         1,
	})
	require.NoError(t, err)
}

func TestListModelsEmpty(t *testing.T) {
	app, _ := newModelTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/models", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, "[]", string(body))
}

func TestGetModel(t *testing.T) {
	app, registry := newModelTestApp(t)
	seedModel(t, registry, "m-1")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/models/m-1", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var rec models.ModelRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	assert.Equal(t, "seeded", rec.Name)
	assert.Empty(t, rec.SerializedState, "detail view must not carry the bundle")
}

func TestGetModelNotFound(t *testing.T) {
	app, _ := newModelTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/models/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteModel(t *testing.T) {
	app, registry := newModelTestApp(t)
	seedModel(t, registry, "m-1")

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/api/models/m-1", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]bool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body["deleted"])

	// Deleting again reports deleted=false, still 200
	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/api/models/m-1", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body["deleted"])
}

func TestExportImportOverHTTP(t *testing.T) {
	app, registry := newModelTestApp(t)
	seedModel(t, registry, "m-1")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/models/m-1/export", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	export, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, json.Valid(export))

	importBody, err := json.Marshal(models.ImportModelRequest{Export: string(export)})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/models/import", strings.NewReader(string(importBody)))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var imported models.ModelRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&imported))
	assert.NotEqual(t, "m-1", imported.ID)
	assert.Equal(t, 2, imported.Version)
	assert.Equal(t, "random_forest", imported.Algorithm)
}

func TestImportModelRejectsEmptyBody(t *testing.T) {
	app, _ := newModelTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/models/import", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTrainModelRejectsInvalidRequest(t *testing.T) {
	app, _ := newModelTestApp(t)

	body := `{"rows": [], "feature_columns": ["a"], "target_column": "y", "task_type": "classification", "algorithm": "random_forest"}`
	req := httptest.NewRequest(http.MethodPost, "/api/models/train", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPredictUnknownModelOverHTTP(t *testing.T) {
	app, _ := newModelTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/models/missing/predict", strings.NewReader(`{"rows": [{"a": 1}]}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
