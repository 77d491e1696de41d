package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"notebook-engine-server/models"
)

// scriptRunner is the slice of the execution service the orchestrators use
type scriptRunner interface {
	ExecuteScript(ctx context.Context, script string, rows []map[string]interface{}, columns []string, extra map[string]interface{}) *models.ExecutionResult
}

// TrainingService orchestrates training and prediction runs: it validates
// requests before any process is spawned, drives the execution service, and
// persists successful outcomes to the registry. A record only ever becomes
// visible fully constructed; failed runs leave the registry untouched.
type TrainingService struct {
	builder  *ScriptBuilder
	executor scriptRunner
	registry *RegistryService
}

func NewTrainingService(builder *ScriptBuilder, executor scriptRunner, registry *RegistryService) *TrainingService {
	return &TrainingService{
		builder:  builder,
		executor: executor,
		registry: registry,
	}
}

// ValidateTrainingRequest checks the request invariants. It runs before any
// script is built or process spawned.
func ValidateTrainingRequest(req *models.TrainingRequest) error {
	if len(req.Rows) < models.MinTrainingRows {
		return models.NewValidationError("rows", fmt.Sprintf("at least %d rows are required, got %d", models.MinTrainingRows, len(req.Rows)))
	}
	if len(req.FeatureColumns) == 0 {
		return models.NewValidationError("feature_columns", "at least one feature column is required")
	}

	seen := map[string]bool{}
	for _, col := range req.FeatureColumns {
		if seen[col] {
			return models.NewValidationError("feature_columns", fmt.Sprintf("duplicate feature column %q", col))
		}
		seen[col] = true
	}

	// Rows are homogeneous in column set, so the first row is representative
	for _, col := range req.FeatureColumns {
		if _, ok := req.Rows[0][col]; !ok {
			return models.NewValidationError("feature_columns", fmt.Sprintf("column %q is not present in the dataset", col))
		}
	}

	switch req.TaskType {
	case models.TaskClassification, models.TaskRegression:
		if req.TargetColumn == "" {
			return models.NewValidationError("target_column", fmt.Sprintf("target column is required for %s", req.TaskType))
		}
		if seen[req.TargetColumn] {
			return models.NewValidationError("target_column", "target column must not be a feature column")
		}
		if _, ok := req.Rows[0][req.TargetColumn]; !ok {
			return models.NewValidationError("target_column", fmt.Sprintf("column %q is not present in the dataset", req.TargetColumn))
		}
	case models.TaskClustering:
		if req.TargetColumn != "" {
			return models.NewValidationError("target_column", "clustering does not take a target column")
		}
	default:
		return models.NewValidationError("task_type", fmt.Sprintf("unknown task type %q", req.TaskType))
	}

	if req.TestFraction != 0 && (req.TestFraction <= 0 || req.TestFraction >= 1) {
		return models.NewValidationError("test_fraction", "test fraction must be in (0, 1)")
	}

	if _, err := lookupAlgorithm(req.TaskType, req.Algorithm); err != nil {
		return err
	}
	return nil
}

// TrainModel runs one training script and, on success, persists a new model
// record. A non-nil error is returned only for validation failures; runtime
// failures are reported through the outcome.
func (s *TrainingService) TrainModel(ctx context.Context, req *models.TrainingRequest) (*models.TrainingOutcome, error) {
	if err := ValidateTrainingRequest(req); err != nil {
		return nil, err
	}

	script, err := s.builder.BuildTrainingScript(req)
	if err != nil {
		return nil, err
	}

	columns := append([]string(nil), req.FeatureColumns...)
	if req.TargetColumn != "" {
		columns = append(columns, req.TargetColumn)
	}

	res := s.executor.ExecuteScript(ctx, script, req.Rows, columns, nil)
	if !res.Success {
		return &models.TrainingOutcome{
			Success:         false,
			Error:           firstNonEmpty(res.Error, "training failed"),
			ExecutionTimeMs: res.ExecutionTimeMs,
		}, nil
	}

	result := ResultMap(res)
	if result == nil {
		return &models.TrainingOutcome{
			Success:         false,
			Error:           "training script produced no result",
			ExecutionTimeMs: res.ExecutionTimeMs,
		}, nil
	}

	performance := FloatMap(result["performance"])
	importance := ImportanceList(result["feature_importance"])
	serialized, _ := result["serialized_state"].(string)

	rec := &models.ModelRecord{
		ID:              uuid.New().String(),
		Name:            modelName(req.Name, req.Algorithm),
		Algorithm:       req.Algorithm,
		TaskType:        req.TaskType,
		FeatureColumns:  append([]string(nil), req.FeatureColumns...),
		TargetColumn:    req.TargetColumn,
		Performance:     performance,
		SerializedState: serialized,
		CreatedAt:       time.Now().UTC(),
		Version:         1,
	}
	if err := s.registry.Put(ctx, rec); err != nil {
		return &models.TrainingOutcome{
			Success:         false,
			Error:           fmt.Sprintf("persist model: %v", err),
			ExecutionTimeMs: res.ExecutionTimeMs,
		}, nil
	}

	return &models.TrainingOutcome{
		ModelID:           rec.ID,
		Success:           true,
		Performance:       performance,
		FeatureImportance: importance,
		ExecutionTimeMs:   res.ExecutionTimeMs,
	}, nil
}

// Predict rehydrates the stored bundle for a model and scores new rows.
// The caller must supply the same feature columns the model was trained on;
// missing columns fail inside the script and surface here as an error.
func (s *TrainingService) Predict(ctx context.Context, modelID string, rows []map[string]interface{}) (*models.PredictResponse, error) {
	rec, err := s.registry.Get(ctx, modelID)
	if err != nil {
		return nil, err
	}
	if rec.SerializedState == "" {
		return nil, fmt.Errorf("model %s: %w: no serialized bundle", modelID, models.ErrModelNotFound)
	}
	if len(rows) == 0 {
		return nil, models.NewValidationError("rows", "at least one row is required")
	}

	script := s.builder.BuildPredictionScript()
	extra := map[string]interface{}{"serialized_state": rec.SerializedState}

	columns := columnsOf(rows[0])
	res := s.executor.ExecuteScript(ctx, script, rows, columns, extra)
	if !res.Success {
		return nil, fmt.Errorf("prediction failed: %s", firstNonEmpty(res.Error, "unknown error"))
	}

	result := ResultMap(res)
	raw, _ := result["predictions"].([]interface{})
	if raw == nil {
		return nil, fmt.Errorf("prediction script produced no predictions")
	}

	return &models.PredictResponse{
		ModelID:         modelID,
		Predictions:     raw,
		ExecutionTimeMs: res.ExecutionTimeMs,
	}, nil
}

func modelName(name, algorithm string) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("%s-%s", algorithm, time.Now().UTC().Format("20060102-150405"))
}

func columnsOf(row map[string]interface{}) []string {
	columns := make([]string, 0, len(row))
	for col := range row {
		columns = append(columns, col)
	}
	return columns
}
