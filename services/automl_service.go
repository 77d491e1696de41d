package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"notebook-engine-server/models"
)

const (
	// DefaultMaxModels is how many candidates an AutoML run tries when the
	// caller doesn't say
	DefaultMaxModels = 5
	// MaxCandidates caps the candidate list regardless of the request
	MaxCandidates = 10
)

// AutoMLService tries a list of candidate algorithms in one interpreter
// invocation and persists only the winner, returning the full leaderboard.
type AutoMLService struct {
	builder  *ScriptBuilder
	executor scriptRunner
	registry *RegistryService
}

func NewAutoMLService(builder *ScriptBuilder, executor scriptRunner, registry *RegistryService) *AutoMLService {
	return &AutoMLService{
		builder:  builder,
		executor: executor,
		registry: registry,
	}
}

func validateAutoMLRequest(req *models.AutoMLRequest) error {
	if len(req.Rows) < models.MinTrainingRows {
		return models.NewValidationError("rows", fmt.Sprintf("at least %d rows are required, got %d", models.MinTrainingRows, len(req.Rows)))
	}
	if len(req.FeatureColumns) == 0 {
		return models.NewValidationError("feature_columns", "at least one feature column is required")
	}
	switch req.TaskType {
	case models.TaskClassification, models.TaskRegression:
		if req.TargetColumn == "" {
			return models.NewValidationError("target_column", fmt.Sprintf("target column is required for %s", req.TaskType))
		}
	case models.TaskClustering:
		if req.TargetColumn != "" {
			return models.NewValidationError("target_column", "clustering does not take a target column")
		}
	default:
		return models.NewValidationError("task_type", fmt.Sprintf("unknown task type %q", req.TaskType))
	}
	return nil
}

// candidateAlgorithms selects and truncates the candidate list for a request
func candidateAlgorithms(req *models.AutoMLRequest) []string {
	candidates := AlgorithmsFor(req.TaskType)
	if req.OptimizeSpeed {
		fast := candidates[:0:0]
		for _, algo := range candidates {
			if !slowAlgorithms[algo] {
				fast = append(fast, algo)
			}
		}
		candidates = fast
	}

	max := req.MaxModels
	if max <= 0 {
		max = DefaultMaxModels
	}
	if max > MaxCandidates {
		max = MaxCandidates
	}
	if len(candidates) > max {
		candidates = candidates[:max]
	}
	return candidates
}

// RunAutoML validates the request, runs the candidate loop, persists exactly
// one model record for the winner, and returns the leaderboard
func (s *AutoMLService) RunAutoML(ctx context.Context, req *models.AutoMLRequest) (*models.AutoMLResult, error) {
	if err := validateAutoMLRequest(req); err != nil {
		return nil, err
	}

	algorithms := candidateAlgorithms(req)
	script, err := s.builder.BuildAutoMLScript(req, algorithms)
	if err != nil {
		return nil, err
	}

	columns := append([]string(nil), req.FeatureColumns...)
	if req.TargetColumn != "" {
		columns = append(columns, req.TargetColumn)
	}

	res := s.executor.ExecuteScript(ctx, script, req.Rows, columns, nil)
	if !res.Success {
		return nil, fmt.Errorf("automl run failed: %s", firstNonEmpty(res.Error, "unknown error"))
	}

	result := ResultMap(res)
	if result == nil {
		return nil, fmt.Errorf("automl script produced no result")
	}

	bestAlgorithm, _ := result["best_algorithm"].(string)
	bestScore, _ := FloatField(result, "best_score")
	performance := FloatMap(result["performance"])
	importance := ImportanceList(result["feature_importance"])
	serialized, _ := result["serialized_state"].(string)
	leaderboard := decodeLeaderboard(result["leaderboard"])

	if bestAlgorithm == "" {
		return nil, fmt.Errorf("automl run selected no winner")
	}

	rec := &models.ModelRecord{
		ID:              uuid.New().String(),
		Name:            modelName(req.Name, "automl-"+bestAlgorithm),
		Algorithm:       bestAlgorithm,
		TaskType:        req.TaskType,
		FeatureColumns:  append([]string(nil), req.FeatureColumns...),
		TargetColumn:    req.TargetColumn,
		Performance:     performance,
		SerializedState: serialized,
		CreatedAt:       time.Now().UTC(),
		Version:         1,
	}
	if err := s.registry.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist automl winner: %w", err)
	}

	return &models.AutoMLResult{
		BestAlgorithm:     bestAlgorithm,
		BestScore:         bestScore,
		Leaderboard:       leaderboard,
		FeatureImportance: importance,
		ModelID:           rec.ID,
		ExecutionTimeMs:   res.ExecutionTimeMs,
	}, nil
}

func decodeLeaderboard(v interface{}) []models.LeaderboardEntry {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	entries := make([]models.LeaderboardEntry, 0, len(raw))
	for _, e := range raw {
		m, ok := e.(map[string]interface{})
		if !ok {
			continue
		}
		var entry models.LeaderboardEntry
		entry.Algorithm, _ = m["algorithm"].(string)
		entry.Score, _ = toFloat(m["score"])
		entry.Hyperparameters, _ = m["hyperparameters"].(map[string]interface{})
		entry.Performance = FloatMap(m["performance"])
		if entry.Algorithm == "" {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}
