package models

// AutoMLRequest asks the engine to try several algorithms and keep the best
type AutoMLRequest struct {
	Name            string                   `json:"name"`
	Rows            []map[string]interface{} `json:"rows"`
	FeatureColumns  []string                 `json:"feature_columns"`
	TargetColumn    string                   `json:"target_column,omitempty"`
	TaskType        string                   `json:"task_type"`
	MaxModels       int                      `json:"max_models,omitempty"`
	TimeBudgetMs    int64                    `json:"time_budget_ms,omitempty"`
	OptimizeSpeed   bool                     `json:"optimize_speed,omitempty"`
	TestFraction    float64                  `json:"test_fraction,omitempty"`
}

// LeaderboardEntry is one completed AutoML candidate
type LeaderboardEntry struct {
	Algorithm       string                 `json:"algorithm"`
	Score           float64                `json:"score"`
	Hyperparameters map[string]interface{} `json:"hyperparameters,omitempty"`
	Performance     map[string]float64     `json:"performance,omitempty"`
}

// AutoMLResult reports the winner, the full leaderboard, and the persisted model
type AutoMLResult struct {
	BestAlgorithm     string              `json:"best_algorithm"`
	BestScore         float64             `json:"best_score"`
	Leaderboard       []LeaderboardEntry  `json:"leaderboard"`
	FeatureImportance []FeatureImportance `json:"feature_importance,omitempty"`
	ModelID           string              `json:"model_id"`
	ExecutionTimeMs   int64               `json:"execution_time_ms"`
}
