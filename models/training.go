package models

// Task type constants
const (
	TaskClassification = "classification"
	TaskRegression     = "regression"
	TaskClustering     = "clustering"
)

// MinTrainingRows is the smallest dataset a training request may carry
const MinTrainingRows = 10

// TrainingRequest represents a declarative request to train one model
type TrainingRequest struct {
	Name            string                   `json:"name"`
	Rows            []map[string]interface{} `json:"rows"`
	FeatureColumns  []string                 `json:"feature_columns"`
	TargetColumn    string                   `json:"target_column,omitempty"`
	TaskType        string                   `json:"task_type"`
	Algorithm       string                   `json:"algorithm"`
	Hyperparameters map[string]interface{}   `json:"hyperparameters,omitempty"`
	CrossValidation bool                     `json:"cross_validation"`
	TestFraction    float64                  `json:"test_fraction"`
}

// TrainingOutcome is the caller-facing result of a training run
type TrainingOutcome struct {
	ModelID           string              `json:"model_id,omitempty"`
	Success           bool                `json:"success"`
	Performance       map[string]float64  `json:"performance,omitempty"`
	FeatureImportance []FeatureImportance `json:"feature_importance,omitempty"`
	Error             string              `json:"error,omitempty"`
	ExecutionTimeMs   int64               `json:"execution_time_ms"`
}

// FeatureImportance pairs a feature name with its normalized importance
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// PredictRequest is the request body for scoring new rows against a stored model.
// Row columns must match the model's feature columns; a mismatch fails inside
// the interpreter and is reported through the result envelope.
type PredictRequest struct {
	Rows []map[string]interface{} `json:"rows"`
}

// PredictResponse carries decoded predictions back to the caller
type PredictResponse struct {
	ModelID         string        `json:"model_id"`
	Predictions     []interface{} `json:"predictions"`
	ExecutionTimeMs int64         `json:"execution_time_ms"`
}
