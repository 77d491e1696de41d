package models

import "time"

// ModelRecord is a cataloged trained model. SerializedState is an opaque
// base64 bundle (fitted estimator plus preprocessing stages) produced by the
// interpreter; the server stores and replays it but never inspects it.
type ModelRecord struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	Algorithm       string             `json:"algorithm"`
	TaskType        string             `json:"task_type"`
	FeatureColumns  []string           `json:"feature_columns"`
	TargetColumn    string             `json:"target_column,omitempty"`
	Performance     map[string]float64 `json:"performance,omitempty"`
	SerializedState string             `json:"serialized_state,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	Version         int                `json:"version"`
}

// ModelListItem represents a model in list view (without the bundle)
type ModelListItem struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Algorithm   string             `json:"algorithm"`
	TaskType    string             `json:"task_type"`
	Performance map[string]float64 `json:"performance,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	Version     int                `json:"version"`
}

// ImportModelRequest is the request body for importing an exported model.
// Either Export (the export text itself) or URL (fetched server-side) is set.
type ImportModelRequest struct {
	Export string `json:"export,omitempty"`
	URL    string `json:"url,omitempty"`
}
