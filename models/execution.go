package models

import (
	"time"
)

// DataContext carries the caller's in-memory tabular dataset into an execution.
type DataContext struct {
	Rows    []map[string]interface{} `json:"rows"`
	Columns []string                 `json:"columns"`
}

// ExecutionRequest represents a request to run analysis code against the interpreter
type ExecutionRequest struct {
	Code        string       `json:"code"`
	DataContext *DataContext `json:"data_context,omitempty"`
}

// ExecutionResult is the uniform envelope returned by every execution attempt.
// Failure is reported through Success/Error; timeouts, spawn failures and
// script errors are data here, not panics.
type ExecutionResult struct {
	Success         bool        `json:"success"`
	Output          string      `json:"output"`
	Error           string      `json:"error,omitempty"`
	Result          interface{} `json:"result,omitempty"`
	ExecutionTimeMs int64       `json:"execution_time_ms"`
}

// Execution represents a persisted async execution row (executions table)
type Execution struct {
	ID           int64                  `json:"id"`
	Code         string                 `json:"code,omitempty"`
	SubmittedAt  time.Time              `json:"submitted_at"`
	SubmittedBy  string                 `json:"submitted_by,omitempty"`
	Status       string                 `json:"status"`
	Output       string                 `json:"output,omitempty"`
	Result       map[string]interface{} `json:"result,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	DurationMs   int                    `json:"duration_ms"`
	CreatedAt    time.Time              `json:"created_at"`
}

// Execution status constants
const (
	StatusSuccess = "success"
	StatusFail    = "fail"
	StatusTimeout = "timeout"
	StatusPending = "pending"
)

// ExecutionListItem represents an execution in list view (without code)
type ExecutionListItem struct {
	ID           int64     `json:"id"`
	SubmittedAt  time.Time `json:"submitted_at"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	DurationMs   int       `json:"duration_ms"`
}

// SubmitExecutionRequest is the request body for submitting an async execution
type SubmitExecutionRequest struct {
	Code        string       `json:"code"`
	DataContext *DataContext `json:"data_context,omitempty"`
}

// ExecutionStatusResponse is returned when polling an async execution
type ExecutionStatusResponse struct {
	ExecutionID  int64                  `json:"execution_id"`
	Status       string                 `json:"status"`
	Output       string                 `json:"output,omitempty"`
	Result       map[string]interface{} `json:"result,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	DurationMs   int                    `json:"duration_ms"`
	SubmittedAt  time.Time              `json:"submitted_at"`
}

// InstallPackageRequest is the request body for installing an interpreter package
type InstallPackageRequest struct {
	Name string `json:"name"`
}

// InstallPackageResponse reports the best-effort outcome of a package install
type InstallPackageResponse struct {
	Package string `json:"package"`
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
}
