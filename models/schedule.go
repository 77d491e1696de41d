package models

import "time"

// TrainingSchedule represents a one-time scheduled training run
type TrainingSchedule struct {
	ID           int64            `json:"id"`
	ScheduledAt  time.Time        `json:"scheduled_at"`
	Request      *TrainingRequest `json:"request"`
	Executed     bool             `json:"executed"`
	ExecutedAt   *time.Time       `json:"executed_at,omitempty"`
	Status       string           `json:"status,omitempty"`
	ModelID      string           `json:"model_id,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// CreateScheduleRequest is used to register a new training schedule
type CreateScheduleRequest struct {
	ScheduledAt time.Time        `json:"scheduled_at"`
	Request     *TrainingRequest `json:"request"`
}
