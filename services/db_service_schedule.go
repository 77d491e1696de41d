package services

import (
	"context"
	"database/sql"
	"encoding/json"

	"notebook-engine-server/models"
)

// CreateSchedule inserts a new scheduled training run
func (s *DBService) CreateSchedule(ctx context.Context, sched *models.TrainingSchedule) (*models.TrainingSchedule, error) {
	requestJSON, _ := json.Marshal(sched.Request)
	var created models.TrainingSchedule
	var executedAt sql.NullTime
	var status, modelID, errorMsg sql.NullString
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO training_schedules (scheduled_at, request, executed)
		VALUES ($1, $2, FALSE)
		RETURNING id, scheduled_at, request, executed, executed_at, status, model_id, error_message, created_at, updated_at
	`, sched.ScheduledAt, requestJSON).
		Scan(&created.ID, &created.ScheduledAt, &requestJSON, &created.Executed, &executedAt, &status, &modelID, &errorMsg, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if executedAt.Valid {
		created.ExecutedAt = &executedAt.Time
	}
	if status.Valid {
		created.Status = status.String
	}
	if modelID.Valid {
		created.ModelID = modelID.String
	}
	if errorMsg.Valid {
		created.ErrorMessage = errorMsg.String
	}
	if requestJSON != nil {
		json.Unmarshal(requestJSON, &created.Request)
	}

	return &created, nil
}

// ListSchedules returns all training schedules, soonest first
func (s *DBService) ListSchedules(ctx context.Context) ([]models.TrainingSchedule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scheduled_at, request, executed, executed_at, status, model_id, error_message, created_at, updated_at
		FROM training_schedules
		ORDER BY scheduled_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	schedules := []models.TrainingSchedule{}
	for rows.Next() {
		var sched models.TrainingSchedule
		var requestJSON []byte
		var executedAt sql.NullTime
		var status, modelID, errorMsg sql.NullString
		if err := rows.Scan(&sched.ID, &sched.ScheduledAt, &requestJSON, &sched.Executed, &executedAt, &status, &modelID, &errorMsg, &sched.CreatedAt, &sched.UpdatedAt); err != nil {
			return nil, err
		}
		if executedAt.Valid {
			sched.ExecutedAt = &executedAt.Time
		}
		if status.Valid {
			sched.Status = status.String
		}
		if modelID.Valid {
			sched.ModelID = modelID.String
		}
		if errorMsg.Valid {
			sched.ErrorMessage = errorMsg.String
		}
		if requestJSON != nil {
			json.Unmarshal(requestJSON, &sched.Request)
		}
		schedules = append(schedules, sched)
	}

	return schedules, nil
}

// DeleteSchedule removes a schedule
func (s *DBService) DeleteSchedule(ctx context.Context, scheduleID int64) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM training_schedules WHERE id = $1
	`, scheduleID)
	return err
}

// MarkScheduleExecuted marks a schedule as executed with its result
func (s *DBService) MarkScheduleExecuted(ctx context.Context, scheduleID int64, status, modelID, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE training_schedules
		SET executed = TRUE, executed_at = now(), status = $2, model_id = $3, error_message = $4, updated_at = now()
		WHERE id = $1
	`, scheduleID, status, modelID, errMsg)
	return err
}
