package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"notebook-engine-server/models"
)

type ScheduleService struct {
	db *DBService
}

func NewScheduleService(db *DBService) *ScheduleService {
	return &ScheduleService{
		db: db,
	}
}

// CreateSchedule registers a new one-time scheduled training run
func (s *ScheduleService) CreateSchedule(ctx context.Context, req *models.CreateScheduleRequest) (*models.TrainingSchedule, error) {
	if req.ScheduledAt.IsZero() {
		return nil, models.NewValidationError("scheduled_at", "scheduled_at is required")
	}

	now := time.Now().UTC()
	if req.ScheduledAt.Before(now) {
		return nil, models.NewValidationError("scheduled_at", "scheduled_at must be in the future")
	}

	if req.Request == nil {
		return nil, models.NewValidationError("request", "training request is required")
	}
	// Reject malformed training requests at registration time, not at fire time
	if err := ValidateTrainingRequest(req.Request); err != nil {
		return nil, err
	}

	return s.db.CreateSchedule(ctx, &models.TrainingSchedule{
		ScheduledAt: req.ScheduledAt,
		Request:     req.Request,
		Executed:    false,
	})
}

// ListSchedules returns all training schedules
func (s *ScheduleService) ListSchedules(ctx context.Context) ([]models.TrainingSchedule, error) {
	return s.db.ListSchedules(ctx)
}

// DeleteSchedule removes a schedule
func (s *ScheduleService) DeleteSchedule(ctx context.Context, scheduleID int64) error {
	return s.db.DeleteSchedule(ctx, scheduleID)
}

// ClaimDueSchedules locks due schedules and returns them for execution
func (s *ScheduleService) ClaimDueSchedules(ctx context.Context, limit int) ([]models.TrainingSchedule, error) {
	if limit <= 0 {
		limit = 10
	}

	tx, err := s.db.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	rows, err := tx.QueryContext(ctx, `
		SELECT id, scheduled_at, request, executed, executed_at, status, model_id, error_message, created_at, updated_at
		FROM training_schedules
		WHERE executed = FALSE AND scheduled_at <= $1
		ORDER BY scheduled_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schedules []models.TrainingSchedule
	var scheduleIDs []int64
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
		scheduleIDs = append(scheduleIDs, sched.ID)
	}

	// Mark as executed immediately to prevent duplicate execution
	if len(scheduleIDs) > 0 {
		placeholders := ""
		for i := range scheduleIDs {
			if i > 0 {
				placeholders += ","
			}
			placeholders += fmt.Sprintf("$%d", i+1)
		}

		query := fmt.Sprintf(`
			UPDATE training_schedules
			SET executed = TRUE, executed_at = now(), updated_at = now()
			WHERE id IN (%s)
		`, placeholders)

		args := make([]interface{}, len(scheduleIDs))
		for i, id := range scheduleIDs {
			args[i] = id
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return schedules, nil
}

// MarkExecuted records the outcome of a fired schedule
func (s *ScheduleService) MarkExecuted(ctx context.Context, scheduleID int64, status, modelID, errMsg string) {
	_ = s.db.MarkScheduleExecuted(ctx, scheduleID, status, modelID, errMsg)
}
