package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"notebook-engine-server/models"

	"github.com/lib/pq"
)

type DBService struct {
	db *sql.DB
}

func NewDBService(host string, port int, user, password, dbname string) (*DBService, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &DBService{db: db}, nil
}

func (s *DBService) Close() error {
	return s.db.Close()
}

// InitSchema creates tables if they don't exist
func (s *DBService) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS ml_models (
		id UUID PRIMARY KEY,
		name VARCHAR(200) NOT NULL,
		algorithm VARCHAR(100) NOT NULL,
		task_type VARCHAR(50) NOT NULL,
		feature_columns TEXT[] NOT NULL,
		target_column VARCHAR(200),
		performance JSONB,
		bundle_key TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS executions (
		id BIGSERIAL PRIMARY KEY,
		code TEXT NOT NULL,
		submitted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		submitted_by VARCHAR(255),
		status VARCHAR(20) NOT NULL,
		output TEXT,
		result JSONB,
		error_message TEXT,
		duration_ms INTEGER,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS training_schedules (
		id BIGSERIAL PRIMARY KEY,
		scheduled_at TIMESTAMPTZ NOT NULL,
		request JSONB NOT NULL,
		executed BOOLEAN NOT NULL DEFAULT FALSE,
		executed_at TIMESTAMPTZ,
		status VARCHAR(20),
		model_id VARCHAR(64),
		error_message TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_executions_submitted_at ON executions(submitted_at DESC);
	CREATE INDEX IF NOT EXISTS idx_training_schedules_due ON training_schedules(executed, scheduled_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveModel upserts a model record's metadata. The opaque bundle itself
// lives in the storage service under bundleKey.
func (s *DBService) SaveModel(ctx context.Context, rec *models.ModelRecord, bundleKey string) error {
	performanceJSON, _ := json.Marshal(rec.Performance)

	var target sql.NullString
	if rec.TargetColumn != "" {
		target = sql.NullString{String: rec.TargetColumn, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ml_models (id, name, algorithm, task_type, feature_columns, target_column, performance, bundle_key, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, performance = EXCLUDED.performance,
		    bundle_key = EXCLUDED.bundle_key, version = EXCLUDED.version
	`, rec.ID, rec.Name, rec.Algorithm, rec.TaskType, pq.Array(rec.FeatureColumns), target, performanceJSON, bundleKey, rec.Version, rec.CreatedAt)
	return err
}

// DeleteModel removes a model record. Returns true iff a row existed.
func (s *DBService) DeleteModel(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ml_models WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// LoadModels returns every persisted model record (without bundles) plus the
// bundle storage key for each, used to warm the in-memory registry at startup
func (s *DBService) LoadModels(ctx context.Context) ([]models.ModelRecord, map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, algorithm, task_type, feature_columns, target_column, performance, bundle_key, version, created_at
		FROM ml_models ORDER BY created_at
	`)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var records []models.ModelRecord
	bundleKeys := map[string]string{}
	for rows.Next() {
		var rec models.ModelRecord
		var features pq.StringArray
		var target, bundleKey sql.NullString
		var performanceJSON []byte
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Algorithm, &rec.TaskType, &features, &target, &performanceJSON, &bundleKey, &rec.Version, &rec.CreatedAt); err != nil {
			return nil, nil, err
		}
		rec.FeatureColumns = []string(features)
		if target.Valid {
			rec.TargetColumn = target.String
		}
		if performanceJSON != nil {
			json.Unmarshal(performanceJSON, &rec.Performance)
		}
		if bundleKey.Valid {
			bundleKeys[rec.ID] = bundleKey.String
		}
		records = append(records, rec)
	}

	return records, bundleKeys, rows.Err()
}

// CreateExecution inserts a new pending execution row
func (s *DBService) CreateExecution(ctx context.Context, exec *models.Execution) (*models.Execution, error) {
	var id int64
	var submittedAt, createdAt time.Time
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO executions (code, submitted_by, status)
		VALUES ($1, $2, $3)
		RETURNING id, submitted_at, created_at
	`, exec.Code, exec.SubmittedBy, exec.Status).Scan(&id, &submittedAt, &createdAt)
	if err != nil {
		return nil, err
	}

	exec.ID = id
	exec.SubmittedAt = submittedAt
	exec.CreatedAt = createdAt

	return exec, nil
}

// UpdateExecutionResult updates an execution row with its final result
func (s *DBService) UpdateExecutionResult(ctx context.Context, id int64, status, output string, result map[string]interface{}, errorMessage string, durationMs int) error {
	resultJSON, _ := json.Marshal(result)

	_, err := s.db.ExecContext(ctx, `
		UPDATE executions
		SET status = $2, output = $3, result = $4, error_message = $5, duration_ms = $6
		WHERE id = $1
	`, id, status, output, resultJSON, errorMessage, durationMs)

	return err
}

// GetExecution retrieves an execution by ID
func (s *DBService) GetExecution(ctx context.Context, id int64) (*models.Execution, error) {
	exec := &models.Execution{}
	var resultJSON []byte
	var output, errorMessage, submittedBy sql.NullString
	var durationMs sql.NullInt32

	err := s.db.QueryRowContext(ctx, `
		SELECT id, code, submitted_at, submitted_by, status, output, result, error_message, duration_ms, created_at
		FROM executions WHERE id = $1
	`, id).Scan(&exec.ID, &exec.Code, &exec.SubmittedAt, &submittedBy, &exec.Status, &output, &resultJSON, &errorMessage, &durationMs, &exec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if resultJSON != nil {
		json.Unmarshal(resultJSON, &exec.Result)
	}
	if output.Valid {
		exec.Output = output.String
	}
	if errorMessage.Valid {
		exec.ErrorMessage = errorMessage.String
	}
	if submittedBy.Valid {
		exec.SubmittedBy = submittedBy.String
	}
	if durationMs.Valid {
		exec.DurationMs = int(durationMs.Int32)
	}

	return exec, nil
}

// ListExecutions returns recent executions, newest first
func (s *DBService) ListExecutions(ctx context.Context, limit int) ([]models.ExecutionListItem, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, submitted_at, status, error_message, duration_ms
		FROM executions
		ORDER BY submitted_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var executions []models.ExecutionListItem
	for rows.Next() {
		var exec models.ExecutionListItem
		var errorMessage sql.NullString
		var durationMs sql.NullInt32

		if err := rows.Scan(&exec.ID, &exec.SubmittedAt, &exec.Status, &errorMessage, &durationMs); err != nil {
			return nil, err
		}

		if errorMessage.Valid {
			exec.ErrorMessage = errorMessage.String
		}
		if durationMs.Valid {
			exec.DurationMs = int(durationMs.Int32)
		}

		executions = append(executions, exec)
	}

	return executions, nil
}
