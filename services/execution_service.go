package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"notebook-engine-server/models"
)

// DefaultExecutionTimeout bounds one interpreter invocation
const DefaultExecutionTimeout = 30 * time.Second

// installTimeout bounds a best-effort package installation
const installTimeout = 120 * time.Second

// ExecutionService composes the script builder, data marshaler, and process
// supervisor into the facade callers use to run analysis and training
// scripts. Every call returns a result envelope; interpreter failures are
// reported through it, never raised.
type ExecutionService struct {
	builder    *ScriptBuilder
	marshaler  *Marshaler
	supervisor *Supervisor
	timeout    time.Duration

	db    *DBService
	redis *RedisService
}

func NewExecutionService(builder *ScriptBuilder, marshaler *Marshaler, supervisor *Supervisor, timeout time.Duration, db *DBService, redis *RedisService) *ExecutionService {
	if timeout <= 0 {
		timeout = DefaultExecutionTimeout
	}
	return &ExecutionService{
		builder:    builder,
		marshaler:  marshaler,
		supervisor: supervisor,
		timeout:    timeout,
		db:         db,
		redis:      redis,
	}
}

// ExecuteScript runs an already-built script against the given dataset in a
// fresh workspace. The workspace exists for the duration of this call only.
func (s *ExecutionService) ExecuteScript(ctx context.Context, script string, rows []map[string]interface{}, columns []string, extra map[string]interface{}) *models.ExecutionResult {
	start := time.Now()

	ws, err := s.supervisor.NewWorkspace()
	if err != nil {
		return failedResult(start, fmt.Sprintf("allocate workspace: %v", err))
	}
	defer ws.Cleanup()

	if err := os.WriteFile(ws.ScriptPath, []byte(script), 0644); err != nil {
		return failedResult(start, fmt.Sprintf("write script: %v", err))
	}
	if err := s.marshaler.WriteContext(ws.DataPath, rows, columns, extra); err != nil {
		return failedResult(start, err.Error())
	}

	run := s.supervisor.Run(ctx, ws, s.timeout)
	res := s.marshaler.ReadResult(ws.ResultPath, run)
	if run.TimedOut {
		res.Success = false
		res.Error = fmt.Sprintf("execution timed out after %v", s.timeout)
	}
	res.ExecutionTimeMs = time.Since(start).Milliseconds()
	return res
}

// Execute runs arbitrary analysis code with an optional data context
func (s *ExecutionService) Execute(ctx context.Context, req *models.ExecutionRequest) *models.ExecutionResult {
	start := time.Now()
	script, err := s.builder.BuildAnalysisScript(req.Code)
	if err != nil {
		return failedResult(start, err.Error())
	}

	var rows []map[string]interface{}
	var columns []string
	if req.DataContext != nil {
		rows = req.DataContext.Rows
		columns = req.DataContext.Columns
	}
	return s.ExecuteScript(ctx, script, rows, columns, nil)
}

// ExecuteAnalysis runs code with no data context
func (s *ExecutionService) ExecuteAnalysis(ctx context.Context, code string) *models.ExecutionResult {
	return s.Execute(ctx, &models.ExecutionRequest{Code: code})
}

// InstallPackage asks the interpreter ecosystem's package manager to install
// a package. Best effort: reported as success or failure, no version pinning.
func (s *ExecutionService) InstallPackage(ctx context.Context, name string) (bool, string) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, " \t\n") {
		return false, "invalid package name"
	}
	run := s.supervisor.RunInterpreter(ctx, installTimeout, "-m", "pip", "install", name)
	if run.ExitCode != 0 {
		return false, firstNonEmpty(run.Stderr, run.Stdout)
	}
	return true, run.Stdout
}

// SubmitExecution persists a pending execution row and runs the code in a
// background goroutine, publishing the result to Redis. The caller polls
// GetExecutionResult with the returned id.
func (s *ExecutionService) SubmitExecution(ctx context.Context, req *models.SubmitExecutionRequest, submittedBy string) (*models.Execution, error) {
	exec := &models.Execution{
		Code:        req.Code,
		SubmittedBy: submittedBy,
		Status:      models.StatusPending,
	}
	created, err := s.db.CreateExecution(ctx, exec)
	if err != nil {
		return nil, err
	}

	go s.runAsync(created.ID, req)

	return created, nil
}

func (s *ExecutionService) runAsync(executionID int64, req *models.SubmitExecutionRequest) {
	ctx := context.Background()
	res := s.Execute(ctx, &models.ExecutionRequest{Code: req.Code, DataContext: req.DataContext})

	status := models.StatusFail
	if res.Success {
		status = models.StatusSuccess
	} else if strings.Contains(res.Error, "timed out") {
		status = models.StatusTimeout
	}

	async := &AsyncResult{
		ExecutionID:  executionID,
		Status:       status,
		Output:       res.Output,
		Result:       resultAsMap(res.Result),
		ErrorMessage: res.Error,
		DurationMs:   int(res.ExecutionTimeMs),
	}
	if err := s.redis.SetResult(ctx, async); err != nil {
		log.Printf("execution %d: failed to publish result: %v", executionID, err)
		// Fall back to writing the row directly so the caller still sees it
		if dbErr := s.db.UpdateExecutionResult(ctx, executionID, status, async.Output, async.Result, async.ErrorMessage, async.DurationMs); dbErr != nil {
			log.Printf("execution %d: failed to persist result: %v", executionID, dbErr)
		}
	}
}

// GetExecutionResult returns the execution row, folding a Redis-published
// result into the database on first observation
func (s *ExecutionService) GetExecutionResult(ctx context.Context, executionID int64) (*models.Execution, error) {
	exec, err := s.db.GetExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}
	if exec == nil {
		return nil, models.ErrExecutionNotFound
	}
	if exec.Status != models.StatusPending {
		return exec, nil
	}

	result, err := s.redis.GetResult(ctx, executionID)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return exec, nil
	}

	if err := s.db.UpdateExecutionResult(ctx, executionID, result.Status, result.Output, result.Result, result.ErrorMessage, result.DurationMs); err != nil {
		return nil, err
	}
	return s.db.GetExecution(ctx, executionID)
}

// ListExecutions returns recent executions, newest first
func (s *ExecutionService) ListExecutions(ctx context.Context, limit int) ([]models.ExecutionListItem, error) {
	return s.db.ListExecutions(ctx, limit)
}

func failedResult(start time.Time, msg string) *models.ExecutionResult {
	return &models.ExecutionResult{
		Success:         false,
		Error:           msg,
		ExecutionTimeMs: time.Since(start).Milliseconds(),
	}
}

func resultAsMap(v interface{}) map[string]interface{} {
	if v == nil {
		return nil
	}
	if m, ok := v.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{"value": v}
}
