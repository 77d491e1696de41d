package services

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"notebook-engine-server/models"
)

// ScheduleRunner fires due training schedules through the training service
type ScheduleRunner struct {
	scheduleService *ScheduleService
	trainingService *TrainingService
	interval        time.Duration
	batchSize       int
	stopCh          chan struct{}
	wg              sync.WaitGroup
}

func NewScheduleRunner(scheduleService *ScheduleService, trainingService *TrainingService) *ScheduleRunner {
	return &ScheduleRunner{
		scheduleService: scheduleService,
		trainingService: trainingService,
		interval:        time.Second,
		batchSize:       20,
		stopCh:          make(chan struct{}),
	}
}

func (r *ScheduleRunner) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.processDueSchedules()
			case <-r.stopCh:
				return
			}
		}
	}()
}

func (r *ScheduleRunner) Stop() {
	close(r.stopCh)
	r.wg.Wait()
}

func (r *ScheduleRunner) processDueSchedules() {
	ctx := context.Background()
	schedules, err := r.scheduleService.ClaimDueSchedules(ctx, r.batchSize)
	if err != nil {
		log.Printf("scheduler: failed to claim schedules: %v", err)
		return
	}
	for _, sched := range schedules {
		go r.executeSchedule(ctx, sched)
	}
}

func (r *ScheduleRunner) executeSchedule(ctx context.Context, sched models.TrainingSchedule) {
	if sched.Request == nil {
		r.scheduleService.MarkExecuted(ctx, sched.ID, models.StatusFail, "", "schedule has no training request")
		return
	}

	outcome, err := r.trainingService.TrainModel(ctx, sched.Request)
	if err != nil {
		r.scheduleService.MarkExecuted(ctx, sched.ID, models.StatusFail, "", err.Error())
		return
	}
	if !outcome.Success {
		status := models.StatusFail
		if strings.Contains(outcome.Error, "timed out") {
			status = models.StatusTimeout
		}
		r.scheduleService.MarkExecuted(ctx, sched.ID, status, "", outcome.Error)
		return
	}

	r.scheduleService.MarkExecuted(ctx, sched.ID, models.StatusSuccess, outcome.ModelID, "")
}
