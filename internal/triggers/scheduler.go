package triggers

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"pipeline-hub/internal/common/errors"
	"pipeline-hub/internal/common/logging"
	"pipeline-hub/internal/locks"
	"pipeline-hub/internal/models"
	"pipeline-hub/internal/nodes"
	"pipeline-hub/internal/storage"
)

// fireClaimTTL outlives clock skew between instances sharing a claimer.
const fireClaimTTL = 2 * time.Minute

// Scheduler fires pipelines with a schedule trigger. When several instances
// share a Redis-backed claimer, each fire is delivered once.
type Scheduler struct {
	cron     *cron.Cron
	store    storage.PipelineStore
	notifier Notifier
	claimer  locks.Claimer
	now      func() time.Time
	logger   logging.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
	timers  map[string]*time.Timer
}

func NewScheduler(store storage.PipelineStore, notifier Notifier, claimer locks.Claimer) *Scheduler {
	if claimer == nil {
		claimer = locks.NewLocalClaimer()
	}
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		store:    store,
		notifier: notifier,
		claimer:  claimer,
		now:      time.Now,
		logger:   logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "scheduler"}),
		entries:  make(map[string]cron.EntryID),
		timers:   make(map[string]*time.Timer),
	}
}

// Start registers every stored scheduled pipeline and starts the clock.
func (s *Scheduler) Start(ctx context.Context) error {
	list, err := s.store.ListPipelinesByTriggerType(ctx, nodes.TriggerSchedule)
	if err != nil {
		return errors.InternalError("failed to load scheduled pipelines", err)
	}
	for _, p := range list {
		s.Sync(p)
	}
	s.cron.Start()

	s.logger.Info("Scheduler started", logging.Field{Key: "pipelines", Value: len(list)})
	return nil
}

// Stop halts the clock and waits for running fires to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}

// Sync replaces whatever is registered for the pipeline with its current
// schedule. Pipelines without a valid schedule trigger are only removed.
// The replacement happens under one lock, so concurrent syncs of the same
// pipeline leave exactly one registration.
func (s *Scheduler) Sync(p *models.Pipeline) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(p.ID)

	if p.TriggerType() != nodes.TriggerSchedule {
		return
	}
	cfg, ok := p.Definition.Trigger.Config.(*nodes.ScheduleTrigger)
	if !ok {
		return
	}
	logger := s.logger.WithFields(logging.Field{Key: "pipeline_id", Value: p.ID})
	if problems := cfg.Validate(); len(problems) > 0 {
		logger.Warn("Schedule not registered, trigger is invalid", logging.Strings("problems", problems))
		return
	}

	pipelineID, userID := p.ID, p.UserID
	if cfg.Cadence == nodes.CadenceOnce {
		at, _ := time.Parse(time.RFC3339, cfg.Datetime)
		delay := at.Sub(s.now())
		if delay <= 0 {
			logger.Info("One-shot schedule is in the past, not registered", logging.Field{Key: "at", Value: cfg.Datetime})
			return
		}
		s.timers[pipelineID] = time.AfterFunc(delay, func() { s.fire(pipelineID, userID) })
		logger.Info("One-shot schedule registered", logging.Field{Key: "at", Value: at.Format(time.RFC3339)})
		return
	}

	spec, err := CronSpec(cfg)
	if err != nil {
		logger.Warn("Schedule not registered", logging.Err(err))
		return
	}
	id, err := s.cron.AddFunc(spec, func() { s.fire(pipelineID, userID) })
	if err != nil {
		logger.Warn("Schedule not registered", logging.Field{Key: "spec", Value: spec}, logging.Err(err))
		return
	}
	s.entries[pipelineID] = id
	logger.Info("Schedule registered", logging.Field{Key: "spec", Value: spec})
}

// Remove unregisters the pipeline's schedule, if any.
func (s *Scheduler) Remove(pipelineID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(pipelineID)
}

func (s *Scheduler) removeLocked(pipelineID string) {
	if id, ok := s.entries[pipelineID]; ok {
		s.cron.Remove(id)
		delete(s.entries, pipelineID)
	}
	if timer, ok := s.timers[pipelineID]; ok {
		timer.Stop()
		delete(s.timers, pipelineID)
	}
}

// fire notifies the owner once per minute slot across all instances.
func (s *Scheduler) fire(pipelineID, userID string) {
	ctx := context.Background()
	now := s.now().UTC()
	logger := s.logger.WithFields(logging.Field{Key: "pipeline_id", Value: pipelineID})

	s.mu.Lock()
	delete(s.timers, pipelineID)
	s.mu.Unlock()

	key := "schedule:" + pipelineID + ":" + strconv.FormatInt(now.Truncate(time.Minute).Unix(), 10)
	claimed, err := s.claimer.Claim(ctx, key, fireClaimTTL)
	if err != nil {
		logger.Error("Failed to claim scheduled fire", err)
		return
	}
	if !claimed {
		logger.Debug("Scheduled fire claimed by another instance")
		return
	}

	p, err := s.store.GetPipeline(ctx, pipelineID)
	if err != nil {
		logger.Error("Failed to load scheduled pipeline", err)
		return
	}
	if p == nil || p.TriggerType() != nodes.TriggerSchedule {
		s.Remove(pipelineID)
		return
	}

	results, err := s.notifier.SendToUser(ctx, userID, &Notification{
		Type:         TypeSchedule,
		PipelineID:   p.ID,
		PipelineName: p.Title,
		Timestamp:    now.Format(time.RFC3339Nano),
	})
	if err != nil {
		logger.Error("Failed to deliver schedule notification", err)
		return
	}
	logger.Info("Scheduled pipeline fired", logging.Field{Key: "deliveries", Value: len(results)})
}

// CronSpec converts a recurring schedule into a cron spec with a CRON_TZ
// prefix. ONCE has no cron form.
func CronSpec(cfg *nodes.ScheduleTrigger) (string, error) {
	tz := cfg.Timezone
	if tz == "" {
		tz = "UTC"
	}
	prefix := "CRON_TZ=" + tz + " "

	if cfg.Cadence == nodes.CadenceCron {
		return prefix + cfg.Expression, nil
	}

	clock, err := time.Parse("15:04", cfg.Time)
	if err != nil && cfg.Cadence != nodes.CadenceHourly {
		return "", fmt.Errorf("invalid time %q", cfg.Time)
	}
	minute, hour := clock.Minute(), clock.Hour()

	switch cfg.Cadence {
	case nodes.CadenceHourly:
		return fmt.Sprintf("%s%d * * * *", prefix, minute), nil
	case nodes.CadenceDaily:
		return fmt.Sprintf("%s%d %d * * *", prefix, minute, hour), nil
	case nodes.CadenceWeekly:
		if cfg.DayOfWeek == nil {
			return "", fmt.Errorf("dayOfWeek is required for WEEKLY")
		}
		return fmt.Sprintf("%s%d %d * * %d", prefix, minute, hour, *cfg.DayOfWeek), nil
	case nodes.CadenceMonthly:
		if cfg.DayOfMonth == nil {
			return "", fmt.Errorf("dayOfMonth is required for MONTHLY")
		}
		return fmt.Sprintf("%s%d %d %d * *", prefix, minute, hour, *cfg.DayOfMonth), nil
	}
	return "", fmt.Errorf("cadence %q has no cron form", cfg.Cadence)
}
