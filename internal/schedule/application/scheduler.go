package application

import (
	"context"
	"log"
	"time"

	instruments "labmaint-cloud/internal/instruments/domain"
	schedule "labmaint-cloud/internal/schedule/domain"
)

// OverdueNotifier delivers reminders for overdue events.
type OverdueNotifier interface {
	NotifyOverdue(ctx context.Context, event schedule.MaintenanceEvent, instrument instruments.Instrument)
}

// Scheduler refreshes materialized cycles on a daily schedule and reports
// overdue events to the notifier.
type Scheduler struct {
	service  *Service
	notifier OverdueNotifier
	dailyAt  string
	logger   *log.Logger
}

// NewScheduler constructs a Scheduler.
func NewScheduler(service *Service, notifier OverdueNotifier, dailyAt string, logger *log.Logger) *Scheduler {
	return &Scheduler{
		service:  service,
		notifier: notifier,
		dailyAt:  dailyAt,
		logger:   logger,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.service == nil {
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !s.shouldRun(now.UTC()) {
				continue
			}
			s.runOnce(ctx, now.UTC())
		}
	}
}

func (s *Scheduler) shouldRun(now time.Time) bool {
	hour, minute, err := parseDailyAt(s.dailyAt)
	if err != nil {
		return false
	}
	return now.Hour() == hour && now.Minute() == minute
}

func (s *Scheduler) runOnce(ctx context.Context, now time.Time) {
	created, err := s.service.MaterializeAll(ctx)
	if err != nil {
		if s.logger != nil {
			s.logger.Printf("schedule materialize error: %v", err)
		}
		return
	}
	if len(created) > 0 && s.logger != nil {
		s.logger.Printf("schedule materialized %d cycle(s)", len(created))
	}
	s.notifyOverdue(ctx, now)
}

func (s *Scheduler) notifyOverdue(ctx context.Context, now time.Time) {
	if s.notifier == nil {
		return
	}
	open, err := s.service.events.ListOpen(ctx)
	if err != nil {
		if s.logger != nil {
			s.logger.Printf("schedule overdue scan error: %v", err)
		}
		return
	}
	for _, event := range open {
		if schedule.DeriveStatus(event, now) != schedule.StatusOverdue {
			continue
		}
		instrument, err := s.service.instruments.Get(ctx, event.InstrumentID)
		if err != nil || instrument == nil {
			continue
		}
		s.notifier.NotifyOverdue(ctx, event, *instrument)
	}
}

func parseDailyAt(value string) (int, int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}
