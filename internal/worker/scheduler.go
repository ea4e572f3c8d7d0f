package worker

import (
	"context"
	"time"

	"hanapbahay/internal/config"
	"hanapbahay/internal/metrics"
	"hanapbahay/internal/models"

	"github.com/rs/zerolog"
)

// PaymentJobs are the periodic rent ledger jobs.
type PaymentJobs interface {
	SweepOverdue(ctx context.Context) (int, error)
	SendReminders(ctx context.Context, daysAhead int) (int, error)
}

// PaymentScheduler runs the overdue sweep on an interval and sends due-date
// reminders once a day.
type PaymentScheduler struct {
	jobs          PaymentJobs
	sweepInterval time.Duration
	reminderDays  int
	reminderHour  int
	reminderMin   int
	now           func() time.Time
	logger        *zerolog.Logger
}

func NewPaymentScheduler(jobs PaymentJobs, cfg config.PaymentsConfig, logger *zerolog.Logger) *PaymentScheduler {
	s := &PaymentScheduler{
		jobs:          jobs,
		sweepInterval: cfg.SweepInterval,
		reminderDays:  cfg.ReminderDays,
		reminderHour:  models.ReminderHour,
		now:           time.Now,
		logger:        logger,
	}
	if s.sweepInterval <= 0 {
		s.sweepInterval = time.Hour
	}
	if s.reminderDays <= 0 {
		s.reminderDays = models.DefaultReminderDays
	}
	if cfg.ReminderTime != "" {
		h, m, err := config.ParseClock(cfg.ReminderTime)
		if err != nil {
			logger.Error().Err(err).Str("reminder_time", cfg.ReminderTime).Msg("invalid reminder time, using default")
		} else {
			s.reminderHour, s.reminderMin = h, m
		}
	}
	return s
}

// Start sweeps once immediately, then keeps both schedules until ctx is done.
func (s *PaymentScheduler) Start(ctx context.Context) {
	s.logger.Info().Dur("sweep_interval", s.sweepInterval).Int("reminder_days", s.reminderDays).Msg("payment scheduler started")
	defer s.logger.Info().Msg("payment scheduler stopped")

	s.RunSweep(ctx)

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	reminder := time.NewTimer(s.untilNextReminder())
	defer reminder.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunSweep(ctx)
		case <-reminder.C:
			s.RunReminders(ctx)
			reminder.Reset(s.untilNextReminder())
		}
	}
}

// RunSweep marks overdue payments and records the run.
func (s *PaymentScheduler) RunSweep(ctx context.Context) {
	changed, err := s.jobs.SweepOverdue(ctx)
	if err != nil {
		metrics.IncSweep(metrics.SweepFailed)
		s.logger.Error().Err(err).Msg("overdue sweep failed")
		return
	}
	metrics.IncSweep(metrics.SweepOK)
	if changed > 0 {
		s.logger.Info().Int("changed", changed).Msg("overdue sweep")
	}
}

func (s *PaymentScheduler) RunReminders(ctx context.Context) {
	sent, err := s.jobs.SendReminders(ctx, s.reminderDays)
	if err != nil {
		s.logger.Error().Err(err).Msg("payment reminders failed")
		return
	}
	s.logger.Info().Int("sent", sent).Int("days_ahead", s.reminderDays).Msg("payment reminders")
}

func (s *PaymentScheduler) untilNextReminder() time.Duration {
	now := s.now().In(models.Location())
	next := time.Date(now.Year(), now.Month(), now.Day(), s.reminderHour, s.reminderMin, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}
