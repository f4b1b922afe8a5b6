package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/jose-valero/guild-keeper-bot/internal/infra/storage"
)

// NextHour devuelve el próximo límite de hora UTC estrictamente posterior a t.
func NextHour(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour).Add(time.Hour)
}

// Scheduler corre una vez por hora, alineado a la hora UTC: barrido de
// encuestas vencidas y luego flush debounced.
type Scheduler struct {
	polls *PollService
	store *storage.Store
	log   *slog.Logger
	now   func() time.Time
}

func NewScheduler(polls *PollService, store *storage.Store, log *slog.Logger, now func() time.Time) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Scheduler{polls: polls, store: store, log: log.With("component", "scheduler"), now: now}
}

// Run bloquea hasta que ctx se cancela.
func (s *Scheduler) Run(ctx context.Context) error {
	now := s.now()
	timer := time.NewTimer(NextHour(now).Sub(now))
	defer timer.Stop()
	s.log.Info("scheduler started", "first_tick", NextHour(now))

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			s.Tick(ctx)
			now := s.now()
			timer.Reset(NextHour(now).Sub(now))
		}
	}
}

// Tick ejecuta una pasada: sweep y después flush debounced.
func (s *Scheduler) Tick(ctx context.Context) {
	if n := s.polls.SweepExpired(ctx, s.now().Unix()); n > 0 {
		s.log.Info("expired polls swept", "count", n)
	}
	if _, err := s.store.Flush(ctx, true); err != nil {
		s.log.Error("hourly flush failed", "err", err)
	}
}

// ForceSave ignora cadencia y cooldown.
func (s *Scheduler) ForceSave(ctx context.Context) error {
	_, err := s.store.Flush(ctx, false)
	if err != nil {
		s.log.Error("forced flush failed", "err", err)
	}
	return err
}
