// Package sweeper cancels reservas left Pendiente longer than the configured
// TTL, returning their horarios to the pool.
package sweeper

import (
	"context"
	"time"

	"canchas/pkg/config"
	"canchas/pkg/logger"

	"github.com/go-co-op/gocron/v2"
)

const batchSize = 100

type Expirer interface {
	ExpirePending(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

type Sweeper struct {
	scheduler gocron.Scheduler
	expirer   Expirer
	ttl       time.Duration
	timeout   time.Duration
	log       *logger.Logger
	now       func() time.Time
}

func New(expirer Expirer, cfg *config.Config) (*Sweeper, error) {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return nil, err
	}

	s := &Sweeper{
		scheduler: scheduler,
		expirer:   expirer,
		ttl:       cfg.PendingReservationTTL,
		timeout:   cfg.SweepInterval,
		log:       cfg.Log.With("component", "sweeper"),
		now:       time.Now,
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(cfg.SweepInterval),
		gocron.NewTask(s.sweep),
		gocron.WithName("expire-pending-reservas"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sweeper) Start() {
	s.scheduler.Start()
	s.log.Info("Reserva sweeper started", "ttl", s.ttl)
}

func (s *Sweeper) Stop() error {
	return s.scheduler.Shutdown()
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.RunOnce(ctx); err != nil {
		s.log.Error("Reserva sweep failed", "error", err)
	}
}

// RunOnce expires pending reservas in batches until a batch comes back short.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.ttl)
	total := 0
	for {
		n, err := s.expirer.ExpirePending(ctx, cutoff, batchSize)
		total += n
		if err != nil {
			return total, err
		}
		if n < batchSize || ctx.Err() != nil {
			break
		}
	}
	if total > 0 {
		s.log.Info("Expired pending reservas", "count", total, "cutoff", cutoff)
	}
	return total, nil
}
