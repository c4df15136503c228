package session

import (
	"fmt"
	"time"

	"github.com/jordan/alivia/internal/observability"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultIdleTTL is how long a session may sit idle before eviction
	DefaultIdleTTL = 24 * time.Hour
	// DefaultSweepSchedule is the cron spec for idle sweeps
	DefaultSweepSchedule = "@every 15m"
)

// Sweeper periodically evicts idle sessions so the store stays bounded in
// long-running processes.
type Sweeper struct {
	store    *Store
	idleTTL  time.Duration
	schedule string
	cron     *cron.Cron
}

// NewSweeper creates a sweeper for the given store.
func NewSweeper(store *Store, idleTTL time.Duration, schedule string) *Sweeper {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}

	return &Sweeper{
		store:    store,
		idleTTL:  idleTTL,
		schedule: schedule,
	}
}

// Start schedules the sweep job.
func (sw *Sweeper) Start() error {
	if sw.cron != nil {
		return fmt.Errorf("sweeper is already running")
	}

	c := cron.New()
	if _, err := c.AddFunc(sw.schedule, sw.sweep); err != nil {
		return fmt.Errorf("failed to schedule session sweep: %w", err)
	}
	c.Start()
	sw.cron = c

	log.Info().
		Dur("idle_ttl", sw.idleTTL).
		Str("schedule", sw.schedule).
		Msg("Session sweeper started")

	return nil
}

// Stop halts the sweep job and waits for a running sweep to finish.
func (sw *Sweeper) Stop() {
	if sw.cron == nil {
		return
	}
	ctx := sw.cron.Stop()
	<-ctx.Done()
	sw.cron = nil

	log.Info().Msg("Session sweeper stopped")
}

func (sw *Sweeper) sweep() {
	evicted := sw.store.evictIdle(sw.idleTTL)
	if evicted == 0 {
		return
	}

	observability.RecordSessionsEvicted(evicted)
	log.Info().
		Int("evicted", evicted).
		Int("remaining", sw.store.Len()).
		Msg("Idle sessions evicted")
}
