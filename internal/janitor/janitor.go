// Package janitor reclaims expired job records and aged-out artifacts on a
// fixed interval. The artifact sweep is a blind age-based pass over each
// backend's namespace, so orphans with no surviving record are still found.
package janitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lthibault/jitterbug/v2"

	"github.com/mibrahim/cutout/internal/job"
	"github.com/mibrahim/cutout/internal/storage"
)

// Config holds janitor scheduling and retention settings.
type Config struct {
	Logger   *slog.Logger
	Store    *job.RecordStore
	Backends map[string]storage.Backend

	// TTL is the retention window shared by records and artifacts.
	TTL time.Duration
	// Interval is the sweep period, jittered slightly to avoid lockstep
	// with other periodic work.
	Interval time.Duration
	// StartDelay postpones the first sweep past process start.
	StartDelay time.Duration
}

// Janitor runs the periodic reclamation sweep on its own timer,
// concurrently with in-flight workers.
type Janitor struct {
	logger     *slog.Logger
	store      *job.RecordStore
	backends   map[string]storage.Backend
	ttl        time.Duration
	interval   time.Duration
	startDelay time.Duration

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a Janitor.
func New(cfg *Config) *Janitor {
	return &Janitor{
		logger:     cfg.Logger,
		store:      cfg.Store,
		backends:   cfg.Backends,
		ttl:        cfg.TTL,
		interval:   cfg.Interval,
		startDelay: cfg.StartDelay,
		stopChan:   make(chan struct{}),
	}
}

// Start launches the sweep loop. The first sweep runs after StartDelay,
// then every Interval.
func (j *Janitor) Start(ctx context.Context) {
	j.logger.Info("Starting janitor",
		slog.Duration("interval", j.interval),
		slog.Duration("start_delay", j.startDelay),
		slog.Duration("ttl", j.ttl),
	)

	j.wg.Add(1)
	go j.loop(ctx)
}

// Stop signals the loop and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	close(j.stopChan)
	j.wg.Wait()
	j.logger.Info("Janitor stopped")
}

func (j *Janitor) loop(ctx context.Context) {
	defer j.wg.Done()

	select {
	case <-time.After(j.startDelay):
	case <-j.stopChan:
		return
	case <-ctx.Done():
		return
	}

	j.Sweep(ctx)

	ticker := jitterbug.New(j.interval, &jitterbug.Norm{Stdev: time.Second})
	defer ticker.Stop()

	for {
		select {
		case <-j.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep runs one reclamation pass: expired record keys are deleted
// explicitly, then every backend drops artifacts older than the TTL
// window. Record and artifact deletion are independent; an artifact can
// outlive its record by at most one interval.
func (j *Janitor) Sweep(ctx context.Context) {
	start := time.Now()

	entries, err := j.store.Scan(ctx)
	if err != nil {
		j.logger.Error("Record scan failed",
			slog.String("error", err.Error()),
		)
	}

	expired := 0
	for _, entry := range entries {
		if entry.TTL >= 0 {
			continue
		}
		if err := j.store.Delete(ctx, entry.ID); err != nil {
			j.logger.Warn("Failed to delete expired record",
				slog.String("job_id", entry.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		expired++
	}

	removed := 0
	for variant, backend := range j.backends {
		n, err := backend.Sweep(ctx, j.ttl)
		removed += n
		if err != nil {
			j.logger.Error("Artifact sweep failed",
				slog.String("variant", variant),
				slog.String("error", err.Error()),
			)
		}
	}

	j.logger.Info("Sweep complete",
		slog.Int("expired_records", expired),
		slog.Int("removed_artifacts", removed),
		slog.Duration("elapsed", time.Since(start)),
	)
}
