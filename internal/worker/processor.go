package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mibrahim/cutout/internal/imageio"
	"github.com/mibrahim/cutout/internal/job"
	"github.com/mibrahim/cutout/internal/removal"
	"github.com/mibrahim/cutout/internal/storage"
)

// Generic failure categories stored on failed records. Internal error
// messages stay in the logs and never reach the externally visible record.
const (
	causeProcessing = "Internal processing error"
	causeStorage    = "storage upload failed"
)

// stampTimeout bounds the terminal record write when the worker context is
// already canceled or a panic is being recovered.
const stampTimeout = 10 * time.Second

// Notifier delivers the completion message. Implementations must not panic
// past their boundary; failure is a boolean, never an error.
type Notifier interface {
	Notify(recipient, link string) bool
}

// ProcessorConfig holds the processor's collaborators and policies.
type ProcessorConfig struct {
	Logger   *slog.Logger
	Store    *job.RecordStore
	Backend  storage.Backend
	Engine   removal.Engine
	Notifier Notifier

	// TTL is the record lifetime, reset on every write.
	TTL time.Duration
	// Timeout bounds one model invocation. Zero disables the bound.
	Timeout time.Duration
	// BaseURL is the public address used to build download links.
	BaseURL string
}

// Processor drives one job from processing to a terminal state: transform,
// encode, persist, record, notify. It is shared by all pool workers.
type Processor struct {
	logger   *slog.Logger
	store    *job.RecordStore
	backend  storage.Backend
	engine   removal.Engine
	notifier Notifier
	ttl      time.Duration
	timeout  time.Duration
	baseURL  string
}

// NewProcessor creates a Processor.
func NewProcessor(cfg *ProcessorConfig) *Processor {
	return &Processor{
		logger:   cfg.Logger,
		store:    cfg.Store,
		backend:  cfg.Backend,
		engine:   cfg.Engine,
		notifier: cfg.Notifier,
		ttl:      cfg.TTL,
		timeout:  cfg.Timeout,
		baseURL:  cfg.BaseURL,
	}
}

// Run implements Runner. The record was written as processing by the
// orchestrator; Run performs exactly one terminal transition. A deferred
// guard guarantees the failed stamp lands even if a step panics, so no job
// is left in processing by a fault in this sequence.
func (p *Processor) Run(ctx context.Context, t *job.Task) {
	stamped := false

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Job processing panicked",
				slog.String("job_id", t.ID),
				slog.Any("panic", r),
			)
			if !stamped {
				p.stampFailed(t, causeProcessing)
			}
		}
	}()

	start := time.Now()

	filename, err := p.process(ctx, t)
	if err != nil {
		cause := causeProcessing
		if isStorageErr(err) {
			cause = causeStorage
		}
		p.logger.Error("Job failed",
			slog.String("job_id", t.ID),
			slog.String("cause", cause),
			slog.String("error", err.Error()),
		)
		p.stampFailed(t, cause)
		stamped = true
		return
	}

	rec := job.NewRecord(t.Request)
	rec.Status = job.StatusCompleted
	rec.Filename = filename
	rec.Storage = p.backend.Variant()

	if putErr := p.store.Put(ctx, t.ID, rec, p.ttl); putErr != nil {
		// The completed write can fail when the worker context is already
		// canceled during shutdown. Stamp failed on a fresh context so the
		// job never sits in processing until TTL expiry; the janitor
		// reclaims the orphaned artifact once it ages out.
		p.logger.Error("Failed to write completed record",
			slog.String("job_id", t.ID),
			slog.String("error", putErr.Error()),
		)
		p.stampFailed(t, causeProcessing)
		stamped = true
		return
	}
	stamped = true

	p.logger.Info("Job completed",
		slog.String("job_id", t.ID),
		slog.String("filename", filename),
		slog.String("storage", rec.Storage),
		slog.Duration("elapsed", time.Since(start)),
	)

	p.notify(ctx, t)
}

// process runs the transform-encode-store sequence and returns the stored
// artifact's filename.
func (p *Processor) process(ctx context.Context, t *job.Task) (string, error) {
	prepared, err := imageio.Prepare(t.Payload, t.Request.Scale)
	if err != nil {
		return "", err
	}

	removeCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		removeCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	cut, err := p.engine.Remove(removeCtx, prepared, t.Request.Model)
	if err != nil {
		return "", err
	}

	encoded, err := imageio.Encode(cut, t.Request.OutputFormat, t.Request.Quality)
	if err != nil {
		return "", err
	}

	filename := fmt.Sprintf("%s.%s", t.ID, t.Request.OutputFormat)
	contentType := imageio.ContentType(t.Request.OutputFormat)

	if err := p.backend.Store(ctx, filename, encoded, contentType); err != nil {
		return "", storageError{err}
	}

	return filename, nil
}

// notify sends the completion email and, on failure, performs the
// best-effort read-modify-write stamp of email_status. A failed stamp
// (e.g. the record already expired) is swallowed.
func (p *Processor) notify(ctx context.Context, t *job.Task) {
	link := fmt.Sprintf("%s/download/%s", p.baseURL, t.ID)

	if p.notifier.Notify(t.Request.Email, link) {
		p.stampEmailStatus(ctx, t.ID, job.EmailStatusSent)
		return
	}

	p.stampEmailStatus(ctx, t.ID, job.EmailStatusFailed)
}

func (p *Processor) stampEmailStatus(ctx context.Context, id, status string) {
	rec, err := p.store.Get(ctx, id)
	if err != nil {
		p.logger.Warn("Skipping email status stamp",
			slog.String("job_id", id),
			slog.String("error", err.Error()),
		)
		return
	}

	rec.EmailStatus = status
	if err := p.store.Put(ctx, id, rec, p.ttl); err != nil {
		p.logger.Warn("Failed to stamp email status",
			slog.String("job_id", id),
			slog.String("error", err.Error()),
		)
	}
}

// stampFailed writes the terminal failed record. It uses a fresh context so
// the stamp still lands when the worker context is canceled or recovering
// from a panic.
func (p *Processor) stampFailed(t *job.Task, cause string) {
	ctx, cancel := context.WithTimeout(context.Background(), stampTimeout)
	defer cancel()

	rec := job.NewRecord(t.Request)
	rec.Status = job.StatusFailed
	rec.Error = cause

	if err := p.store.Put(ctx, t.ID, rec, p.ttl); err != nil {
		p.logger.Error("Failed to stamp failed record",
			slog.String("job_id", t.ID),
			slog.String("error", err.Error()),
		)
	}
}

// storageError marks persistence failures so they map to the storage
// failure category.
type storageError struct {
	err error
}

func (e storageError) Error() string { return e.err.Error() }
func (e storageError) Unwrap() error { return e.err }

func isStorageErr(err error) bool {
	var se storageError
	return errors.As(err, &se)
}
