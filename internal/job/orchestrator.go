package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrUploadTooLarge is returned when the uploaded file exceeds the
	// configured maximum before any processing happens.
	ErrUploadTooLarge = errors.New("uploaded file too large")

	// ErrOverloaded is returned when the worker queue cannot accept more
	// jobs. No record survives a rejected submission.
	ErrOverloaded = errors.New("too many queued jobs")
)

// ValidationError rejects a submission before a job id is issued.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Dispatcher schedules a task for background execution without waiting for
// it. A nil error means exactly one execution will eventually run.
type Dispatcher interface {
	Dispatch(t *Task) error
}

// Limits holds the submission admission rules.
type Limits struct {
	MaxUploadBytes    int64
	AllowedModels     []string
	AllowedFormats    []string
	AllowedExtensions []string
}

// Orchestrator validates submissions, assigns ids, writes the initial
// record, and hands the work to the dispatcher. Submit returns as soon as
// the task is queued; completion is observed through the record store.
type Orchestrator struct {
	store      *RecordStore
	dispatcher Dispatcher
	logger     *slog.Logger
	limits     Limits
	ttl        time.Duration
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(store *RecordStore, dispatcher Dispatcher, limits Limits, ttl time.Duration, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
		limits:     limits,
		ttl:        ttl,
	}
}

// CheckUpload performs the cheap admission checks that only need the
// multipart header: file extension and declared size. Callers run this
// before reading the upload body.
func (o *Orchestrator) CheckUpload(fileName string, size int64) error {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	if !contains(o.limits.AllowedExtensions, ext) {
		return &ValidationError{
			Field:  "file",
			Reason: fmt.Sprintf("unsupported file type %q, supported: %s", ext, strings.Join(o.limits.AllowedExtensions, ", ")),
		}
	}

	if size > o.limits.MaxUploadBytes {
		return fmt.Errorf("%w: %d bytes, maximum is %d", ErrUploadTooLarge, size, o.limits.MaxUploadBytes)
	}

	return nil
}

// Submit validates the request, creates the processing record, and
// dispatches the job. It returns the new job id immediately; the worker may
// not have started yet. If dispatch fails the record is removed and no id
// is issued.
func (o *Orchestrator) Submit(ctx context.Context, req Request, fileName string, data []byte) (string, error) {
	if err := o.CheckUpload(fileName, int64(len(data))); err != nil {
		return "", err
	}
	if err := o.validate(req); err != nil {
		return "", err
	}

	id := uuid.New().String()

	if err := o.store.Put(ctx, id, NewRecord(req), o.ttl); err != nil {
		return "", fmt.Errorf("failed to create job record: %w", err)
	}

	task := &Task{
		ID:      id,
		Request: req,
		Payload: data,
	}

	if err := o.dispatcher.Dispatch(task); err != nil {
		// The caller never saw this id; remove the orphan record.
		if delErr := o.store.Delete(ctx, id); delErr != nil {
			o.logger.Warn("Failed to delete record after rejected dispatch",
				slog.String("job_id", id),
				slog.String("error", delErr.Error()),
			)
		}
		return "", fmt.Errorf("%w: %w", ErrOverloaded, err)
	}

	o.logger.Info("Job submitted",
		slog.String("job_id", id),
		slog.String("model", req.Model),
		slog.String("output_format", req.OutputFormat),
		slog.Int("payload_bytes", len(data)),
	)

	return id, nil
}

// validate enforces the parameter allow-lists and ranges.
func (o *Orchestrator) validate(req Request) error {
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return &ValidationError{Field: "email", Reason: "a valid email address is required"}
	}

	if !contains(o.limits.AllowedModels, req.Model) {
		return &ValidationError{
			Field:  "model",
			Reason: fmt.Sprintf("unknown model %q, choose from: %s", req.Model, strings.Join(o.limits.AllowedModels, ", ")),
		}
	}

	if !contains(o.limits.AllowedFormats, req.OutputFormat) {
		return &ValidationError{
			Field:  "output_format",
			Reason: fmt.Sprintf("unsupported format %q, choose from: %s", req.OutputFormat, strings.Join(o.limits.AllowedFormats, ", ")),
		}
	}

	if req.Quality < 1 || req.Quality > 100 {
		return &ValidationError{Field: "quality", Reason: "must be between 1 and 100"}
	}

	if req.Scale <= 0 || req.Scale > 2.0 {
		return &ValidationError{Field: "scale", Reason: "must be greater than 0 and at most 2.0"}
	}

	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
