package handler

import (
	"log/slog"

	"github.com/mibrahim/cutout/internal/job"
	"github.com/mibrahim/cutout/internal/storage"
)

// Dependencies holds all dependencies needed by handlers.
type Dependencies struct {
	Logger       *slog.Logger
	Orchestrator *job.Orchestrator
	Store        *job.RecordStore
	// Backends maps variant name to backend. The active variant receives
	// new artifacts; older variants stay resolvable for download.
	Backends map[string]storage.Backend
	// BaseURL is the public address used to build status URLs.
	BaseURL string
	// MaxUploadBytes caps the request body on the submission route.
	MaxUploadBytes int64
}

// TaskHandler handles submission, status, and download requests.
type TaskHandler struct {
	logger         *slog.Logger
	orchestrator   *job.Orchestrator
	store          *job.RecordStore
	backends       map[string]storage.Backend
	baseURL        string
	maxUploadBytes int64
}

// NewTaskHandler creates a TaskHandler instance.
func NewTaskHandler(deps *Dependencies) *TaskHandler {
	return &TaskHandler{
		logger:         deps.Logger,
		orchestrator:   deps.Orchestrator,
		store:          deps.Store,
		backends:       deps.Backends,
		baseURL:        deps.BaseURL,
		maxUploadBytes: deps.MaxUploadBytes,
	}
}
