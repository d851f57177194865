package job

// Status is the lifecycle state of a processing job.
// Transitions are forward-only: processing -> completed | failed.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Email notification outcomes, stamped after the notifier has run.
const (
	EmailStatusSent   = "sent"
	EmailStatusFailed = "failed"
)

// Request carries the validated submission parameters for one job.
type Request struct {
	Email        string
	Model        string
	OutputFormat string
	Quality      int
	Scale        float64
}

// Record is the TTL-bound state snapshot for a job, stored as a JSON blob.
// Writes are whole-record replacements; callers read-modify-write to
// preserve existing fields.
type Record struct {
	Status       Status  `json:"status"`
	Email        string  `json:"email"`
	Model        string  `json:"model"`
	OutputFormat string  `json:"output_format"`
	Quality      int     `json:"quality"`
	Scale        float64 `json:"scale"`

	// Filename and Storage are set together on the completed transition.
	// Storage names the backend variant that produced the artifact, so a
	// record stays resolvable if the configured variant changes later.
	Filename string `json:"filename,omitempty"`
	Storage  string `json:"storage,omitempty"`

	// Error holds a generic failure category, never an internal message.
	Error string `json:"error,omitempty"`

	EmailStatus string `json:"email_status,omitempty"`
}

// NewRecord builds the initial processing record for a submission.
func NewRecord(req Request) *Record {
	return &Record{
		Status:       StatusProcessing,
		Email:        req.Email,
		Model:        req.Model,
		OutputFormat: req.OutputFormat,
		Quality:      req.Quality,
		Scale:        req.Scale,
	}
}

// Terminal reports whether the record has reached a final state.
func (r *Record) Terminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

// Task is one unit of background work handed to the worker pool.
type Task struct {
	ID      string
	Request Request
	Payload []byte
}
