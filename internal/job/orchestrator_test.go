package job

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	tasks []*Task
	err   error
}

func (d *fakeDispatcher) Dispatch(t *Task) error {
	if d.err != nil {
		return d.err
	}
	d.tasks = append(d.tasks, t)
	return nil
}

func testLimits() Limits {
	return Limits{
		MaxUploadBytes:    5 * 1024 * 1024,
		AllowedModels:     []string{"u2net", "u2netp", "u2net_human_seg"},
		AllowedFormats:    []string{"png", "jpg", "jpeg"},
		AllowedExtensions: []string{"png", "jpg", "jpeg", "webp"},
	}
}

func newTestOrchestrator(t *testing.T, d Dispatcher) (*Orchestrator, *RecordStore) {
	t.Helper()

	store, _ := newTestStore(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewOrchestrator(store, d, testLimits(), time.Hour, logger), store
}

func TestSubmit_CreatesRecordAndDispatches(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	orch, store := newTestOrchestrator(t, dispatcher)
	ctx := context.Background()

	id, err := orch.Submit(ctx, testRequest(), "photo.png", []byte("image-bytes"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	// The record is already visible as processing.
	rec, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, rec.Status)
	assert.Equal(t, "user@example.com", rec.Email)

	// Exactly one task was queued, carrying the payload.
	require.Len(t, dispatcher.tasks, 1)
	assert.Equal(t, id, dispatcher.tasks[0].ID)
	assert.Equal(t, []byte("image-bytes"), dispatcher.tasks[0].Payload)
}

func TestSubmit_UniqueIDs(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	orch, _ := newTestOrchestrator(t, dispatcher)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id, err := orch.Submit(ctx, testRequest(), "photo.png", []byte("x"))
		require.NoError(t, err)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestSubmit_ValidationRejections(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Request)
		fileName string
	}{
		{
			name:     "unknown model",
			mutate:   func(r *Request) { r.Model = "not_a_real_model" },
			fileName: "photo.png",
		},
		{
			name:     "unsupported output format",
			mutate:   func(r *Request) { r.OutputFormat = "tiff" },
			fileName: "photo.png",
		},
		{
			name:     "quality too low",
			mutate:   func(r *Request) { r.Quality = 0 },
			fileName: "photo.png",
		},
		{
			name:     "quality too high",
			mutate:   func(r *Request) { r.Quality = 101 },
			fileName: "photo.png",
		},
		{
			name:     "scale zero",
			mutate:   func(r *Request) { r.Scale = 0 },
			fileName: "photo.png",
		},
		{
			name:     "scale too large",
			mutate:   func(r *Request) { r.Scale = 2.5 },
			fileName: "photo.png",
		},
		{
			name:     "missing email",
			mutate:   func(r *Request) { r.Email = "" },
			fileName: "photo.png",
		},
		{
			name:     "disallowed extension",
			mutate:   func(r *Request) {},
			fileName: "document.pdf",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dispatcher := &fakeDispatcher{}
			orch, _ := newTestOrchestrator(t, dispatcher)

			req := testRequest()
			tt.mutate(&req)

			id, err := orch.Submit(context.Background(), req, tt.fileName, []byte("x"))

			require.Error(t, err)
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)

			// No id issued, no work dispatched.
			assert.Empty(t, id)
			assert.Empty(t, dispatcher.tasks)
		})
	}
}

func TestSubmit_BoundaryValuesAccepted(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	orch, _ := newTestOrchestrator(t, dispatcher)
	ctx := context.Background()

	req := testRequest()
	req.Quality = 1
	req.Scale = 2.0
	_, err := orch.Submit(ctx, req, "photo.webp", []byte("x"))
	require.NoError(t, err)

	req.Quality = 100
	req.Scale = 0.1
	_, err = orch.Submit(ctx, req, "photo.JPEG", []byte("x"))
	require.NoError(t, err)
}

func TestCheckUpload_TooLarge(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &fakeDispatcher{})

	err := orch.CheckUpload("photo.png", 6*1024*1024)
	assert.ErrorIs(t, err, ErrUploadTooLarge)

	assert.NoError(t, orch.CheckUpload("photo.png", 5*1024*1024))
}

func TestSubmit_DispatchFailureLeavesNoRecord(t *testing.T) {
	dispatcher := &fakeDispatcher{err: errors.New("worker queue is full")}
	orch, store := newTestOrchestrator(t, dispatcher)
	ctx := context.Background()

	id, err := orch.Submit(ctx, testRequest(), "photo.png", []byte("x"))

	require.ErrorIs(t, err, ErrOverloaded)
	assert.Empty(t, id)

	// The provisional record was rolled back.
	entries, scanErr := store.Scan(ctx)
	require.NoError(t, scanErr)
	assert.Empty(t, entries)
}
