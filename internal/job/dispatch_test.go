package job_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mibrahim/cutout/internal/job"
	"github.com/mibrahim/cutout/internal/worker"
)

type saturatedDispatcher struct{}

func (saturatedDispatcher) Dispatch(*job.Task) error { return worker.ErrQueueFull }

// A rejected dispatch must surface both the overload category and the
// underlying queue-full cause, so handlers can match either.
func TestSubmit_QueueFullKeepsErrorChain(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := job.NewRecordStore(client, logger)

	orch := job.NewOrchestrator(store, saturatedDispatcher{}, job.Limits{
		MaxUploadBytes:    1 << 20,
		AllowedModels:     []string{"u2net"},
		AllowedFormats:    []string{"png"},
		AllowedExtensions: []string{"png"},
	}, time.Hour, logger)

	_, err := orch.Submit(context.Background(), job.Request{
		Email:        "user@example.com",
		Model:        "u2net",
		OutputFormat: "png",
		Quality:      95,
		Scale:        1.0,
	}, "photo.png", []byte("payload"))

	require.Error(t, err)
	assert.ErrorIs(t, err, job.ErrOverloaded)
	assert.ErrorIs(t, err, worker.ErrQueueFull)
}
