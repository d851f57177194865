package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	l, err := NewLocal(t.TempDir(), discardLogger())
	require.NoError(t, err)
	return l
}

func TestNewLocal(t *testing.T) {
	t.Run("creates missing directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "out")
		_, err := NewLocal(dir, discardLogger())
		require.NoError(t, err)

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("empty directory rejected", func(t *testing.T) {
		_, err := NewLocal("  ", discardLogger())
		assert.Error(t, err)
	})
}

func TestLocal_StoreAndLink(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()

	require.NoError(t, l.Store(ctx, "abc.png", []byte("payload"), "image/png"))

	path, err := l.Link(ctx, "abc.png")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}

func TestLocal_LinkMissing(t *testing.T) {
	l := newTestLocal(t)

	_, err := l.Link(context.Background(), "nope.png")
	assert.Error(t, err)
}

func TestLocal_RejectsTraversal(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()

	cases := []string{
		"../escape.png",
		"..",
		"a/b.png",
		"..\\escape.png",
		"",
		".",
	}
	for _, name := range cases {
		t.Run(name, func(t *testing.T) {
			err := l.Store(ctx, name, []byte("x"), "image/png")
			assert.Error(t, err)
		})
	}
}

func TestLocal_Variant(t *testing.T) {
	l := newTestLocal(t)
	assert.Equal(t, VariantLocal, l.Variant())
}

func TestLocal_Sweep(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()

	require.NoError(t, l.Store(ctx, "old.png", []byte("old"), "image/png"))
	require.NoError(t, l.Store(ctx, "fresh.png", []byte("fresh"), "image/png"))

	// Age one file past the retention window.
	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(l.dir, "old.png"), stale, stale))

	removed, err := l.Sweep(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = l.Link(ctx, "old.png")
	assert.Error(t, err)

	_, err = l.Link(ctx, "fresh.png")
	assert.NoError(t, err)
}

func TestLocal_SweepCanceled(t *testing.T) {
	l := newTestLocal(t)
	require.NoError(t, l.Store(context.Background(), "a.png", []byte("a"), "image/png"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Sweep(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
}
