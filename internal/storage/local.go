package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Local writes artifacts to a directory on the local filesystem. Artifact
// lifetime is tracked by file mtime and reclaimed by Sweep.
type Local struct {
	dir    string
	logger *slog.Logger
}

// NewLocal creates a Local backend rooted at dir, creating it if needed.
func NewLocal(dir string, logger *slog.Logger) (*Local, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("storage: output directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure output directory: %w", err)
	}
	return &Local{dir: dir, logger: logger}, nil
}

// Variant implements Backend.
func (l *Local) Variant() string {
	return VariantLocal
}

// Store implements Backend. The filename is sanitized so a crafted key
// cannot escape the output directory.
func (l *Local) Store(ctx context.Context, filename string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := l.resolve(filename)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("storage: write file: %w", err)
	}

	l.logger.Debug("Artifact written",
		slog.String("path", path),
		slog.Int("bytes", len(data)),
	)

	return nil
}

// Link implements Backend and returns the artifact's absolute path. The
// caller is responsible for serving the bytes.
func (l *Local) Link(ctx context.Context, filename string) (string, error) {
	path, err := l.resolve(filename)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("storage: artifact missing: %w", err)
	}
	return path, nil
}

// Sweep implements Backend: deletes files whose modification time is older
// than the retention window. Files that vanish mid-sweep are skipped.
func (l *Local) Sweep(ctx context.Context, olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return 0, fmt.Errorf("storage: read output directory: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			path := filepath.Join(l.dir, entry.Name())
			if err := os.Remove(path); err != nil {
				if !os.IsNotExist(err) {
					l.logger.Warn("Failed to remove expired artifact",
						slog.String("path", path),
						slog.String("error", err.Error()),
					)
				}
				continue
			}
			removed++
		}
	}

	return removed, nil
}

// resolve joins the filename onto the root dir, rejecting traversal.
func (l *Local) resolve(filename string) (string, error) {
	cleaned := filepath.Clean(strings.ReplaceAll(filename, "\\", "/"))
	if cleaned == "." || cleaned == "" || strings.Contains(cleaned, "/") || strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("storage: invalid filename %q", filename)
	}
	return filepath.Join(l.dir, cleaned), nil
}
