package removal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"
)

// Engine runs an image through a background-removal model. The model is a
// black box: PNG bytes in, PNG bytes with transparent background out.
type Engine interface {
	Remove(ctx context.Context, data []byte, model string) ([]byte, error)
}

// ErrEngineUnavailable indicates the inference endpoint could not serve the
// request.
var ErrEngineUnavailable = errors.New("removal engine unavailable")

// HTTPEngineConfig configures the HTTP inference client.
type HTTPEngineConfig struct {
	Endpoint string
	Timeout  time.Duration
}

// HTTPEngine calls a rembg-compatible inference server over HTTP. One
// engine (and its underlying connection pool) is shared by all workers for
// the life of the process.
type HTTPEngine struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewHTTPEngine creates an HTTPEngine. The timeout bounds a single model
// invocation, which can run for seconds on large inputs.
func NewHTTPEngine(cfg *HTTPEngineConfig, logger *slog.Logger) *HTTPEngine {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &HTTPEngine{
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Remove implements Engine. The image is posted as a multipart upload with
// the model name as a query parameter, matching the rembg server API.
func (e *HTTPEngine) Remove(ctx context.Context, data []byte, model string) ([]byte, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "input.png")
	if err != nil {
		return nil, fmt.Errorf("removal: build request: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("removal: build request: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("removal: build request: %w", err)
	}

	url := fmt.Sprintf("%s?model=%s", e.endpoint, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("removal: build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrEngineUnavailable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain a short error body for the log, never for the caller.
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		e.logger.Error("Removal engine returned error",
			slog.Int("status", resp.StatusCode),
			slog.String("model", model),
			slog.String("body", string(msg)),
		)
		return nil, fmt.Errorf("removal: engine returned status %d", resp.StatusCode)
	}

	result, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("removal: read response: %w", err)
	}

	e.logger.Debug("Background removed",
		slog.String("model", model),
		slog.Int("input_bytes", len(data)),
		slog.Int("output_bytes", len(result)),
		slog.Duration("latency", time.Since(start)),
	)

	return result, nil
}

// Close releases idle connections held by the shared HTTP client.
func (e *HTTPEngine) Close() {
	e.client.CloseIdleConnections()
}
