package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mibrahim/cutout/internal/api/dto"
	"github.com/mibrahim/cutout/internal/job"
	"github.com/mibrahim/cutout/internal/worker"
)

// CreateTask handles POST /process: validates the multipart submission,
// creates the job, and returns 202 with the id and a status URL. All
// failures here happen before any worker runs; no job id is issued on
// rejection.
func (h *TaskHandler) CreateTask(c *gin.Context) {
	// Cap the body before the multipart parser touches it. Extra headroom
	// covers the non-file form fields.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+64*1024)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": fmt.Sprintf("File too large. Maximum size is %d bytes.", h.maxUploadBytes),
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	req, err := parseRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Cheap checks from the multipart header before reading the payload.
	if err := h.orchestrator.CheckUpload(fileHeader.Filename, fileHeader.Size); err != nil {
		h.rejectSubmission(c, err)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("Failed to open upload", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read upload"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("Failed to read upload", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read upload"})
		return
	}

	id, err := h.orchestrator.Submit(c.Request.Context(), req, fileHeader.Filename, data)
	if err != nil {
		h.rejectSubmission(c, err)
		return
	}

	c.JSON(http.StatusAccepted, dto.CreateTaskResponse{
		ProcessingID: id,
		StatusURL:    fmt.Sprintf("%s/status/%s", h.baseURL, id),
		Message:      "Image received and queued for processing.",
	})
}

// GetStatus handles GET /status/:task_id. Absent and expired ids are
// reported identically.
func (h *TaskHandler) GetStatus(c *gin.Context) {
	taskID := c.Param("task_id")

	rec, err := h.store.Get(c.Request.Context(), taskID)
	if err != nil {
		if errors.Is(err, job.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Task not found or expired"})
			return
		}
		h.logger.Error("Failed to read record",
			slog.String("job_id", taskID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read task status"})
		return
	}

	resp := dto.StatusResponse{
		ProcessingID: taskID,
		Status:       string(rec.Status),
		Error:        rec.Error,
		EmailStatus:  rec.EmailStatus,
	}
	if rec.Status == job.StatusCompleted {
		resp.DownloadURL = fmt.Sprintf("%s/download/%s", h.baseURL, taskID)
	}

	c.JSON(http.StatusOK, resp)
}

// Download handles GET /download/:task_id: streams the local artifact or
// redirects to a time-limited presigned URL. 423 while processing, 410
// once failed.
func (h *TaskHandler) Download(c *gin.Context) {
	taskID := c.Param("task_id")

	rec, err := h.store.Get(c.Request.Context(), taskID)
	if err != nil {
		if errors.Is(err, job.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Task not found or expired"})
			return
		}
		h.logger.Error("Failed to read record",
			slog.String("job_id", taskID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read task status"})
		return
	}

	switch rec.Status {
	case job.StatusProcessing:
		c.JSON(http.StatusLocked, gin.H{"error": "Not ready"})
		return
	case job.StatusFailed:
		c.JSON(http.StatusGone, gin.H{"error": "Processing failed, no result available"})
		return
	}

	backend, ok := h.backends[rec.Storage]
	if !ok {
		h.logger.Warn("Record references unconfigured storage variant",
			slog.String("job_id", taskID),
			slog.String("variant", rec.Storage),
		)
		c.JSON(http.StatusNotFound, gin.H{"error": "File missing"})
		return
	}

	link, err := backend.Link(c.Request.Context(), rec.Filename)
	if err != nil {
		h.logger.Warn("Failed to resolve artifact",
			slog.String("job_id", taskID),
			slog.String("filename", rec.Filename),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusNotFound, gin.H{"error": "File missing"})
		return
	}

	if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		c.Redirect(http.StatusTemporaryRedirect, link)
		return
	}

	c.FileAttachment(link, rec.Filename)
}

// rejectSubmission maps orchestrator errors onto HTTP status codes.
func (h *TaskHandler) rejectSubmission(c *gin.Context, err error) {
	var verr *job.ValidationError

	switch {
	case errors.Is(err, job.ErrUploadTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
	case errors.Is(err, job.ErrOverloaded), errors.Is(err, worker.ErrQueueFull):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Server is busy, try again later"})
	default:
		h.logger.Error("Submission failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create task"})
	}
}

// parseRequest reads the form fields with their documented defaults. Range
// and allow-list checks belong to the orchestrator; this only parses.
func parseRequest(c *gin.Context) (job.Request, error) {
	req := job.Request{
		Email:        c.PostForm("email"),
		Model:        c.DefaultPostForm("model", "u2net"),
		OutputFormat: strings.ToLower(c.DefaultPostForm("output_format", "png")),
		Quality:      95,
		Scale:        1.0,
	}

	if raw := c.PostForm("quality"); raw != "" {
		quality, err := strconv.Atoi(raw)
		if err != nil {
			return job.Request{}, fmt.Errorf("invalid quality: %q is not a number", raw)
		}
		req.Quality = quality
	}

	if raw := c.PostForm("scale"); raw != "" {
		scale, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return job.Request{}, fmt.Errorf("invalid scale: %q is not a number", raw)
		}
		req.Scale = scale
	}

	return req, nil
}
