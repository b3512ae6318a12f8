// Package api exposes the dashboard and segment management over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rohankatakam/devpulse/internal/cache"
	"github.com/rohankatakam/devpulse/internal/dashboard"
	"github.com/rohankatakam/devpulse/internal/errors"
	"github.com/rohankatakam/devpulse/internal/models"
)

// Service is the dashboard surface the handlers need
type Service interface {
	dashboard.Metrics
	Overview(ctx context.Context, scope models.RepoScope) (*models.Overview, error)
	ScopeForSegment(ctx context.Context, id uuid.UUID) (models.RepoScope, error)
	CacheStats() cache.Stats

	CreateSegment(ctx context.Context, in dashboard.SegmentInput) (*models.Segment, error)
	GetSegment(ctx context.Context, id uuid.UUID) (*models.Segment, error)
	ListSegments(ctx context.Context) ([]*models.Segment, error)
	DeleteSegment(ctx context.Context, id uuid.UUID) error
	AddSegmentRepos(ctx context.Context, id uuid.UUID, repoIDs []int64) (*models.Segment, error)
	RemoveSegmentRepo(ctx context.Context, id uuid.UUID, repoID int64) error
	ListRepositories(ctx context.Context) ([]models.Repository, error)
}

// Warmer starts a background cache warm, refusing while one is in flight
type Warmer interface {
	TriggerWarm() error
}

// Handlers holds the HTTP handlers
type Handlers struct {
	svc    Service
	warmer Warmer
	logger *slog.Logger
}

func NewHandlers(svc Service, warmer Warmer, logger *slog.Logger) *Handlers {
	return &Handlers{svc: svc, warmer: warmer, logger: logger}
}

func (h *Handlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "cache": h.svc.CacheStats()})
}

// chart adapts a scoped dashboard read into a handler
func chart[T any](h *Handlers, fetch func(context.Context, models.RepoScope) (T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		scope, err := h.scope(c)
		if err != nil {
			h.fail(c, err)
			return
		}
		out, err := fetch(c.Request.Context(), scope)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// scope reads repo_ids=1,2,3 or segment=<uuid>. Neither means every repository;
// a present but empty repo_ids matches none.
func (h *Handlers) scope(c *gin.Context) (models.RepoScope, error) {
	raw, hasIDs := c.GetQuery("repo_ids")
	segment, hasSegment := c.GetQuery("segment")

	switch {
	case hasIDs && hasSegment:
		return models.RepoScope{}, errors.ValidationError("repo_ids and segment are mutually exclusive")
	case hasSegment:
		id, err := uuid.Parse(segment)
		if err != nil {
			return models.RepoScope{}, errors.ValidationErrorf("invalid segment id %q", segment)
		}
		return h.svc.ScopeForSegment(c.Request.Context(), id)
	case hasIDs:
		ids, err := parseRepoIDs(raw)
		if err != nil {
			return models.RepoScope{}, err
		}
		return models.Repos(ids...), nil
	default:
		return models.AllRepos(), nil
	}
}

func parseRepoIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, errors.ValidationErrorf("invalid repository id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func segmentID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, errors.ValidationErrorf("invalid segment id %q", c.Param("id"))
	}
	return id, nil
}

func (h *Handlers) ListSegments(c *gin.Context) {
	segs, err := h.svc.ListSegments(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, segs)
}

func (h *Handlers) CreateSegment(c *gin.Context) {
	var in dashboard.SegmentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.fail(c, errors.ValidationErrorf("invalid request body: %v", err))
		return
	}
	seg, err := h.svc.CreateSegment(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, seg)
}

func (h *Handlers) GetSegment(c *gin.Context) {
	id, err := segmentID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	seg, err := h.svc.GetSegment(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, seg)
}

func (h *Handlers) DeleteSegment(c *gin.Context) {
	id, err := segmentID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.svc.DeleteSegment(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) AddSegmentRepos(c *gin.Context) {
	id, err := segmentID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	var body struct {
		RepoIDs []int64 `json:"repo_ids"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		h.fail(c, errors.ValidationErrorf("invalid request body: %v", err))
		return
	}
	seg, err := h.svc.AddSegmentRepos(c.Request.Context(), id, body.RepoIDs)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, seg)
}

func (h *Handlers) RemoveSegmentRepo(c *gin.Context) {
	id, err := segmentID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	repoID, err := strconv.ParseInt(c.Param("repoID"), 10, 64)
	if err != nil || repoID <= 0 {
		h.fail(c, errors.ValidationErrorf("invalid repository id %q", c.Param("repoID")))
		return
	}
	if err := h.svc.RemoveSegmentRepo(c.Request.Context(), id, repoID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) ListRepositories(c *gin.Context) {
	repos, err := h.svc.ListRepositories(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, repos)
}

// Warm starts a cache warm-up; 409 while one is already running
func (h *Handlers) Warm(c *gin.Context) {
	if err := h.warmer.TriggerWarm(); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

// fail writes err with the status its type maps to. Only the coarse message
// reaches the client; the cause is logged.
func (h *Handlers) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"
	detail := err.Error()

	var typed *errors.Error
	if errors.As(err, &typed) {
		msg = typed.Message
		detail = typed.DetailedString()
		switch typed.Type {
		case errors.ErrorTypeValidation:
			status = http.StatusBadRequest
		case errors.ErrorTypeNotFound:
			status = http.StatusNotFound
		case errors.ErrorTypeConflict:
			status = http.StatusConflict
		}
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			"path", c.FullPath(),
			"request_id", c.GetString(requestIDKey),
			"error", msg,
			"detail", detail)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
