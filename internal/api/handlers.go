package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/samvad-hq/samvad-story-service/internal/domain"
	"github.com/samvad-hq/samvad-story-service/internal/storage"
	"github.com/samvad-hq/samvad-story-service/internal/stories"
)

const tenantKey = "tenant"

// StoryService is the lifecycle surface served over HTTP.
type StoryService interface {
	Find(ctx context.Context, tenant *domain.Tenant, in storage.FindStoryInput) (*domain.Story, error)
	FindOrCreate(ctx context.Context, tenant *domain.Tenant, in storage.FindOrCreateStoryInput) (*domain.Story, error)
	Create(ctx context.Context, tenant *domain.Tenant, storyID, storyURL string, in stories.CreateInput) (*domain.Story, error)
	Update(ctx context.Context, tenant *domain.Tenant, storyID string, in storage.UpdateStoryInput) (*domain.Story, error)
	UpdateSettings(ctx context.Context, tenant *domain.Tenant, storyID string, in storage.UpdateStorySettingsInput) (*domain.Story, error)
	Open(ctx context.Context, tenant *domain.Tenant, storyID string) (*domain.Story, error)
	Close(ctx context.Context, tenant *domain.Tenant, storyID string) (*domain.Story, error)
	Remove(ctx context.Context, tenant *domain.Tenant, storyID string, includeComments bool) (*domain.Story, error)
	Merge(ctx context.Context, tenant *domain.Tenant, destinationID string, sourceIDs []string) (*domain.Story, error)
	RecordComment(ctx context.Context, tenant *domain.Tenant, storyID string, in stories.CommentInput) (*domain.Story, error)
	RecordCommentAction(ctx context.Context, tenant *domain.Tenant, storyID, commentID string, in stories.ActionInput) (*domain.Story, error)
	AdjustCounts(ctx context.Context, tenant *domain.Tenant, storyID string, delta stories.CountsDelta) (*domain.Story, error)
}

// TenantResolver looks tenants up by id.
type TenantResolver interface {
	Get(id string) (*domain.Tenant, error)
}

// StoryView is a story as returned by the API.
type StoryView struct {
	*domain.Story
	IsClosed      bool   `json:"is_closed"`
	ClosedMessage string `json:"closed_message,omitempty"`
}

// StoryResponse wraps every story result; Story is null when nothing matched.
type StoryResponse struct {
	Story *StoryView `json:"story"`
}

type findOrCreateRequest struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type createRequest struct {
	ID       string                `json:"id"`
	URL      string                `json:"url"`
	Metadata *domain.StoryMetadata `json:"metadata"`
	ClosedAt *time.Time            `json:"closed_at"`
}

type updateRequest struct {
	URL      string                `json:"url"`
	Metadata *domain.StoryMetadata `json:"metadata"`
}

type mergeRequest struct {
	SourceIDs []string `json:"source_ids"`
}

type commentRequest struct {
	ID     string               `json:"id"`
	Status domain.CommentStatus `json:"status"`
}

type actionRequest struct {
	ID         string           `json:"id"`
	ActionType domain.ActionTag `json:"action_type"`
}

type countsRequest struct {
	Status domain.StatusCounts `json:"status"`
	Action domain.ActionCounts `json:"action"`
}

type storyHandler struct {
	svc StoryService
	now func() time.Time
}

// tenantMiddleware resolves :tenantID for the story routes.
func tenantMiddleware(tenants TenantResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tenant, err := tenants.Get(c.Param("tenantID"))
			if err != nil {
				return mapDomainError(err)
			}
			c.Set(tenantKey, tenant)
			return next(c)
		}
	}
}

func tenantOf(c echo.Context) *domain.Tenant {
	t, _ := c.Get(tenantKey).(*domain.Tenant)
	return t
}

func (h *storyHandler) respond(c echo.Context, story *domain.Story, err error) error {
	if err != nil {
		return mapDomainError(err)
	}
	if story == nil {
		return c.JSON(http.StatusOK, StoryResponse{})
	}

	tenant := tenantOf(c)
	view := &StoryView{Story: story, IsClosed: domain.IsClosed(story, tenant, h.now().UTC())}
	if view.IsClosed && tenant != nil {
		view.ClosedMessage = tenant.CloseCommenting.Message
	}
	return c.JSON(http.StatusOK, StoryResponse{Story: view})
}

func (h *storyHandler) find(c echo.Context) error {
	in := storage.FindStoryInput{
		ID:  strings.TrimSpace(c.QueryParam("id")),
		URL: strings.TrimSpace(c.QueryParam("url")),
	}
	if in.ID == "" && in.URL == "" {
		return newError(http.StatusBadRequest, "BAD_REQUEST", "id or url is required")
	}
	story, err := h.svc.Find(c.Request().Context(), tenantOf(c), in)
	return h.respond(c, story, err)
}

func (h *storyHandler) findOrCreate(c echo.Context) error {
	var req findOrCreateRequest
	if err := c.Bind(&req); err != nil {
		return newError(http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
	}
	story, err := h.svc.FindOrCreate(c.Request().Context(), tenantOf(c), storage.FindOrCreateStoryInput{
		ID:  strings.TrimSpace(req.ID),
		URL: strings.TrimSpace(req.URL),
	})
	return h.respond(c, story, err)
}

func (h *storyHandler) create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return newError(http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
	}
	story, err := h.svc.Create(c.Request().Context(), tenantOf(c), strings.TrimSpace(req.ID), strings.TrimSpace(req.URL),
		stories.CreateInput{Metadata: req.Metadata, ClosedAt: req.ClosedAt})
	return h.respond(c, story, err)
}

func (h *storyHandler) update(c echo.Context) error {
	var req updateRequest
	if err := c.Bind(&req); err != nil {
		return newError(http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
	}
	story, err := h.svc.Update(c.Request().Context(), tenantOf(c), c.Param("storyID"), storage.UpdateStoryInput{
		URL:      strings.TrimSpace(req.URL),
		Metadata: req.Metadata,
	})
	return h.respond(c, story, err)
}

func (h *storyHandler) updateSettings(c echo.Context) error {
	var req storage.UpdateStorySettingsInput
	if err := c.Bind(&req); err != nil {
		return newError(http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
	}
	if req.Moderation != nil && *req.Moderation != domain.ModerationPre && *req.Moderation != domain.ModerationPost {
		return newError(http.StatusBadRequest, "BAD_REQUEST", "moderation must be PRE or POST")
	}
	story, err := h.svc.UpdateSettings(c.Request().Context(), tenantOf(c), c.Param("storyID"), req)
	return h.respond(c, story, err)
}

func (h *storyHandler) open(c echo.Context) error {
	story, err := h.svc.Open(c.Request().Context(), tenantOf(c), c.Param("storyID"))
	return h.respond(c, story, err)
}

func (h *storyHandler) close(c echo.Context) error {
	story, err := h.svc.Close(c.Request().Context(), tenantOf(c), c.Param("storyID"))
	return h.respond(c, story, err)
}

func (h *storyHandler) remove(c echo.Context) error {
	includeComments := false
	if raw := c.QueryParam("includeComments"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return newError(http.StatusBadRequest, "BAD_REQUEST", "includeComments must be a boolean")
		}
		includeComments = v
	}
	story, err := h.svc.Remove(c.Request().Context(), tenantOf(c), c.Param("storyID"), includeComments)
	return h.respond(c, story, err)
}

func (h *storyHandler) merge(c echo.Context) error {
	var req mergeRequest
	if err := c.Bind(&req); err != nil {
		return newError(http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
	}
	story, err := h.svc.Merge(c.Request().Context(), tenantOf(c), c.Param("storyID"), req.SourceIDs)
	return h.respond(c, story, err)
}

func (h *storyHandler) recordComment(c echo.Context) error {
	var req commentRequest
	if err := c.Bind(&req); err != nil {
		return newError(http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		return newError(http.StatusBadRequest, "BAD_REQUEST", "id is required")
	}
	story, err := h.svc.RecordComment(c.Request().Context(), tenantOf(c), c.Param("storyID"),
		stories.CommentInput{ID: req.ID, Status: req.Status})
	return h.respond(c, story, err)
}

func (h *storyHandler) recordAction(c echo.Context) error {
	var req actionRequest
	if err := c.Bind(&req); err != nil {
		return newError(http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" || req.ActionType == "" {
		return newError(http.StatusBadRequest, "BAD_REQUEST", "id and action_type are required")
	}
	story, err := h.svc.RecordCommentAction(c.Request().Context(), tenantOf(c), c.Param("storyID"), c.Param("commentID"),
		stories.ActionInput{ID: req.ID, ActionType: req.ActionType})
	return h.respond(c, story, err)
}

func (h *storyHandler) adjustCounts(c echo.Context) error {
	var req countsRequest
	if err := c.Bind(&req); err != nil {
		return newError(http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
	}
	if len(req.Status) == 0 && len(req.Action) == 0 {
		return newError(http.StatusBadRequest, "BAD_REQUEST", "status or action counts are required")
	}
	story, err := h.svc.AdjustCounts(c.Request().Context(), tenantOf(c), c.Param("storyID"),
		stories.CountsDelta{Status: req.Status, Action: req.Action})
	return h.respond(c, story, err)
}
