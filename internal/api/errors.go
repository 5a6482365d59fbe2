package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/samvad-hq/samvad-story-service/internal/domain"
	"github.com/samvad-hq/samvad-story-service/internal/storage"
)

// errorResponse is the JSON body of every error.
type errorResponse struct {
	Error          string   `json:"error"`
	Message        string   `json:"message"`
	StoryURL       string   `json:"storyURL,omitempty"`
	AllowedDomains []string `json:"allowedDomains,omitempty"`
}

func newError(code int, kind, message string) *echo.HTTPError {
	return echo.NewHTTPError(code, errorResponse{Error: kind, Message: message})
}

// mapDomainError converts a service error into an echo.HTTPError.
func mapDomainError(err error) *echo.HTTPError {
	var invalid *domain.StoryURLInvalidError
	switch {
	case errors.As(err, &invalid):
		return echo.NewHTTPError(http.StatusBadRequest, errorResponse{
			Error:          "STORY_URL_NOT_PERMITTED",
			Message:        invalid.Error(),
			StoryURL:       invalid.StoryURL,
			AllowedDomains: invalid.AllowedDomains,
		}).SetInternal(err)

	case errors.Is(err, domain.ErrStoryHasLinkedComments):
		return newError(http.StatusConflict, "STORY_HAS_LINKED_COMMENTS", domain.ErrStoryHasLinkedComments.Error()).SetInternal(err)

	case errors.Is(err, domain.ErrDuplicateStoryID):
		return newError(http.StatusConflict, "DUPLICATE_STORY_ID", domain.ErrDuplicateStoryID.Error()).SetInternal(err)

	case errors.Is(err, domain.ErrDuplicateStoryURL):
		return newError(http.StatusConflict, "DUPLICATE_STORY_URL", domain.ErrDuplicateStoryURL.Error()).SetInternal(err)

	case errors.Is(err, domain.ErrDuplicateComment):
		return newError(http.StatusConflict, "DUPLICATE_COMMENT_ID", domain.ErrDuplicateComment.Error()).SetInternal(err)

	case errors.Is(err, domain.ErrDuplicateCommentAction):
		return newError(http.StatusConflict, "DUPLICATE_COMMENT_ACTION_ID", domain.ErrDuplicateCommentAction.Error()).SetInternal(err)

	case errors.Is(err, storage.ErrStoryNotFound):
		return newError(http.StatusNotFound, "STORY_NOT_FOUND", storage.ErrStoryNotFound.Error()).SetInternal(err)

	case errors.Is(err, domain.ErrCommentNotFound):
		return newError(http.StatusNotFound, "COMMENT_NOT_FOUND", domain.ErrCommentNotFound.Error()).SetInternal(err)

	case errors.Is(err, domain.ErrTenantNotFound):
		return newError(http.StatusNotFound, "TENANT_NOT_FOUND", domain.ErrTenantNotFound.Error()).SetInternal(err)

	default:
		return newError(http.StatusInternalServerError, "INTERNAL_ERROR", "internal error").SetInternal(err)
	}
}
