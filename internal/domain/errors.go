package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStoryHasLinkedComments is returned when removing a story that still
	// has comments without consent to delete them.
	ErrStoryHasLinkedComments = errors.New("story has linked comments, cannot remove")
	// ErrDuplicateStoryID is returned when creating a story whose id is taken.
	ErrDuplicateStoryID = errors.New("story id already exists")
	// ErrDuplicateStoryURL is returned when creating a story whose url is taken.
	ErrDuplicateStoryURL = errors.New("story url already exists")
	// ErrTenantNotFound is returned when a tenant id is not configured.
	ErrTenantNotFound = errors.New("tenant not found")
	// ErrCommentNotFound is returned when an action names an unknown comment.
	ErrCommentNotFound = errors.New("comment not found")
	// ErrDuplicateComment is returned when a comment id is recorded twice.
	ErrDuplicateComment = errors.New("comment id already exists")
	// ErrDuplicateCommentAction is returned when an action id is recorded twice.
	ErrDuplicateCommentAction = errors.New("comment action id already exists")
)

// StoryURLInvalidError reports a story url that is not on the tenant allow-list.
type StoryURLInvalidError struct {
	StoryURL       string
	AllowedDomains []string
}

func (e *StoryURLInvalidError) Error() string {
	return fmt.Sprintf("story url %q is not permitted (allowed domains: %s)",
		e.StoryURL, strings.Join(e.AllowedDomains, ", "))
}

// NewStoryURLInvalidError builds the error for url against tenant.
func NewStoryURLInvalidError(tenant *Tenant, url string) *StoryURLInvalidError {
	var allowed []string
	if tenant != nil {
		allowed = append(allowed, tenant.AllowedDomains...)
	}
	return &StoryURLInvalidError{StoryURL: url, AllowedDomains: allowed}
}
