package api

import (
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	// HeaderClientMutationID carries a caller supplied correlation id.
	HeaderClientMutationID = "X-Client-Mutation-Id"
	// HeaderRequestID is set on every response.
	HeaderRequestID = echo.HeaderXRequestID

	requestIDKey  = "request_id"
	maxRequestIDs = 128
)

// requestIDMiddleware assigns each request a correlation id: the client
// mutation id when one is sent, otherwise a fresh UUID.
func requestIDMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := strings.TrimSpace(c.Request().Header.Get(HeaderClientMutationID))
			if id != "" {
				if len(id) > maxRequestIDs {
					id = id[:maxRequestIDs]
				}
				c.Response().Header().Set(HeaderClientMutationID, id)
			} else {
				id = uuid.NewString()
			}

			c.Set(requestIDKey, id)
			c.Response().Header().Set(HeaderRequestID, id)
			return next(c)
		}
	}
}

// RequestID returns the correlation id of the request.
func RequestID(c echo.Context) string {
	if id, ok := c.Get(requestIDKey).(string); ok {
		return id
	}
	return ""
}
