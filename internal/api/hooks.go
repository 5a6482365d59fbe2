package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/samvad-hq/samvad-story-service/internal/logger"
	"github.com/samvad-hq/samvad-story-service/internal/metrics"
)

// RequestInfo describes a request as seen by hooks.
type RequestInfo struct {
	ID       string
	Method   string
	Route    string
	Path     string
	TenantID string
	RemoteIP string
}

// Timing is the outcome of a completed request.
type Timing struct {
	Start    time.Time
	Duration time.Duration
	Status   int
}

// Hook observes the lifecycle of every request.
type Hook interface {
	BeforeStart(info RequestInfo)
	AfterComplete(info RequestInfo, timing Timing, err error)
}

// hooksMiddleware runs BeforeStart in order and AfterComplete in reverse
// order around the handler.
func hooksMiddleware(hooks ...Hook) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			info := requestInfo(c)
			for _, h := range hooks {
				h.BeforeStart(info)
			}

			start := time.Now()
			err := next(c)
			timing := Timing{Start: start, Duration: time.Since(start), Status: responseStatus(c, err)}

			info.TenantID = c.Param("tenantID")
			for i := len(hooks) - 1; i >= 0; i-- {
				hooks[i].AfterComplete(info, timing, err)
			}
			return err
		}
	}
}

func requestInfo(c echo.Context) RequestInfo {
	req := c.Request()
	return RequestInfo{
		ID:       RequestID(c),
		Method:   req.Method,
		Route:    c.Path(),
		Path:     req.URL.Path,
		TenantID: c.Param("tenantID"),
		RemoteIP: c.RealIP(),
	}
}

// responseStatus resolves the status before the error handler has written it.
func responseStatus(c echo.Context, err error) int {
	if err == nil {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}

// LoggingHook logs request completion. Failures are logged at error level.
type LoggingHook struct {
	Log logger.Logger
}

func (h LoggingHook) BeforeStart(info RequestInfo) {
	logger.Ensure(h.Log).DebugObj("request started", "request", map[string]any{
		"request_id": info.ID,
		"method":     info.Method,
		"route":      info.Route,
		"tenant_id":  info.TenantID,
	})
}

func (h LoggingHook) AfterComplete(info RequestInfo, timing Timing, err error) {
	fields := map[string]any{
		"request_id":       info.ID,
		"method":           info.Method,
		"route":            info.Route,
		"path":             info.Path,
		"tenant_id":        info.TenantID,
		"status":           timing.Status,
		"response_time_ms": timing.Duration.Milliseconds(),
	}
	log := logger.Ensure(h.Log)
	if err != nil && timing.Status >= http.StatusInternalServerError {
		fields["error"] = err.Error()
		log.ErrorObj("request failed", "request", fields)
		return
	}
	log.DebugObj("request completed", "request", fields)
}

// MetricsHook records request duration.
type MetricsHook struct{}

func (MetricsHook) BeforeStart(RequestInfo) {}

func (MetricsHook) AfterComplete(info RequestInfo, timing Timing, _ error) {
	route := info.Route
	if route == "" {
		route = "unmatched"
	}
	metrics.HTTPDuration.
		WithLabelValues(route, info.Method, strconv.Itoa(timing.Status)).
		Observe(timing.Duration.Seconds())
}
