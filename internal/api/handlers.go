// Package api contains the HTTP handlers of the program enrollment gateway
package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/oapi-codegen/runtime"

	"program-enrollment/backend/internal/openmrs"
	"program-enrollment/backend/internal/services"
)

// Handler contains HTTP handlers for the program enrollment REST API
type Handler struct {
	programs services.ProgramManager
}

// NewHandler creates a new Handler with required dependencies
func NewHandler(programs services.ProgramManager) *Handler {
	return &Handler{programs: programs}
}

// RegisterHandlers mounts the program enrollment routes on g.
func RegisterHandlers(g *echo.Group, h *Handler) {
	g.GET("/programs", h.ListPrograms)
	g.GET("/program-attribute-types", h.ListProgramAttributeTypes)
	g.GET("/patients/:patient/programs", h.ListPatientPrograms)
	g.POST("/enrollments", h.EnrollPatient)
	g.POST("/enrollments/:uuid/states", h.TransitionState)
	g.POST("/enrollments/:uuid/end", h.EndEnrollment)
	g.DELETE("/enrollments/:uuid/states/:state", h.DeleteState)
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
}

// HandleHealth returns basic health status (always returns 200 OK)
func (h *Handler) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Service:   "program-enrollment",
		Version:   "1.0.0",
	})
}

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

// ErrorHandler writes errors as RFC 7807 Problem Details.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := http.StatusInternalServerError
	detail := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		detail = fmt.Sprint(he.Message)
	}
	problem := ProblemDetails{
		Type:     "about:blank",
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
	if err := c.JSON(status, problem); err != nil {
		c.Logger().Error(err)
	}
}

// backendError maps a service error onto the gateway response. Backend
// client errors keep their status; anything else is a bad gateway.
func backendError(err error) error {
	var httpErr *openmrs.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode < http.StatusInternalServerError {
		return echo.NewHTTPError(httpErr.StatusCode, string(httpErr.Body))
	}
	return echo.NewHTTPError(http.StatusBadGateway, err.Error())
}

// pathParam binds a required simple-style path parameter.
func pathParam(c echo.Context, name string) (string, error) {
	var value string
	err := runtime.BindStyledParameterWithOptions("simple", name, c.Param(name), &value,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter %s: %s", name, err))
	}
	return value, nil
}

// writeRaw relays a backend write response to the caller.
func writeRaw(c echo.Context, resp *openmrs.Response) error {
	if len(resp.Body) == 0 {
		return c.NoContent(resp.StatusCode)
	}
	return c.JSONBlob(resp.StatusCode, resp.Body)
}
