package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"program-enrollment/backend/internal/services"
)

// EnrollRequest is the body of POST /api/v1/enrollments.
type EnrollRequest struct {
	Patient      string         `json:"patient"`
	Program      string         `json:"program"`
	DateEnrolled time.Time      `json:"dateEnrolled"`
	State        string         `json:"state,omitempty"`
	Attributes   map[string]any `json:"attributes,omitempty"`
}

// TransitionRequest is the body of POST /api/v1/enrollments/{uuid}/states.
type TransitionRequest struct {
	State              string    `json:"state"`
	OnDate             time.Time `json:"onDate"`
	CurrentStateRecord string    `json:"currentStateRecord,omitempty"`
}

// EndRequest is the body of POST /api/v1/enrollments/{uuid}/end.
type EndRequest struct {
	DateCompleted time.Time `json:"dateCompleted"`
	Outcome       string    `json:"outcome,omitempty"`
}

// ListPrograms returns all active program definitions
// (GET /api/v1/programs)
func (h *Handler) ListPrograms(c echo.Context) error {
	programs, err := h.programs.GetAllPrograms(c.Request().Context())
	if err != nil {
		return backendError(err)
	}
	return c.JSON(http.StatusOK, programs)
}

// ListProgramAttributeTypes returns the enrollment attribute descriptors
// (GET /api/v1/program-attribute-types)
func (h *Handler) ListProgramAttributeTypes(c echo.Context) error {
	types, err := h.programs.GetProgramAttributeTypes(c.Request().Context())
	if err != nil {
		return backendError(err)
	}
	return c.JSON(http.StatusOK, types)
}

// ListPatientPrograms returns a patient's enrollments grouped into active
// and ended programs
// (GET /api/v1/patients/{patient}/programs)
func (h *Handler) ListPatientPrograms(c echo.Context) error {
	patientID, err := pathParam(c, "patient")
	if err != nil {
		return err
	}
	grouped, err := h.programs.GetPatientPrograms(c.Request().Context(), patientID)
	if err != nil {
		return backendError(err)
	}
	return c.JSON(http.StatusOK, grouped)
}

// EnrollPatient enrolls a patient into a program
// (POST /api/v1/enrollments)
func (h *Handler) EnrollPatient(c echo.Context) error {
	ctx := c.Request().Context()

	var req EnrollRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	if req.Patient == "" || req.Program == "" || req.DateEnrolled.IsZero() {
		return echo.NewHTTPError(http.StatusBadRequest, "patient, program and dateEnrolled are required")
	}

	enrollment := services.EnrollmentRequest{
		PatientID:       req.Patient,
		ProgramID:       req.Program,
		EnrollmentDate:  req.DateEnrolled,
		StateID:         req.State,
		AttributeValues: req.Attributes,
	}
	if len(req.Attributes) > 0 {
		types, err := h.programs.GetProgramAttributeTypes(ctx)
		if err != nil {
			return backendError(err)
		}
		enrollment.AttributeTypes = types
	}

	resp, err := h.programs.EnrollPatientToAProgram(ctx, enrollment)
	if err != nil {
		return backendError(err)
	}
	return writeRaw(c, resp)
}

// TransitionState moves an enrollment into a new workflow state
// (POST /api/v1/enrollments/{uuid}/states)
func (h *Handler) TransitionState(c echo.Context) error {
	enrollmentID, err := pathParam(c, "uuid")
	if err != nil {
		return err
	}
	var req TransitionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	resp, err := h.programs.SavePatientProgram(c.Request().Context(), enrollmentID, req.State, req.OnDate, req.CurrentStateRecord)
	if err != nil {
		return backendError(err)
	}
	return writeRaw(c, resp)
}

// EndEnrollment completes an enrollment with an outcome
// (POST /api/v1/enrollments/{uuid}/end)
func (h *Handler) EndEnrollment(c echo.Context) error {
	enrollmentID, err := pathParam(c, "uuid")
	if err != nil {
		return err
	}
	var req EndRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	if req.DateCompleted.IsZero() {
		return echo.NewHTTPError(http.StatusBadRequest, "dateCompleted is required")
	}

	resp, err := h.programs.EndPatientProgram(c.Request().Context(), enrollmentID, req.DateCompleted, req.Outcome)
	if err != nil {
		return backendError(err)
	}
	return writeRaw(c, resp)
}

// DeleteState purges a state record from an enrollment
// (DELETE /api/v1/enrollments/{uuid}/states/{state})
func (h *Handler) DeleteState(c echo.Context) error {
	enrollmentID, err := pathParam(c, "uuid")
	if err != nil {
		return err
	}
	stateID, err := pathParam(c, "state")
	if err != nil {
		return err
	}

	resp, err := h.programs.DeletePatientState(c.Request().Context(), enrollmentID, stateID)
	if err != nil {
		return backendError(err)
	}
	return writeRaw(c, resp)
}
