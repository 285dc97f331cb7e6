package services

import (
	"context"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"program-enrollment/backend/internal/logging"
	"program-enrollment/backend/internal/openmrs"
	"program-enrollment/backend/pkg/models"
)

const instrumentationName = "program-enrollment/backend/internal/services"

// Representations requested from the backend.
const (
	DefaultRepresentation       = "default"
	AttributeTypeRepresentation = "custom:(uuid,name,description,datatypeClassname)"
)

// FullInformationRepresentation is the enrollment representation carrying
// everything GroupPrograms needs.
const FullInformationRepresentation = "custom:(uuid,display,patient:(uuid),dateEnrolled,dateCompleted,voided," +
	"outcome:(uuid,display),attributes:(uuid,value,voided,attributeType:(uuid,display))," +
	"states:(uuid,startDate,endDate,voided,state:(uuid,retired,concept:(uuid,display)))," +
	"program:(uuid,name,description,retired,outcomesConcept:(uuid,display,retired,setMembers:(uuid,display,retired))," +
	"allWorkflows:(uuid,retired,concept:(uuid,display),states:(uuid,retired,initial,terminal,concept:(uuid,display)))))"

// MandatoryProgramAttributesKey names the configuration value listing the
// attribute types that must be filled on enrollment.
const MandatoryProgramAttributesKey = "mandatoryProgramAttributes"

// DeleteStateReason is recorded by the backend when a state is purged.
const DeleteStateReason = "User deleted the state."

// Endpoints holds the backend paths used by ProgramService. Empty fields
// take the defaults from DefaultEndpoints.
type Endpoints struct {
	Program                  string
	Enrollment               string
	AttributeTypes           string
	EnrollmentRepresentation string
}

// DefaultEndpoints returns the backend's standard REST paths.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Program:                  "/openmrs/ws/rest/v1/program",
		Enrollment:               "/openmrs/ws/rest/v1/bahmniprogramenrollment",
		AttributeTypes:           "/openmrs/ws/rest/v1/programattributetype",
		EnrollmentRepresentation: FullInformationRepresentation,
	}
}

func (e Endpoints) withDefaults() Endpoints {
	d := DefaultEndpoints()
	if e.Program == "" {
		e.Program = d.Program
	}
	if e.Enrollment == "" {
		e.Enrollment = d.Enrollment
	}
	if e.AttributeTypes == "" {
		e.AttributeTypes = d.AttributeTypes
	}
	if e.EnrollmentRepresentation == "" {
		e.EnrollmentRepresentation = d.EnrollmentRepresentation
	}
	return e
}

// Deps are the collaborators of ProgramService.
type Deps struct {
	Transport Transport
	Dates     DateFormatter
	Formatter AttributeFormatter
	Mapper    AttributeTypeMapper
	App       AppDescriptor
	Endpoints Endpoints
	Logger    *logging.Logger
}

// ProgramService reads program definitions and patient enrollments and
// writes enrollment changes. Each call issues exactly one backend request.
type ProgramService struct {
	transport Transport
	dates     DateFormatter
	formatter AttributeFormatter
	mapper    AttributeTypeMapper
	app       AppDescriptor
	endpoints Endpoints
	logger    *logging.Logger
	tracer    trace.Tracer
	calls     metric.Int64Counter
}

var _ ProgramManager = (*ProgramService)(nil)

// NewProgramService creates a new ProgramService.
func NewProgramService(d Deps) *ProgramService {
	logger := d.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	calls, err := otel.Meter(instrumentationName).Int64Counter(
		"program_service.calls",
		metric.WithDescription("Program service operations by outcome"),
	)
	if err != nil {
		otel.Handle(err)
	}
	return &ProgramService{
		transport: d.Transport,
		dates:     d.Dates,
		formatter: d.Formatter,
		mapper:    d.Mapper,
		app:       d.App,
		endpoints: d.Endpoints.withDefaults(),
		logger:    logger.With("component", "program_service"),
		tracer:    otel.Tracer(instrumentationName),
		calls:     calls,
	}
}

// GetAllPrograms returns every non-retired program with its retired
// workflows, states and outcomes removed, in server order.
func (s *ProgramService) GetAllPrograms(ctx context.Context) (programs []*models.Program, err error) {
	ctx, span := s.start(ctx, "GetAllPrograms")
	defer func() { s.finish(ctx, span, "GetAllPrograms", err) }()

	resp, err := s.transport.Get(ctx, s.endpoints.Program, url.Values{"v": {DefaultRepresentation}})
	if err != nil {
		return nil, err
	}
	var all []*models.Program
	if err := resp.Results(&all); err != nil {
		return nil, err
	}

	programs = filterRetiredPrograms(all)
	for _, p := range programs {
		cleanProgram(p)
	}
	return programs, nil
}

// EnrollmentRequest describes a new enrollment.
type EnrollmentRequest struct {
	PatientID       string
	ProgramID       string
	EnrollmentDate  time.Time
	StateID         string
	AttributeValues map[string]any
	AttributeTypes  []*models.AttributeType
}

type initialState struct {
	State     string `json:"state"`
	StartDate string `json:"startDate"`
}

type enrollmentBody struct {
	Patient      string                    `json:"patient"`
	Program      string                    `json:"program"`
	DateEnrolled string                    `json:"dateEnrolled"`
	Attributes   []*models.AttributeRecord `json:"attributes"`
	States       []*initialState           `json:"states,omitempty"`
}

// EnrollPatientToAProgram creates an enrollment and returns the backend's
// response as is. When StateID is set the enrollment starts in that state
// on the enrollment date.
func (s *ProgramService) EnrollPatientToAProgram(ctx context.Context, req EnrollmentRequest) (resp *openmrs.Response, err error) {
	ctx, span := s.start(ctx, "EnrollPatientToAProgram",
		attribute.String("patient.uuid", req.PatientID),
		attribute.String("program.uuid", req.ProgramID),
	)
	defer func() { s.finish(ctx, span, "EnrollPatientToAProgram", err) }()

	dateEnrolled := s.dates.Format(req.EnrollmentDate)
	body := enrollmentBody{
		Patient:      req.PatientID,
		Program:      req.ProgramID,
		DateEnrolled: dateEnrolled,
		Attributes: s.formatter.RemoveUnfilledAttributes(
			s.formatter.GetMrsAttributes(req.AttributeValues, req.AttributeTypes),
		),
	}
	if body.Attributes == nil {
		body.Attributes = []*models.AttributeRecord{}
	}
	if req.StateID != "" {
		body.States = []*initialState{{State: req.StateID, StartDate: dateEnrolled}}
	}

	return s.transport.Post(ctx, s.endpoints.Enrollment, body)
}

// patientProgramRecord reads date strings from the wire; the outer fields
// shadow the parsed ones on models.PatientProgram.
type patientProgramRecord struct {
	models.PatientProgram
	DateEnrolled  string `json:"dateEnrolled"`
	DateCompleted string `json:"dateCompleted"`
}

// GetPatientPrograms returns a patient's enrollments grouped into active
// and ended programs, most recent first.
func (s *ProgramService) GetPatientPrograms(ctx context.Context, patientID string) (grouped *models.GroupedPrograms, err error) {
	ctx, span := s.start(ctx, "GetPatientPrograms", attribute.String("patient.uuid", patientID))
	defer func() { s.finish(ctx, span, "GetPatientPrograms", err) }()

	resp, err := s.transport.Get(ctx, s.endpoints.Enrollment, url.Values{
		"v":       {s.endpoints.EnrollmentRepresentation},
		"patient": {patientID},
	})
	if err != nil {
		return nil, err
	}
	var records []*patientProgramRecord
	if err := resp.Results(&records); err != nil {
		return nil, err
	}

	enrollments := make([]*models.PatientProgram, 0, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		pp := r.PatientProgram
		pp.DateEnrolled = s.parseDate(r.DateEnrolled)
		pp.DateCompleted = s.parseDate(r.DateCompleted)
		enrollments = append(enrollments, &pp)
	}
	return GroupPrograms(enrollments), nil
}

// parseDate treats an unreadable date as absent.
func (s *ProgramService) parseDate(value string) *time.Time {
	t, err := s.dates.Parse(value)
	if err != nil {
		s.logger.Debug("ignoring unparseable date", "value", value, "error", err)
		return nil
	}
	return t
}

type statesBody struct {
	States []*StatePayload `json:"states"`
}

// SavePatientProgram moves an enrollment into stateID from onDate. onDate
// is sent without server formatting; callers format it if needed.
func (s *ProgramService) SavePatientProgram(ctx context.Context, enrollmentID, stateID string, onDate time.Time, currentStateRecordID string) (resp *openmrs.Response, err error) {
	ctx, span := s.start(ctx, "SavePatientProgram", attribute.String("enrollment.uuid", enrollmentID))
	defer func() { s.finish(ctx, span, "SavePatientProgram", err) }()

	body := statesBody{States: ConstructStatesPayload(stateID, onDate, currentStateRecordID)}
	return s.transport.Post(ctx, s.enrollmentPath(enrollmentID), body)
}

type endBody struct {
	DateCompleted string `json:"dateCompleted"`
	Outcome       string `json:"outcome,omitempty"`
}

// EndPatientProgram completes an enrollment as of asOfDate with outcomeID.
func (s *ProgramService) EndPatientProgram(ctx context.Context, enrollmentID string, asOfDate time.Time, outcomeID string) (resp *openmrs.Response, err error) {
	ctx, span := s.start(ctx, "EndPatientProgram", attribute.String("enrollment.uuid", enrollmentID))
	defer func() { s.finish(ctx, span, "EndPatientProgram", err) }()

	body := endBody{
		DateCompleted: s.dates.Format(asOfDate),
		Outcome:       outcomeID,
	}
	return s.transport.Post(ctx, s.enrollmentPath(enrollmentID), body)
}

type purgeBody struct {
	Purge  string `json:"!purge"`
	Reason string `json:"reason"`
}

// DeletePatientState purges an enrollment state record. The backend
// removes the record rather than voiding it.
func (s *ProgramService) DeletePatientState(ctx context.Context, enrollmentID, stateRecordID string) (resp *openmrs.Response, err error) {
	ctx, span := s.start(ctx, "DeletePatientState",
		attribute.String("enrollment.uuid", enrollmentID),
		attribute.String("state.uuid", stateRecordID),
	)
	defer func() { s.finish(ctx, span, "DeletePatientState", err) }()

	path := s.enrollmentPath(enrollmentID) + "/state/" + url.PathEscape(stateRecordID)
	return s.transport.Delete(ctx, path, purgeBody{Purge: "", Reason: DeleteStateReason})
}

// GetProgramAttributeTypes returns typed attribute descriptors, flagging the
// ones configured as mandatory.
func (s *ProgramService) GetProgramAttributeTypes(ctx context.Context) (types []*models.AttributeType, err error) {
	ctx, span := s.start(ctx, "GetProgramAttributeTypes")
	defer func() { s.finish(ctx, span, "GetProgramAttributeTypes", err) }()

	resp, err := s.transport.Get(ctx, s.endpoints.AttributeTypes, url.Values{"v": {AttributeTypeRepresentation}})
	if err != nil {
		return nil, err
	}
	var raw []*models.ProgramAttributeType
	if err := resp.Results(&raw); err != nil {
		return nil, err
	}

	var mandatory []string
	if s.app != nil {
		mandatory = s.app.GetStringSlice(MandatoryProgramAttributesKey)
	}
	return s.mapper.MapFromOpenmrsAttributeTypes(raw, mandatory), nil
}

func (s *ProgramService) enrollmentPath(enrollmentID string) string {
	return s.endpoints.Enrollment + "/" + url.PathEscape(enrollmentID)
}

func (s *ProgramService) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "ProgramService."+op, trace.WithAttributes(attrs...))
}

func (s *ProgramService) finish(ctx context.Context, span trace.Span, op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("operation failed", "operation", op, "error", err)
	}
	if s.calls != nil {
		s.calls.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", op),
			attribute.String("outcome", outcome),
		))
	}
	span.End()
}
