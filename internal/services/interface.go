package services

import (
	"context"
	"net/url"
	"time"

	"program-enrollment/backend/internal/openmrs"
	"program-enrollment/backend/pkg/models"
)

// Transport is the HTTP collaborator used to reach the backend.
type Transport interface {
	// Get issues a read with query parameters.
	Get(ctx context.Context, path string, params url.Values) (*openmrs.Response, error)
	// Post issues a create or update with a JSON body.
	Post(ctx context.Context, path string, body any) (*openmrs.Response, error)
	// Delete issues a delete with a JSON body.
	Delete(ctx context.Context, path string, body any) (*openmrs.Response, error)
}

// DateFormatter converts between time values and backend date strings.
type DateFormatter interface {
	Format(t time.Time) string
	Parse(s string) (*time.Time, error)
}

// AttributeFormatter builds backend attribute records from attribute values.
type AttributeFormatter interface {
	GetMrsAttributes(values map[string]any, types []*models.AttributeType) []*models.AttributeRecord
	RemoveUnfilledAttributes(records []*models.AttributeRecord) []*models.AttributeRecord
}

// AttributeTypeMapper turns raw attribute type definitions into descriptors.
type AttributeTypeMapper interface {
	MapFromOpenmrsAttributeTypes(raw []*models.ProgramAttributeType, mandatory []string) []*models.AttributeType
}

// AppDescriptor exposes named application configuration values.
type AppDescriptor interface {
	GetStringSlice(name string) []string
}

// ProgramManager is the program enrollment API consumed by the gateway,
// the MCP tools and the CLI.
type ProgramManager interface {
	GetAllPrograms(ctx context.Context) ([]*models.Program, error)
	EnrollPatientToAProgram(ctx context.Context, req EnrollmentRequest) (*openmrs.Response, error)
	GetPatientPrograms(ctx context.Context, patientID string) (*models.GroupedPrograms, error)
	SavePatientProgram(ctx context.Context, enrollmentID, stateID string, onDate time.Time, currentStateRecordID string) (*openmrs.Response, error)
	EndPatientProgram(ctx context.Context, enrollmentID string, asOfDate time.Time, outcomeID string) (*openmrs.Response, error)
	DeletePatientState(ctx context.Context, enrollmentID, stateRecordID string) (*openmrs.Response, error)
	GetProgramAttributeTypes(ctx context.Context) ([]*models.AttributeType, error)
}
