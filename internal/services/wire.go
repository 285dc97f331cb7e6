package services

import (
	"context"

	"program-enrollment/backend/internal/attributes"
	"program-enrollment/backend/internal/config"
	"program-enrollment/backend/internal/dateutil"
	"program-enrollment/backend/internal/logging"
	"program-enrollment/backend/internal/openmrs"
)

// NewFromConfig builds a ProgramService backed by the configured backend
// with the default date, attribute and mapper collaborators.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *logging.Logger) *ProgramService {
	transport := openmrs.NewHTTPClient(ctx, openmrs.Options{
		BaseURL:      cfg.OpenMRS.URL,
		Username:     cfg.OpenMRS.Username,
		Password:     cfg.OpenMRS.Password,
		Timeout:      cfg.OpenMRS.Timeout,
		TokenURL:     cfg.OpenMRS.OAuth.TokenURL,
		ClientID:     cfg.OpenMRS.OAuth.ClientID,
		ClientSecret: cfg.OpenMRS.OAuth.ClientSecret,
		Scopes:       cfg.OpenMRS.OAuth.Scopes,
	}, logger)

	dates := dateutil.New(nil)
	return NewProgramService(Deps{
		Transport: transport,
		Dates:     dates,
		Formatter: attributes.NewFormatter(dates),
		Mapper:    attributes.NewTypeMapper(),
		App:       cfg.AppDescriptor(),
		Endpoints: Endpoints{
			Program:                  cfg.Endpoints.Program,
			Enrollment:               cfg.Endpoints.Enrollment,
			AttributeTypes:           cfg.Endpoints.AttributeTypes,
			EnrollmentRepresentation: cfg.Endpoints.EnrollmentRepresentation,
		},
		Logger: logger,
	})
}
