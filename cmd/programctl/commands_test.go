package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"program-enrollment/backend/internal/dateutil"
	"program-enrollment/backend/internal/openmrs"
	"program-enrollment/backend/internal/services"
	"program-enrollment/backend/pkg/models"
)

type mockManager struct {
	mock.Mock
}

func (m *mockManager) GetAllPrograms(ctx context.Context) ([]*models.Program, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*models.Program), args.Error(1)
}

func (m *mockManager) EnrollPatientToAProgram(ctx context.Context, req services.EnrollmentRequest) (*openmrs.Response, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(*openmrs.Response), args.Error(1)
}

func (m *mockManager) GetPatientPrograms(ctx context.Context, patientID string) (*models.GroupedPrograms, error) {
	args := m.Called(ctx, patientID)
	return args.Get(0).(*models.GroupedPrograms), args.Error(1)
}

func (m *mockManager) SavePatientProgram(ctx context.Context, enrollmentID, stateID string, onDate time.Time, currentStateRecordID string) (*openmrs.Response, error) {
	args := m.Called(ctx, enrollmentID, stateID, onDate, currentStateRecordID)
	return args.Get(0).(*openmrs.Response), args.Error(1)
}

func (m *mockManager) EndPatientProgram(ctx context.Context, enrollmentID string, asOfDate time.Time, outcomeID string) (*openmrs.Response, error) {
	args := m.Called(ctx, enrollmentID, asOfDate, outcomeID)
	return args.Get(0).(*openmrs.Response), args.Error(1)
}

func (m *mockManager) DeletePatientState(ctx context.Context, enrollmentID, stateRecordID string) (*openmrs.Response, error) {
	args := m.Called(ctx, enrollmentID, stateRecordID)
	return args.Get(0).(*openmrs.Response), args.Error(1)
}

func (m *mockManager) GetProgramAttributeTypes(ctx context.Context) ([]*models.AttributeType, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*models.AttributeType), args.Error(1)
}

func execute(t *testing.T, pm services.ProgramManager, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	c := &cli{out: &out, dates: dateutil.New(time.UTC)}
	c.newManager = func(*cobra.Command) (services.ProgramManager, error) { return pm, nil }
	root := c.rootCmd()
	root.SetArgs(args)
	root.SetErr(&bytes.Buffer{})
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestProgramsCommand(t *testing.T) {
	pm := new(mockManager)
	pm.On("GetAllPrograms", mock.Anything).Return([]*models.Program{{UUID: "p1", Name: "HIV Program"}}, nil)

	out, err := execute(t, pm, "programs")

	require.NoError(t, err)
	var programs []*models.Program
	require.NoError(t, json.Unmarshal([]byte(out), &programs))
	require.Len(t, programs, 1)
	assert.Equal(t, "HIV Program", programs[0].Name)
}

func TestEnrollmentsCommand(t *testing.T) {
	pm := new(mockManager)
	pm.On("GetPatientPrograms", mock.Anything, "patient-1").Return(&models.GroupedPrograms{
		ActivePrograms: []*models.PatientProgram{},
		EndedPrograms:  []*models.PatientProgram{},
	}, nil)

	out, err := execute(t, pm, "enrollments", "patient-1")

	require.NoError(t, err)
	assert.JSONEq(t, `{"activePrograms":[],"endedPrograms":[]}`, out)
}

func TestEnrollCommand_WithAttributes(t *testing.T) {
	pm := new(mockManager)
	pm.On("GetProgramAttributeTypes", mock.Anything).Return([]*models.AttributeType{{UUID: "t1", Name: "ID Number"}}, nil)
	pm.On("EnrollPatientToAProgram", mock.Anything, mock.MatchedBy(func(req services.EnrollmentRequest) bool {
		return req.PatientID == "patient-1" &&
			req.ProgramID == "program-1" &&
			req.StateID == "state-1" &&
			req.EnrollmentDate.Equal(time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC)) &&
			req.AttributeValues["ID Number"] == "ID-42" &&
			len(req.AttributeTypes) == 1
	})).Return(&openmrs.Response{StatusCode: http.StatusCreated, Body: json.RawMessage(`{"uuid":"enrollment-1"}`)}, nil)

	out, err := execute(t, pm, "enroll",
		"--patient", "patient-1", "--program", "program-1", "--date", "2023-01-15",
		"--state", "state-1", "--attr", "ID Number=ID-42")

	require.NoError(t, err)
	assert.JSONEq(t, `{"uuid":"enrollment-1"}`, out)
	pm.AssertExpectations(t)
}

func TestEnrollCommand_MissingFlags(t *testing.T) {
	_, err := execute(t, new(mockManager), "enroll", "--patient", "patient-1")
	assert.Error(t, err)
}

func TestEnrollCommand_BadAttribute(t *testing.T) {
	pm := new(mockManager)

	_, err := execute(t, pm, "enroll",
		"--patient", "patient-1", "--program", "program-1", "--date", "2023-01-15", "--attr", "novalue")

	assert.ErrorContains(t, err, "name=value")
	pm.AssertNotCalled(t, "EnrollPatientToAProgram", mock.Anything, mock.Anything)
}

func TestTransitionCommand(t *testing.T) {
	pm := new(mockManager)
	pm.On("SavePatientProgram", mock.Anything, "enrollment-1", "state-2", mock.Anything, "record-1").
		Return(&openmrs.Response{StatusCode: http.StatusOK, Body: json.RawMessage(`{}`)}, nil)

	_, err := execute(t, pm, "transition", "enrollment-1", "--state", "state-2", "--date", "2023-05-04", "--current", "record-1")

	require.NoError(t, err)
	pm.AssertExpectations(t)
}

func TestTransitionCommand_WithoutState(t *testing.T) {
	pm := new(mockManager)
	pm.On("SavePatientProgram", mock.Anything, "enrollment-1", "", mock.Anything, "").
		Return(&openmrs.Response{StatusCode: http.StatusOK, Body: json.RawMessage(`{}`)}, nil)

	_, err := execute(t, pm, "transition", "enrollment-1", "--date", "2023-05-04")

	require.NoError(t, err)
	pm.AssertExpectations(t)
}

func TestEndCommand_InvalidDate(t *testing.T) {
	_, err := execute(t, new(mockManager), "end", "enrollment-1", "--date", "soon")
	assert.ErrorContains(t, err, "invalid --date")
}

func TestDeleteStateCommand_NoContent(t *testing.T) {
	pm := new(mockManager)
	pm.On("DeletePatientState", mock.Anything, "enrollment-1", "record-9").
		Return(&openmrs.Response{StatusCode: http.StatusNoContent}, nil)

	out, err := execute(t, pm, "delete-state", "enrollment-1", "record-9")

	require.NoError(t, err)
	assert.JSONEq(t, `{"status":204}`, out)
}
