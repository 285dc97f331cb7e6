package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"program-enrollment/backend/internal/auth"
	"program-enrollment/backend/internal/openmrs"
	"program-enrollment/backend/internal/services"
)

type Server struct {
	mcpServer *server.MCPServer
	programs  services.ProgramManager
	dates     services.DateFormatter
}

func NewServer(programs services.ProgramManager, dates services.DateFormatter) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Program Enrollment",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		programs: programs,
		dates:    dates,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_all_programs",
			mcp.WithDescription("List all active program definitions with their workflows, states and outcomes"),
		),
		s.handleGetAllPrograms,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_patient_programs",
			mcp.WithDescription("List a patient's enrollments grouped into active and ended programs, most recent first"),
			mcp.WithString("patient", mcp.Required(), mcp.Description("The patient UUID")),
		),
		s.handleGetPatientPrograms,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"enroll_patient",
			mcp.WithDescription("Enroll a patient into a program"),
			mcp.WithString("patient", mcp.Required(), mcp.Description("The patient UUID")),
			mcp.WithString("program", mcp.Required(), mcp.Description("The program UUID")),
			mcp.WithString("dateEnrolled", mcp.Required(), mcp.Description("Enrollment date, RFC 3339 or YYYY-MM-DD")),
			mcp.WithString("state", mcp.Description("Initial workflow state UUID")),
			mcp.WithObject("attributes", mcp.Description("Attribute values keyed by attribute type name")),
		),
		s.handleEnrollPatient,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"save_patient_program",
			mcp.WithDescription("Transition an enrollment into a new workflow state"),
			mcp.WithString("enrollment", mcp.Required(), mcp.Description("The enrollment UUID")),
			mcp.WithString("state", mcp.Description("The target state UUID; omit to send no state change")),
			mcp.WithString("onDate", mcp.Required(), mcp.Description("Start date of the new state")),
			mcp.WithString("currentStateRecord", mcp.Description("UUID of the state record being replaced")),
		),
		s.handleSavePatientProgram,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"end_patient_program",
			mcp.WithDescription("Complete an enrollment with an optional outcome"),
			mcp.WithString("enrollment", mcp.Required(), mcp.Description("The enrollment UUID")),
			mcp.WithString("dateCompleted", mcp.Required(), mcp.Description("Completion date")),
			mcp.WithString("outcome", mcp.Description("Outcome concept UUID")),
		),
		s.handleEndPatientProgram,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"delete_patient_state",
			mcp.WithDescription("Purge a state record from an enrollment"),
			mcp.WithString("enrollment", mcp.Required(), mcp.Description("The enrollment UUID")),
			mcp.WithString("stateRecord", mcp.Required(), mcp.Description("The state record UUID")),
		),
		s.handleDeletePatientState,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_program_attribute_types",
			mcp.WithDescription("List the attribute types that can be recorded on an enrollment"),
		),
		s.handleGetProgramAttributeTypes,
	)
}

func (s *Server) handleGetAllPrograms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if denied := authorize(ctx, auth.ScopeProgramRead); denied != nil {
		return denied, nil
	}

	programs, err := s.programs.GetAllPrograms(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get programs: %v", err)), nil
	}
	return jsonResult(programs), nil
}

func (s *Server) handleGetPatientPrograms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if denied := authorize(ctx, auth.ScopeProgramRead); denied != nil {
		return denied, nil
	}

	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	patient, ok := args["patient"].(string)
	if !ok || patient == "" {
		return mcp.NewToolResultError("Missing required parameter: patient"), nil
	}

	grouped, err := s.programs.GetPatientPrograms(ctx, patient)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get patient programs: %v", err)), nil
	}
	return jsonResult(grouped), nil
}

func (s *Server) handleEnrollPatient(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if denied := authorize(ctx, auth.ScopeProgramWrite); denied != nil {
		return denied, nil
	}

	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	patient, ok := args["patient"].(string)
	if !ok || patient == "" {
		return mcp.NewToolResultError("Missing required parameter: patient"), nil
	}
	program, ok := args["program"].(string)
	if !ok || program == "" {
		return mcp.NewToolResultError("Missing required parameter: program"), nil
	}
	enrolled, errResult := s.requireDate(args, "dateEnrolled")
	if errResult != nil {
		return errResult, nil
	}

	req := services.EnrollmentRequest{
		PatientID:      patient,
		ProgramID:      program,
		EnrollmentDate: enrolled,
	}
	req.StateID, _ = args["state"].(string)
	if values, ok := args["attributes"].(map[string]interface{}); ok && len(values) > 0 {
		types, err := s.programs.GetProgramAttributeTypes(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to get attribute types: %v", err)), nil
		}
		req.AttributeValues = values
		req.AttributeTypes = types
	}

	resp, err := s.programs.EnrollPatientToAProgram(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to enroll patient: %v", err)), nil
	}
	return writeResult(resp), nil
}

func (s *Server) handleSavePatientProgram(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if denied := authorize(ctx, auth.ScopeProgramWrite); denied != nil {
		return denied, nil
	}

	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	enrollment, ok := args["enrollment"].(string)
	if !ok || enrollment == "" {
		return mcp.NewToolResultError("Missing required parameter: enrollment"), nil
	}
	state, _ := args["state"].(string)
	onDate, errResult := s.requireDate(args, "onDate")
	if errResult != nil {
		return errResult, nil
	}
	current, _ := args["currentStateRecord"].(string)

	resp, err := s.programs.SavePatientProgram(ctx, enrollment, state, onDate, current)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to save patient program: %v", err)), nil
	}
	return writeResult(resp), nil
}

func (s *Server) handleEndPatientProgram(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if denied := authorize(ctx, auth.ScopeProgramWrite); denied != nil {
		return denied, nil
	}

	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	enrollment, ok := args["enrollment"].(string)
	if !ok || enrollment == "" {
		return mcp.NewToolResultError("Missing required parameter: enrollment"), nil
	}
	completed, errResult := s.requireDate(args, "dateCompleted")
	if errResult != nil {
		return errResult, nil
	}
	outcome, _ := args["outcome"].(string)

	resp, err := s.programs.EndPatientProgram(ctx, enrollment, completed, outcome)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to end patient program: %v", err)), nil
	}
	return writeResult(resp), nil
}

func (s *Server) handleDeletePatientState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if denied := authorize(ctx, auth.ScopeProgramWrite); denied != nil {
		return denied, nil
	}

	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	enrollment, ok := args["enrollment"].(string)
	if !ok || enrollment == "" {
		return mcp.NewToolResultError("Missing required parameter: enrollment"), nil
	}
	stateRecord, ok := args["stateRecord"].(string)
	if !ok || stateRecord == "" {
		return mcp.NewToolResultError("Missing required parameter: stateRecord"), nil
	}

	resp, err := s.programs.DeletePatientState(ctx, enrollment, stateRecord)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to delete patient state: %v", err)), nil
	}
	return writeResult(resp), nil
}

func (s *Server) handleGetProgramAttributeTypes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if denied := authorize(ctx, auth.ScopeProgramRead); denied != nil {
		return denied, nil
	}

	types, err := s.programs.GetProgramAttributeTypes(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get attribute types: %v", err)), nil
	}
	return jsonResult(types), nil
}

// authorize checks the caller stored by auth.RequireAuth against scope.
func authorize(ctx context.Context, scope string) *mcp.CallToolResult {
	p, ok := auth.PrincipalFrom(ctx)
	if !ok {
		return mcp.NewToolResultError("Unauthenticated")
	}
	if !p.Allows(scope) {
		return mcp.NewToolResultError("Missing scope: " + scope)
	}
	return nil
}

func (s *Server) requireDate(args map[string]interface{}, name string) (time.Time, *mcp.CallToolResult) {
	raw, ok := args[name].(string)
	if !ok || raw == "" {
		return time.Time{}, mcp.NewToolResultError("Missing required parameter: " + name)
	}
	t, err := s.dates.Parse(raw)
	if err != nil || t == nil {
		return time.Time{}, mcp.NewToolResultError(fmt.Sprintf("Invalid date for %s: %q", name, raw))
	}
	return *t, nil
}

func jsonResult(v any) *mcp.CallToolResult {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err))
	}
	return mcp.NewToolResultText(string(jsonBytes))
}

func writeResult(resp *openmrs.Response) *mcp.CallToolResult {
	if len(resp.Body) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("OK (status %d)", resp.StatusCode))
	}
	return mcp.NewToolResultText(string(resp.Body))
}

// withPrincipal carries the authenticated caller into tool calls.
func withPrincipal(ctx context.Context, r *http.Request) context.Context {
	if p, ok := auth.PrincipalFrom(r.Context()); ok {
		return auth.WithPrincipal(ctx, p)
	}
	return ctx
}

// MountHTTPHandlers exposes the MCP server over SSE under /mcp.
func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	sseServer := server.NewSSEServer(mcpServer,
		server.WithStaticBasePath("/mcp"),
		server.WithSSEContextFunc(withPrincipal),
	)

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
