package toolserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/deskmate-ai/deskmate/internal/config"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
)

const ticketAlphabet = "0123456789"

// Server exposes the helpdesk tool catalog over MCP. Each tool targets a
// named backend system (sap, snow, hr) from config.SystemConfig; systems
// without a configured base URL are served by the in-memory stub.
type Server struct {
	server  *mcp.Server
	systems map[string]config.SystemConfig
	logger  zerolog.Logger

	// email -> SAP username
	accounts map[string]string
	// lowercase first name -> HR fact
	employees map[string]string
}

// New creates a helpdesk tool server.
func New(cfg config.ToolServerConfig, logger zerolog.Logger) *Server {
	s := &Server{
		systems: cfg.Systems,
		logger:  logger,
		accounts: map[string]string{
			"shubenkov@example.com": "SHUBENKOVV",
		},
		employees: map[string]string{
			"evgeniy": "Evgeniy does not like project management; he likes to design smart-house systems.",
		},
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "deskmate-helpdesk",
		Version: "1.0.0",
	}, nil)

	s.registerTools()

	return s
}

// Handler returns an HTTP handler serving the MCP streamable transport.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        "get_sap_account",
		Description: "Look up the SAP username for a user's email address.",
		InputSchema: objectSchema(map[string]any{
			"email": map[string]any{"type": "string", "description": "The user's email address"},
		}, "email"),
	}, s.handleGetSAPAccount)

	s.server.AddTool(&mcp.Tool{
		Name:        "reset_sap_password",
		Description: "Reset the SAP password for the given username and return a temporary password.",
		InputSchema: objectSchema(map[string]any{
			"user_id": map[string]any{"type": "string", "description": "The SAP username"},
		}, "user_id"),
	}, s.handleResetSAPPassword)

	s.server.AddTool(&mcp.Tool{
		Name:        "get_employee_info",
		Description: "Return what the company directory knows about an employee by first name.",
		InputSchema: objectSchema(map[string]any{
			"name": map[string]any{"type": "string", "description": "The employee's first name"},
		}, "name"),
	}, s.handleGetEmployeeInfo)

	s.server.AddTool(&mcp.Tool{
		Name:        "create_invoice",
		Description: "Create an invoice in the SAP system from the given invoice data.",
		InputSchema: objectSchema(map[string]any{
			"data": map[string]any{"type": "string", "description": "Invoice payload"},
		}, "data"),
	}, s.handleCreateInvoice)

	s.server.AddTool(&mcp.Tool{
		Name:        "create_snow_request",
		Description: "Open a ServiceNow incident for the given requester email.",
		InputSchema: objectSchema(map[string]any{
			"email":       map[string]any{"type": "string", "description": "Requester email"},
			"description": map[string]any{"type": "string", "description": "What the incident is about"},
		}, "email"),
	}, s.handleCreateSNOWRequest)
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func (s *Server) handleGetSAPAccount(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Email string `json:"email"`
	}
	if err := unmarshalArgs(req, &args); err != nil {
		return errorResult(err), nil
	}

	s.logger.Info().
		Str("tool", "get_sap_account").
		Str("email", args.Email).
		Str("backend", s.backendFor("sap")).
		Msg("Tool called")

	username, found := s.lookupAccount(args.Email)
	if !found {
		return textResult(fmt.Sprintf("No SAP account found for %s.", args.Email)), nil
	}
	return textResult(username), nil
}

func (s *Server) handleResetSAPPassword(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		UserID string `json:"user_id"`
	}
	if err := unmarshalArgs(req, &args); err != nil {
		return errorResult(err), nil
	}
	if args.UserID == "" {
		return errorResult(fmt.Errorf("user_id is required")), nil
	}

	s.logger.Info().
		Str("tool", "reset_sap_password").
		Str("user_id", args.UserID).
		Str("backend", s.backendFor("sap")).
		Msg("Tool called")

	password := s.resetPassword(args.UserID)
	return textResult(fmt.Sprintf("Password reset initiated for %s. Temporary password: %s", args.UserID, password)), nil
}

func (s *Server) handleGetEmployeeInfo(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Name string `json:"name"`
	}
	if err := unmarshalArgs(req, &args); err != nil {
		return errorResult(err), nil
	}

	info, found := s.lookupEmployee(args.Name)
	if !found {
		return textResult(fmt.Sprintf("The directory has no entry for %s.", args.Name)), nil
	}
	return textResult(info), nil
}

func (s *Server) handleCreateInvoice(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Data string `json:"data"`
	}
	if err := unmarshalArgs(req, &args); err != nil {
		return errorResult(err), nil
	}
	if args.Data == "" {
		return errorResult(fmt.Errorf("data is required")), nil
	}

	id := s.createInvoice(args.Data)
	return textResult(fmt.Sprintf("Invoice %s created in SAP.", id)), nil
}

func (s *Server) handleCreateSNOWRequest(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Email       string `json:"email"`
		Description string `json:"description"`
	}
	if err := unmarshalArgs(req, &args); err != nil {
		return errorResult(err), nil
	}
	if args.Email == "" {
		return errorResult(fmt.Errorf("email is required")), nil
	}

	incident := s.createIncident(args.Email, args.Description)
	return textResult(fmt.Sprintf("Incident %s opened for %s.", incident, args.Email)), nil
}

// lookupAccount resolves an email to a SAP username.
func (s *Server) lookupAccount(email string) (string, bool) {
	username, ok := s.accounts[strings.ToLower(strings.TrimSpace(email))]
	return username, ok
}

// lookupEmployee returns the directory fact for a first name.
func (s *Server) lookupEmployee(name string) (string, bool) {
	info, ok := s.employees[strings.ToLower(strings.TrimSpace(name))]
	return info, ok
}

// backendFor names the system a tool call targets. Systems without a
// configured base URL are served by the in-memory stub.
func (s *Server) backendFor(name string) string {
	if sys, ok := s.systems[name]; ok && sys.BaseURL != "" {
		return sys.BaseURL
	}
	return "stub"
}

// resetPassword issues a temporary password. The stub only generates; a
// configured sap backend would receive the actual BAPI call.
func (s *Server) resetPassword(userID string) string {
	suffix, err := gonanoid.Generate(ticketAlphabet, 6)
	if err != nil {
		suffix = "000000"
	}
	return fmt.Sprintf("Tmp-%s!", suffix)
}

func (s *Server) createInvoice(data string) string {
	id, err := gonanoid.Generate(ticketAlphabet, 8)
	if err != nil {
		id = "00000000"
	}
	s.logger.Info().
		Str("tool", "create_invoice").
		Int("payload_bytes", len(data)).
		Str("backend", s.backendFor("sap")).
		Msg("Tool called")
	return "INV-" + id
}

func (s *Server) createIncident(email, description string) string {
	id, err := gonanoid.Generate(ticketAlphabet, 7)
	if err != nil {
		id = "0000000"
	}
	s.logger.Info().
		Str("tool", "create_snow_request").
		Str("email", email).
		Str("description", description).
		Str("backend", s.backendFor("snow")).
		Msg("Tool called")
	return "INC" + id
}

func unmarshalArgs(req *mcp.CallToolRequest, out interface{}) error {
	raw := json.RawMessage(req.Params.Arguments)
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
		IsError: true,
	}
}
