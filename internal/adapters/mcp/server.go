// Package mcpadapter exposes the intake pipeline as MCP tools.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/medical-intake/internal/core/domain"
	"github.com/kirillkom/medical-intake/internal/core/ports"
)

const (
	toolProcessIntake = "process_intake"
	toolListDiagnoses = "list_diagnoses"
)

type Handlers struct {
	intake  ports.IntakeProcessor
	catalog ports.CatalogService
	userID  int64
}

// NewHandlers binds the tools to a fixed user id; MCP stdio sessions carry no identity.
func NewHandlers(intake ports.IntakeProcessor, catalog ports.CatalogService, userID int64) *Handlers {
	return &Handlers{intake: intake, catalog: catalog, userID: userID}
}

func NewServer(name, version string, h *Handlers) *server.MCPServer {
	s := server.NewMCPServer(name, version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool(toolProcessIntake,
		mcp.WithDescription("Run the intake pipeline on patient text and store the clinical record."),
		mcp.WithString("texto_original", mcp.Required(), mcp.Description("Patient free text, usually Spanish.")),
		mcp.WithNumber("cita_id", mcp.Description("Optional appointment id the record belongs to.")),
		mcp.WithNumber("diagnostico_id", mcp.Description("Optional catalog id to use as the diagnosis.")),
		mcp.WithString("diagnostico", mcp.Description("Optional exact catalog label to use as the diagnosis.")),
	), h.ProcessIntake)

	s.AddTool(mcp.NewTool(toolListDiagnoses,
		mcp.WithDescription("List the diagnosis catalog."),
	), h.ListDiagnoses)

	return s
}

type intakeResult struct {
	ID             int64               `json:"id"`
	Resumen        string              `json:"resumen"`
	Traduccion     string              `json:"traduccion"`
	Entidades      map[string][]string `json:"entidades"`
	PalabrasClaves []domain.Keyword    `json:"palabras_claves"`
	Sentimiento    domain.Sentiment    `json:"sentimiento"`
	Diagnostico    domain.Decision     `json:"diagnostico"`
	Degradado      []string            `json:"degradado,omitempty"`
}

func (h *Handlers) ProcessIntake(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("texto_original")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	req := domain.IntakeRequest{
		RawText:   text,
		UserID:    h.userID,
		RequestID: uuid.NewString(),
	}
	args := request.GetArguments()
	if id, ok, err := intArgument(args, "cita_id"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	} else if ok {
		req.AppointmentID = &id
	}
	if id, ok, err := intArgument(args, "diagnostico_id"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	} else if ok {
		req.Hint = domain.NewHintByID(id)
	} else if label := strings.TrimSpace(request.GetString("diagnostico", "")); label != "" {
		req.Hint = domain.NewHintByLabel(label)
	}

	rec, err := h.intake.Process(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(intakeResult{
		ID:             rec.ID,
		Resumen:        rec.Summary,
		Traduccion:     rec.Translation,
		Entidades:      domain.GroupEntities(rec.Entities),
		PalabrasClaves: rec.Keywords,
		Sentimiento:    rec.Sentiment,
		Diagnostico:    rec.Decision,
		Degradado:      rec.Degraded,
	})
}

func (h *Handlers) ListDiagnoses(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := h.catalog.Entries(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if entries == nil {
		entries = []domain.CatalogEntry{}
	}
	return jsonResult(entries)
}

func intArgument(args map[string]any, key string) (int64, bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return 0, false, nil
	}
	number, ok := raw.(float64)
	if !ok || number != math.Trunc(number) {
		return 0, false, fmt.Errorf("%s must be an integer", key)
	}
	return int64(number), true, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
