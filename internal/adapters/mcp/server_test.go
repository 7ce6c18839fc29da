package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/medical-intake/internal/core/domain"
)

type intakeFake struct {
	err  error
	last domain.IntakeRequest
}

func (f *intakeFake) Process(_ context.Context, req domain.IntakeRequest) (*domain.StructuredRecord, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &domain.StructuredRecord{
		ID:       1,
		Summary:  "Fiebre alta.",
		Entities: []domain.Entity{{Label: "SYMPTOM", Text: "fiebre"}},
		Decision: domain.UndeterminedDecision(),
	}, nil
}

type catalogFake struct{}

func (catalogFake) Entries(context.Context) ([]domain.CatalogEntry, error) {
	return []domain.CatalogEntry{{ID: 1, Label: "Cistitis intersticial"}}, nil
}

func (catalogFake) Seed(context.Context, []string) (domain.SeedResult, error) {
	return domain.SeedResult{}, nil
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) != 1 {
		t.Fatalf("expected one content item, got %d", len(result.Content))
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	return text.Text
}

func TestProcessIntakeToolRunsPipeline(t *testing.T) {
	intake := &intakeFake{}
	h := NewHandlers(intake, catalogFake{}, 9)

	result, err := h.ProcessIntake(context.Background(), callRequest(toolProcessIntake, map[string]any{
		"texto_original": "Tengo fiebre alta",
		"cita_id":        float64(4),
		"diagnostico":    "Cistitis intersticial",
	}))
	if err != nil || result.IsError {
		t.Fatalf("unexpected failure %v %+v", err, result)
	}

	var out intakeResult
	if err := json.Unmarshal([]byte(resultText(t, result)), &out); err != nil {
		t.Fatalf("decode tool result: %v", err)
	}
	if out.Resumen != "Fiebre alta." || out.Entidades["SYMPTOM"][0] != "fiebre" || out.Diagnostico.Method != domain.MethodNone {
		t.Fatalf("unexpected tool result %+v", out)
	}
	if intake.last.UserID != 9 || *intake.last.AppointmentID != 4 || intake.last.Hint.Label != "Cistitis intersticial" {
		t.Fatalf("unexpected pipeline request %+v", intake.last)
	}
}

func TestProcessIntakeToolReportsErrorsAsToolResults(t *testing.T) {
	h := NewHandlers(&intakeFake{err: domain.WrapError(domain.ErrInvalidInput, "resolve hint", errors.New("unknown label"))}, catalogFake{}, 1)

	for _, args := range []map[string]any{
		{},
		{"texto_original": "x", "cita_id": 1.5},
		{"texto_original": "x"},
	} {
		result, err := h.ProcessIntake(context.Background(), callRequest(toolProcessIntake, args))
		if err != nil {
			t.Fatalf("tool errors must not be protocol errors: %v", err)
		}
		if !result.IsError {
			t.Fatalf("args %v: expected tool error result", args)
		}
	}
}

func TestListDiagnosesTool(t *testing.T) {
	h := NewHandlers(&intakeFake{}, catalogFake{}, 1)
	result, err := h.ListDiagnoses(context.Background(), callRequest(toolListDiagnoses, nil))
	if err != nil || result.IsError {
		t.Fatalf("unexpected failure %v", err)
	}
	var entries []domain.CatalogEntry
	if err := json.Unmarshal([]byte(resultText(t, result)), &entries); err != nil || len(entries) != 1 {
		t.Fatalf("unexpected catalog %s", resultText(t, result))
	}
}

func TestNewServerRegistersTools(t *testing.T) {
	s := NewServer("medical-intake", "test", NewHandlers(&intakeFake{}, catalogFake{}, 1))
	tools := s.ListTools()
	if _, ok := tools[toolProcessIntake]; !ok {
		t.Fatalf("process_intake not registered")
	}
	if _, ok := tools[toolListDiagnoses]; !ok {
		t.Fatalf("list_diagnoses not registered")
	}
}
