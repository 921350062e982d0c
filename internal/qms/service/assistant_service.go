package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stratamine/qms/internal/qms/entity"
	"github.com/stratamine/qms/internal/qms/repository"
	"github.com/stratamine/qms/internal/qms/workflow"
	"github.com/stratamine/qms/internal/shared/llm"
	"go.uber.org/zap"
)

// maxToolRounds bounds the tool-call loop per user message.
const maxToolRounds = 4

const assistantSystemPrompt = `You are Edith, the quality-management assistant for a mining operation.
You help staff find and understand non-conformance (NC) records, audits and the ISO 9001 workflow.
Use the provided tools to look up live data before answering. Keep answers short and factual.
Never invent NC numbers or statuses. If a tool returns no results, say so.`

// AssistantService runs the Edith conversational assistant over the LLM
// gateway, with read tools over NC data plus a create_nc action tool.
type AssistantService struct {
	client *llm.Client
	ncRepo *repository.NCRepository
	ncSvc  *NCService
	logger *zap.Logger
}

// NewAssistantService creates the assistant service. A nil client disables it.
func NewAssistantService(client *llm.Client, ncRepo *repository.NCRepository, ncSvc *NCService, logger *zap.Logger) *AssistantService {
	return &AssistantService{client: client, ncRepo: ncRepo, ncSvc: ncSvc, logger: logger}
}

// Enabled reports whether the LLM gateway is configured.
func (s *AssistantService) Enabled() bool {
	return s.client != nil
}

// ChatTurn is one prior turn supplied by the client for conversation context.
type ChatTurn struct {
	Role    string `json:"role" binding:"required"`
	Content string `json:"content" binding:"required"`
}

// Chat answers one user message, running tool calls as needed.
func (s *AssistantService) Chat(ctx context.Context, siteID string, actor workflow.Actor, history []ChatTurn, userMessage string) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("assistant is not configured")
	}

	messages := []llm.Message{{Role: "system", Content: assistantSystemPrompt}}
	for _, turn := range history {
		if turn.Role == "user" || turn.Role == "assistant" {
			messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
		}
	}
	messages = append(messages, llm.Message{Role: "user", Content: userMessage})

	tools := s.toolDefinitions()

	for round := 0; round < maxToolRounds; round++ {
		reply, err := s.client.Chat(ctx, messages, tools)
		if err != nil {
			return "", fmt.Errorf("gateway call failed: %w", err)
		}
		if len(reply.ToolCalls) == 0 {
			return reply.Content, nil
		}

		messages = append(messages, *reply)
		for _, call := range reply.ToolCalls {
			result := s.executeTool(ctx, siteID, actor, call)
			messages = append(messages, llm.Message{
				Role:       "tool",
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}

	return "", fmt.Errorf("assistant exceeded the tool-call limit")
}

func (s *AssistantService) toolDefinitions() []llm.Tool {
	return []llm.Tool{
		{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        "search_ncs",
				Description: "Search non-conformances by status, risk classification or free text. Returns up to 10 matches.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"status":              map[string]interface{}{"type": "string", "description": "open, in_progress, pending_review, pending_verification, closed or rejected"},
						"risk_classification": map[string]interface{}{"type": "string", "description": "observation, ofi, minor or major"},
						"query":               map[string]interface{}{"type": "string", "description": "free text matched against number, title and description"},
						"overdue_only":        map[string]interface{}{"type": "boolean"},
					},
				},
			},
		},
		{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        "get_nc",
				Description: "Fetch one non-conformance by id, including its workflow history.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"id": map[string]interface{}{"type": "string"},
					},
					"required": []string{"id"},
				},
			},
		},
		{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        "count_declines",
				Description: "Count manager declines in an NC's history and whether it has hit the escalation threshold.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"id": map[string]interface{}{"type": "string"},
					},
					"required": []string{"id"},
				},
			},
		},
		{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        "create_nc",
				Description: "Report a new non-conformance on behalf of the user. Only call when the user explicitly asks to raise one.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"title":       map[string]interface{}{"type": "string"},
						"description": map[string]interface{}{"type": "string"},
					},
					"required": []string{"title", "description"},
				},
			},
		},
	}
}

// executeTool runs one tool call. Errors become tool-result text so the model
// can recover instead of the whole chat failing.
func (s *AssistantService) executeTool(ctx context.Context, siteID string, actor workflow.Actor, call llm.ToolCall) string {
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
		return fmt.Sprintf(`{"error": "bad arguments: %s"}`, err)
	}

	str := func(key string) string {
		v, _ := args[key].(string)
		return v
	}

	switch call.Function.Name {
	case "search_ncs":
		overdue, _ := args["overdue_only"].(bool)
		ncs, total, err := s.ncRepo.List(ctx, siteID, repository.NCFilter{
			Status:             str("status"),
			RiskClassification: str("risk_classification"),
			Search:             str("query"),
			OverdueOnly:        overdue,
			PageSize:           10,
		})
		if err != nil {
			return toolError(err)
		}
		return toolJSON(map[string]interface{}{"total": total, "results": summarizeNCs(ncs)})

	case "get_nc":
		nc, err := s.ncRepo.FindByID(ctx, siteID, str("id"))
		if err != nil {
			return toolError(err)
		}
		return toolJSON(map[string]interface{}{
			"nc_number":           nc.NCNumber,
			"title":               nc.Title,
			"status":              nc.Status,
			"current_step":        nc.CurrentStep,
			"risk_classification": nc.RiskClassification,
			"due_date":            nc.DueDate,
			"closed_at":           nc.ClosedAt,
			"workflow_history":    nc.WorkflowHistory,
		})

	case "count_declines":
		nc, err := s.ncRepo.FindByID(ctx, siteID, str("id"))
		if err != nil {
			return toolError(err)
		}
		declines := workflow.CountDeclines(nc.WorkflowHistory)
		return toolJSON(map[string]interface{}{
			"nc_number": nc.NCNumber,
			"declines":  declines,
			"escalated": workflow.Escalated(nc.WorkflowHistory),
			"threshold": workflow.EscalationThreshold,
		})

	case "create_nc":
		nc, err := s.ncSvc.Create(ctx, siteID, actor.UserID, CreateNCRequest{
			Title:       str("title"),
			Description: str("description"),
			Source:      "assistant",
		})
		if err != nil {
			return toolError(err)
		}
		return toolJSON(map[string]interface{}{"nc_number": nc.NCNumber, "id": nc.ID, "status": nc.Status})

	default:
		return fmt.Sprintf(`{"error": "unknown tool %s"}`, call.Function.Name)
	}
}

func summarizeNCs(ncs []entity.NonConformance) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(ncs))
	for _, nc := range ncs {
		out = append(out, map[string]interface{}{
			"id":                  nc.ID,
			"nc_number":           nc.NCNumber,
			"title":               nc.Title,
			"status":              nc.Status,
			"risk_classification": nc.RiskClassification,
			"due_date":            nc.DueDate,
		})
	}
	return out
}

func toolJSON(v interface{}) string {
	payload, err := json.Marshal(v)
	if err != nil {
		return toolError(err)
	}
	return string(payload)
}

func toolError(err error) string {
	payload, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(payload)
}
