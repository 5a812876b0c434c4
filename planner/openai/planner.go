// Package openai implements the Planner interface on top of OpenAI
// chat completions with function calling.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/voyago/voyago/planner"
)

const defaultModel = "gpt-4o-mini"

// Config configures the OpenAI planner.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float32
}

// Planner implements planner.Planner using the OpenAI API.
type Planner struct {
	client      *goopenai.Client
	model       string
	temperature float32
	logger      *slog.Logger
}

// New creates an OpenAI planner.
func New(cfg Config, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Planner{
		client:      goopenai.NewClientWithConfig(clientCfg),
		model:       model,
		temperature: cfg.Temperature,
		logger:      logger,
	}
}

// Name returns the planner name.
func (p *Planner) Name() string { return "openai" }

// ProposeActions asks the model which capabilities the latest turn needs.
// The model sees the tool catalog as its available-actions list; whatever it
// returns is parsed into actions and handed back unexecuted.
func (p *Planner) ProposeActions(ctx context.Context, messages []planner.Message, tools []planner.ToolDefinition) ([]planner.Action, error) {
	req := goopenai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    toAPIMessages(messages),
		Tools:       toAPITools(tools),
		ToolChoice:  "auto",
		Temperature: p.temperature,
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai: propose actions: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: propose actions: empty response")
	}

	msg := resp.Choices[0].Message
	actions := make([]planner.Action, 0, len(msg.ToolCalls))
	for _, tc := range msg.ToolCalls {
		if tc.Function.Name == "" {
			continue
		}
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return nil, fmt.Errorf("openai: malformed tool arguments for %s: %w", tc.Function.Name, err)
			}
		}
		actions = append(actions, planner.Action{
			Capability: tc.Function.Name,
			Arguments:  args,
		})
	}

	p.logger.Debug("planner proposed actions", "count", len(actions), "model", p.model)
	return actions, nil
}

// Synthesize folds invocation results into a final reply. Results are fed
// back through the tool-message protocol so the model sees exactly what was
// invoked, what succeeded and what failed.
func (p *Planner) Synthesize(ctx context.Context, messages []planner.Message, results []planner.ActionResult) (string, error) {
	apiMessages := toAPIMessages(messages)

	if len(results) > 0 {
		assistant := goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleAssistant}
		toolMsgs := make([]goopenai.ChatCompletionMessage, 0, len(results))
		for i, res := range results {
			callID := fmt.Sprintf("call_%d", i+1)
			argsJSON, _ := json.Marshal(res.Arguments)
			assistant.ToolCalls = append(assistant.ToolCalls, goopenai.ToolCall{
				ID:   callID,
				Type: goopenai.ToolTypeFunction,
				Function: goopenai.FunctionCall{
					Name:      res.Capability,
					Arguments: string(argsJSON),
				},
			})
			toolMsgs = append(toolMsgs, goopenai.ChatCompletionMessage{
				Role:       goopenai.ChatMessageRoleTool,
				ToolCallID: callID,
				Name:       res.Capability,
				Content:    formatResult(res),
			})
		}
		apiMessages = append(apiMessages, assistant)
		apiMessages = append(apiMessages, toolMsgs...)
	}

	req := goopenai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    apiMessages,
		Temperature: p.temperature,
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai: synthesize: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("openai: synthesize: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

func formatResult(res planner.ActionResult) string {
	if !res.Success {
		return fmt.Sprintf(`{"error": %q}`, res.Reason)
	}
	data, err := json.Marshal(res.Payload)
	if err != nil {
		return fmt.Sprintf(`{"error": "unencodable payload: %v"}`, err)
	}
	return string(data)
}

func toAPIMessages(messages []planner.Message) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := goopenai.ChatMessageRoleUser
		switch m.Role {
		case planner.RoleSystem:
			role = goopenai.ChatMessageRoleSystem
		case planner.RoleAssistant:
			role = goopenai.ChatMessageRoleAssistant
		}
		out = append(out, goopenai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}

func toAPITools(tools []planner.ToolDefinition) []goopenai.Tool {
	out := make([]goopenai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}
