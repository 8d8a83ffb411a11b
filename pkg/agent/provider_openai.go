package agent

import (
	"context"
	"fmt"

	"github.com/deskmate-ai/deskmate/pkg/session"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClient implements ModelClient for OpenAI
type OpenAIClient struct {
	client openai.Client
	cfg    ModelConfig
}

// NewOpenAIClient creates a new OpenAI model client
func NewOpenAIClient(cfg ModelConfig) *OpenAIClient {
	return &OpenAIClient{
		client: openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		cfg:    cfg,
	}
}

// Provider returns the provider name
func (c *OpenAIClient) Provider() string {
	return "openai"
}

// Complete makes an API call to OpenAI
func (c *OpenAIClient) Complete(ctx context.Context, request CompletionRequest) (*CompletionResponse, error) {
	messages := []openai.ChatCompletionMessageParamUnion{}

	if request.System != "" {
		messages = append(messages, openai.SystemMessage(request.System))
	}

	for _, msg := range request.Messages {
		switch m := msg.(type) {
		case session.SystemMessage:
			messages = append(messages, openai.SystemMessage(m.Content))
		case session.UserMessage:
			messages = append(messages, openai.UserMessage(m.Content))
		case session.AssistantMessage:
			if len(m.ToolRequests) > 0 {
				// Assistant message with tool calls - need to construct manually
				toolCalls := []openai.ChatCompletionMessageToolCall{}
				for _, tr := range m.ToolRequests {
					toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCall{
						ID:   tr.ID,
						Type: "function",
						Function: openai.ChatCompletionMessageToolCallFunction{
							Name:      tr.Name,
							Arguments: tr.Arguments,
						},
					})
				}

				assistantMsg := openai.ChatCompletionMessage{
					Role:      "assistant",
					Content:   m.Content,
					ToolCalls: toolCalls,
				}
				messages = append(messages, assistantMsg.ToParam())
			} else {
				messages = append(messages, openai.AssistantMessage(m.Content))
			}
		case session.ToolMessage:
			messages = append(messages, openai.ToolMessage(m.CallID, m.Content))
		default:
			return nil, fmt.Errorf("unsupported message type %T", msg)
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.cfg.Model),
		Messages: messages,
	}

	if c.cfg.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.cfg.MaxTokens))
	}

	if c.cfg.Temperature > 0 {
		params.Temperature = openai.Float(c.cfg.Temperature)
	}

	if len(request.Tools) > 0 {
		tools := []openai.ChatCompletionToolParam{}
		for _, tool := range request.Tools {
			tools = append(tools, openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        tool.Name,
					Description: openai.String(tool.Description),
					Parameters:  openai.FunctionParameters(tool.InputSchema),
				},
			})
		}
		params.Tools = tools
	}

	response, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, err
	}

	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no response choices returned")
	}

	choice := response.Choices[0]

	toolRequests := []session.ToolRequest{}
	for _, tc := range choice.Message.ToolCalls {
		toolRequests = append(toolRequests, session.ToolRequest{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return &CompletionResponse{
		Content:      choice.Message.Content,
		ToolRequests: toolRequests,
		Usage: &TokenUsage{
			InputTokens:  int(response.Usage.PromptTokens),
			OutputTokens: int(response.Usage.CompletionTokens),
		},
	}, nil
}
