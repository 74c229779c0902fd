package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	domai "labsentinel/internal/domain/ai"
	"labsentinel/internal/infra/ai/prompt"
)

const (
	visionMaxTokens    = 2000
	reasoningMaxTokens = 4000
)

// DefaultBaseURL targets NVIDIA's OpenAI-compatible inference endpoint.
const DefaultBaseURL = "https://integrate.api.nvidia.com/v1"

// DefaultVisionModels is the ordered fallback list for the vision stage.
var DefaultVisionModels = []string{
	"nvidia/nemotron-nano-12b-v2-vl",
	"nvidia/vlm-1b-instruct",
	"google/gemma-3-27b-it",
	"meta/llama-3.2-11b-vision-instruct",
}

// DefaultReasoningModel drives the comparison stage.
const DefaultReasoningModel = "nvidia/nemotron-3-nano-30b-a3b"

// Client implements both inference ports against one OpenAI-compatible API.
type Client struct {
	api            *openai.Client
	visionModels   []string
	reasoningModel string
}

func NewClient(baseURL, apiKey string, visionModels []string, reasoningModel string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if len(visionModels) == 0 {
		visionModels = DefaultVisionModels
	}
	if reasoningModel == "" {
		reasoningModel = DefaultReasoningModel
	}
	return &Client{
		api:            openai.NewClientWithConfig(cfg),
		visionModels:   visionModels,
		reasoningModel: reasoningModel,
	}
}

// Describe sends the evidence image through the vision model list in order,
// returning the first successful description.
func (c *Client) Describe(ctx context.Context, imageBase64, contentType string) (string, error) {
	if contentType == "" {
		contentType = "image/jpeg"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", contentType, imageBase64)

	var lastErr error
	for _, model := range c.visionModels {
		req := openai.ChatCompletionRequest{
			Model:     model,
			MaxTokens: visionMaxTokens,
			Messages: []openai.ChatCompletionMessage{{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt.VisionPrompt()},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL}},
				},
			}},
		}
		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err != nil {
			if isQuotaErr(err) {
				return "", domai.ErrQuotaExceeded
			}
			lastErr = err
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("model %s returned no choices", model)
			continue
		}
		return resp.Choices[0].Message.Content, nil
	}
	return "", fmt.Errorf("%w: %v", domai.ErrNoVisionModel, lastErr)
}

// Audit runs the comparison stage in JSON mode against the reasoning model.
func (c *Client) Audit(ctx context.Context, description, procedureText string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:     c.reasoningModel,
		MaxTokens: reasoningMaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.AuditorSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: prompt.AuditorUserPrompt(description, procedureText)},
		},
	}
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		if isQuotaErr(err) {
			return "", domai.ErrQuotaExceeded
		}
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("reasoning model returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func isQuotaErr(err error) bool {
	var apiErr *openai.APIError
	return errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 429
}
