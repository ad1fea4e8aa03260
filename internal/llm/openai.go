package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o"

// OpenAI implements Provider over the OpenAI chat completions API.
// A client is constructed per call from the request's API key.
type OpenAI struct {
	model string
}

// NewOpenAI creates a provider using the given default model.
func NewOpenAI(model string) *OpenAI {
	if model == "" {
		model = DefaultModel
	}
	return &OpenAI{model: model}
}

func (o *OpenAI) request(req Request) (openai.ChatCompletionRequest, error) {
	if req.APIKey == "" {
		return openai.ChatCompletionRequest{}, fmt.Errorf("llm: api key is required")
	}
	model := req.Model
	if model == "" {
		model = o.model
	}
	msgs := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return openai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}, nil
}

// Complete performs a single non-streaming completion.
func (o *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	ccr, err := o.request(req)
	if err != nil {
		return "", err
	}
	client := openai.NewClient(req.APIKey)
	resp, err := client.CreateChatCompletion(ctx, ccr)
	if err != nil {
		return "", fmt.Errorf("llm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: no completion choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream opens a streaming completion. The returned stream's Recv yields
// content deltas and io.EOF at end of response.
func (o *OpenAI) Stream(ctx context.Context, req Request) (Stream, error) {
	ccr, err := o.request(req)
	if err != nil {
		return nil, err
	}
	ccr.Stream = true
	client := openai.NewClient(req.APIKey)
	s, err := client.CreateChatCompletionStream(ctx, ccr)
	if err != nil {
		return nil, fmt.Errorf("llm: open stream: %w", err)
	}
	return &openaiStream{s: s}, nil
}

type openaiStream struct {
	s *openai.ChatCompletionStream
}

func (s *openaiStream) Recv() (string, error) {
	resp, err := s.s.Recv()
	if err != nil {
		return "", err // io.EOF passes through unchanged
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Delta.Content, nil
}

func (s *openaiStream) Close() error {
	return s.s.Close()
}
