package llm

import (
	"context"
	"fmt"

	"github.com/phrazzld/graphgen-api/internal/credential"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// langchainModel serves any OpenAI-compatible chat endpoint.
type langchainModel struct {
	llm   llms.Model
	model string
}

func newOpenAIModel(ep credential.Endpoint) (*langchainModel, error) {
	opts := []openai.Option{
		openai.WithToken(ep.APIKey),
		openai.WithModel(ep.Model),
	}
	if ep.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(ep.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create openai model: %w", err)
	}
	return &langchainModel{llm: client, model: ep.Model}, nil
}

func (m *langchainModel) Generate(ctx context.Context, system, prompt string) (string, error) {
	var messages []llms.MessageContent
	if system != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, system))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, prompt))

	response, err := m.llm.GenerateContent(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	if len(response.Choices) == 0 || response.Choices[0].Content == "" {
		return "", ErrEmptyResponse
	}
	return response.Choices[0].Content, nil
}

func (m *langchainModel) Name() string { return m.model }
