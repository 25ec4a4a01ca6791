package llm

import (
	"context"
	"fmt"

	"github.com/phrazzld/graphgen-api/internal/credential"
	"google.golang.org/genai"
)

// geminiModel calls the Gemini API directly.
type geminiModel struct {
	client *genai.Client
	model  string
}

func newGeminiModel(ctx context.Context, ep credential.Endpoint) (*geminiModel, error) {
	if ep.APIKey == "" {
		return nil, fmt.Errorf("gemini API key cannot be empty")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  ep.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &geminiModel{client: client, model: ep.Model}, nil
}

func (m *geminiModel) Generate(ctx context.Context, system, prompt string) (string, error) {
	var cfg *genai.GenerateContentConfig
	if system != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		}
	}

	resp, err := m.client.Models.GenerateContent(ctx, m.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (m *geminiModel) Name() string { return m.model }
