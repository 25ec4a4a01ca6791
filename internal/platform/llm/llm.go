// Package llm builds chat-model clients for the pipeline's LLM roles from the
// credentials resolved for each role.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/graphgen-api/internal/credential"
)

// Common errors returned by the llm package
var (
	// ErrMissingModel is returned when no model is configured for a role
	ErrMissingModel = errors.New("no model configured")

	// ErrEmptyResponse is returned when the model answered with no content
	ErrEmptyResponse = errors.New("empty response from language model")
)

// ChatModel answers a single prompt under an optional system instruction.
type ChatModel interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
	Name() string
}

// Provider names a client implementation.
type Provider string

// Supported providers.
const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

// ProviderFor picks the client for an endpoint. Gemini models are served by
// the native client unless a base URL points at an OpenAI-compatible gateway.
func ProviderFor(ep credential.Endpoint) Provider {
	if ep.BaseURL == "" && strings.HasPrefix(strings.ToLower(ep.Model), "gemini") {
		return ProviderGemini
	}
	return ProviderOpenAI
}

// Factory creates chat models for pipeline roles. Credentials are resolved at
// call time, so a factory created once sees per-job overrides made visible by
// a credential.Scope.
type Factory struct {
	store  credential.Store
	retry  RetryConfig
	logger *slog.Logger
}

// NewFactory creates a Factory reading ambient credentials from store.
func NewFactory(store credential.Store, retry RetryConfig, logger *slog.Logger) *Factory {
	return &Factory{store: store, retry: retry, logger: logger}
}

// ForRole resolves the endpoint for role and returns a client for it.
func (f *Factory) ForRole(ctx context.Context, role credential.Role) (ChatModel, error) {
	ep := credential.Resolve(ctx, f.store, role)
	if ep.Model == "" {
		return nil, fmt.Errorf("%w for %s", ErrMissingModel, role)
	}

	var (
		model ChatModel
		err   error
	)
	switch ProviderFor(ep) {
	case ProviderGemini:
		model, err = newGeminiModel(ctx, ep)
	default:
		model, err = newOpenAIModel(ep)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", role, err)
	}

	f.logger.DebugContext(ctx, "created chat model",
		"role", role,
		"model", ep.Model,
		"provider", ProviderFor(ep),
		"custom_base_url", ep.BaseURL != "")

	return WithRetry(model, f.retry, f.logger), nil
}
