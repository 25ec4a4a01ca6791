// Package credential controls how per-job LLM credentials reach the generation
// pipeline. The pipeline reads model names, base URLs and API keys for each role
// from process-wide configuration; a Scope decides how a job's overrides are
// made visible to it for exactly the duration of one pipeline call.
package credential

// Role is a distinguished LLM consumer inside the pipeline.
type Role string

// Pipeline roles.
const (
	RoleSynthesizer Role = "synthesizer"
	RoleTrainee     Role = "trainee"
	RoleTokenizer   Role = "tokenizer"
)

// Environment variable names read by the pipeline adapter.
const (
	EnvSynthesizerModel   = "SYNTHESIZER_MODEL"
	EnvSynthesizerBaseURL = "SYNTHESIZER_BASE_URL"
	EnvSynthesizerAPIKey  = "SYNTHESIZER_API_KEY"
	EnvTraineeModel       = "TRAINEE_MODEL"
	EnvTraineeBaseURL     = "TRAINEE_BASE_URL"
	EnvTraineeAPIKey      = "TRAINEE_API_KEY"
	EnvTokenizerModel     = "TOKENIZER_MODEL"
)

// Settings holds optional credential overrides for a job. Empty fields mean
// "use the ambient value".
type Settings struct {
	SynthesizerModel   string `json:"synthesizer_model,omitempty"    validate:"omitempty,max=256"`
	SynthesizerBaseURL string `json:"synthesizer_base_url,omitempty" validate:"omitempty,url"`
	SynthesizerAPIKey  string `json:"synthesizer_api_key,omitempty"  validate:"omitempty,max=1024"`
	TraineeModel       string `json:"trainee_model,omitempty"        validate:"omitempty,max=256"`
	TraineeBaseURL     string `json:"trainee_base_url,omitempty"     validate:"omitempty,url"`
	TraineeAPIKey      string `json:"trainee_api_key,omitempty"      validate:"omitempty,max=1024"`
	TokenizerModel     string `json:"tokenizer_model,omitempty"      validate:"omitempty,max=256"`
}

// IsZero reports whether no field is set.
func (s Settings) IsZero() bool {
	return s == Settings{}
}

// EnvVars maps every non-empty field to its environment variable.
func (s Settings) EnvVars() map[string]string {
	pairs := []struct {
		key, value string
	}{
		{EnvSynthesizerModel, s.SynthesizerModel},
		{EnvSynthesizerBaseURL, s.SynthesizerBaseURL},
		{EnvSynthesizerAPIKey, s.SynthesizerAPIKey},
		{EnvTraineeModel, s.TraineeModel},
		{EnvTraineeBaseURL, s.TraineeBaseURL},
		{EnvTraineeAPIKey, s.TraineeAPIKey},
		{EnvTokenizerModel, s.TokenizerModel},
	}

	vars := make(map[string]string, len(pairs))
	for _, p := range pairs {
		if p.value != "" {
			vars[p.key] = p.value
		}
	}
	return vars
}

// Secrets returns the API keys present in s.
func (s Settings) Secrets() []string {
	var secrets []string
	for _, k := range []string{s.SynthesizerAPIKey, s.TraineeAPIKey} {
		if k != "" {
			secrets = append(secrets, k)
		}
	}
	return secrets
}

// FromStore reads the ambient settings from a store.
func FromStore(store Store) Settings {
	get := func(key string) string {
		v, _ := store.Lookup(key)
		return v
	}
	return Settings{
		SynthesizerModel:   get(EnvSynthesizerModel),
		SynthesizerBaseURL: get(EnvSynthesizerBaseURL),
		SynthesizerAPIKey:  get(EnvSynthesizerAPIKey),
		TraineeModel:       get(EnvTraineeModel),
		TraineeBaseURL:     get(EnvTraineeBaseURL),
		TraineeAPIKey:      get(EnvTraineeAPIKey),
		TokenizerModel:     get(EnvTokenizerModel),
	}
}

// Endpoint is the resolved connection info for one role.
type Endpoint struct {
	Model   string
	BaseURL string
	APIKey  string
}

func (s Settings) endpoint(role Role) Endpoint {
	switch role {
	case RoleSynthesizer:
		return Endpoint{Model: s.SynthesizerModel, BaseURL: s.SynthesizerBaseURL, APIKey: s.SynthesizerAPIKey}
	case RoleTrainee:
		return Endpoint{Model: s.TraineeModel, BaseURL: s.TraineeBaseURL, APIKey: s.TraineeAPIKey}
	case RoleTokenizer:
		return Endpoint{Model: s.TokenizerModel}
	default:
		return Endpoint{}
	}
}
