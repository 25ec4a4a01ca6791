package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Jobs     JobsConfig     `mapstructure:"jobs"     validate:"required"`
	Paths    PathsConfig    `mapstructure:"paths"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`

	// CORSAllowedOrigins lists origins allowed to call the API. "*" allows any.
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`

	// StaticDir, when set, is served at "/" (the built single-page UI).
	StaticDir string `mapstructure:"static_dir"`

	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds" validate:"gte=1"`
}

// JobsConfig controls the background execution of pipeline jobs.
type JobsConfig struct {
	// WorkerCount is the number of pipeline executions that may run at once.
	WorkerCount int `mapstructure:"worker_count" validate:"gte=1,lte=64"`

	// QueueSize bounds the number of executions waiting for a free worker.
	QueueSize int `mapstructure:"queue_size" validate:"gte=1"`

	// PipelineName names the run directory segment: <output>/data/<pipeline_name>/<run_id>.
	PipelineName string `mapstructure:"pipeline_name" validate:"required,alphanumunicode"`

	// CredentialMode selects how per-job LLM credentials reach the pipeline:
	// "env" patches the process environment under a global lock,
	// "context" passes them explicitly with no lock.
	CredentialMode string `mapstructure:"credential_mode" validate:"required,oneof=env context"`
}

// PathsConfig locates the bundled presets and input samples.
type PathsConfig struct {
	ConfigRoot    string `mapstructure:"config_root"`
	ResourcesRoot string `mapstructure:"resources_root"`
}

// DatabaseConfig contains database settings for the optional job-event audit store.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// AuthConfig contains bearer-token settings. Auth is disabled when JWTSecret is empty.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret"             validate:"omitempty,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"gte=1"`
}

// AuthEnabled reports whether API requests must carry a bearer token.
func (c AuthConfig) AuthEnabled() bool {
	return c.JWTSecret != ""
}

// AuditEnabled reports whether job events are recorded in the database.
func (c DatabaseConfig) AuditEnabled() bool {
	return c.URL != ""
}
