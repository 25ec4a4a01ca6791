// Package config handles configuration loading, parsing, and validation
// from various sources (environment variables, files). It provides type-safe
// access to settings for the HTTP server, the job executor, and the optional
// audit database while keeping configuration details separate from business logic.
package config
