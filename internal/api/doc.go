// Package api exposes the job orchestrator over HTTP: job submission and
// queries, artifact downloads, preset and input discovery, and the ambient LLM
// settings. Handlers translate HTTP concerns to job.Manager operations and map
// errors to status codes without leaking internal detail.
package api
