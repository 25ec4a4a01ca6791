package api

import "github.com/go-chi/chi/v5"

// RegisterRoutes mounts the job and catalog endpoints on r, which is expected
// to be the /api sub-router. The events endpoint is only registered when the
// handler has an event lister.
func RegisterRoutes(r chi.Router, jobs *JobHandler, catalog *CatalogHandler) {
	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", jobs.CreateJob)
		r.Get("/", jobs.ListJobs)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", jobs.GetJob)
			r.Get("/logs", jobs.GetJobLogs)
			r.Get("/artifacts", jobs.GetJobArtifacts)
			r.Get("/artifacts/download", jobs.DownloadArtifact)
			if jobs.events != nil {
				r.Get("/events", jobs.ListJobEvents)
			}
		})
	})

	r.Get("/configs", catalog.ListConfigs)
	r.Get("/configs/{id}", catalog.GetConfig)
	r.Get("/resources/inputs", catalog.ListInputs)
	r.Get("/settings/llm", catalog.GetLLMSettings)
}
