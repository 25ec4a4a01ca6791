package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/graphgen-api/internal/api/shared"
	"github.com/phrazzld/graphgen-api/internal/catalog"
	"github.com/phrazzld/graphgen-api/internal/credential"
	"github.com/phrazzld/graphgen-api/internal/redact"
)

// ConfigListResponse is the body of GET /api/configs.
type ConfigListResponse struct {
	Configs []catalog.Preset `json:"configs"`
	Default string           `json:"default,omitempty"`
}

// InputSampleList is the body of GET /api/resources/inputs.
type InputSampleList struct {
	Inputs []catalog.InputSample `json:"inputs"`
}

// LLMSettingsResponse is the body of GET /api/settings/llm.
type LLMSettingsResponse struct {
	Defaults credential.Settings `json:"defaults"`
}

// CatalogHandler serves presets, input samples and the ambient LLM settings.
type CatalogHandler struct {
	catalog catalog.Catalog
	store   credential.Store
}

// NewCatalogHandler creates a CatalogHandler. store supplies the ambient
// credential defaults.
func NewCatalogHandler(c catalog.Catalog, store credential.Store) *CatalogHandler {
	return &CatalogHandler{catalog: c, store: store}
}

// ListConfigs handles GET /api/configs.
func (h *CatalogHandler) ListConfigs(w http.ResponseWriter, r *http.Request) {
	presets, def, err := h.catalog.Presets()
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, ConfigListResponse{Configs: presets, Default: def})
}

// GetConfig handles GET /api/configs/{id}.
func (h *CatalogHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	detail, err := h.catalog.Preset(chi.URLParam(r, "id"))
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, detail)
}

// ListInputs handles GET /api/resources/inputs.
func (h *CatalogHandler) ListInputs(w http.ResponseWriter, r *http.Request) {
	inputs, err := h.catalog.Inputs()
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, InputSampleList{Inputs: inputs})
}

// GetLLMSettings handles GET /api/settings/llm. API keys are masked.
func (h *CatalogHandler) GetLLMSettings(w http.ResponseWriter, r *http.Request) {
	defaults := credential.FromStore(h.store)
	defaults.SynthesizerAPIKey = redact.Mask(defaults.SynthesizerAPIKey)
	defaults.TraineeAPIKey = redact.Mask(defaults.TraineeAPIKey)
	shared.RespondWithJSON(w, r, http.StatusOK, LLMSettingsResponse{Defaults: defaults})
}

// Health handles GET /api/health.
func Health(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
