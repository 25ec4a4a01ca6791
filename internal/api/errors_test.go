package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/phrazzld/graphgen-api/internal/catalog"
	"github.com/phrazzld/graphgen-api/internal/job"
	"github.com/phrazzld/graphgen-api/internal/service/auth"
	"github.com/stretchr/testify/assert"
)

func TestMapErrorToStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"expired token", auth.ErrExpiredToken, http.StatusUnauthorized},
		{"config not found", fmt.Errorf("%w: /x.yaml", job.ErrConfigNotFound), http.StatusNotFound},
		{"job not found", fmt.Errorf("%w: abc", job.ErrNotFound), http.StatusNotFound},
		{"preset not found", catalog.ErrPresetNotFound, http.StatusNotFound},
		{"validation", fmt.Errorf("%w: output_dir", job.ErrValidation), http.StatusBadRequest},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MapErrorToStatusCode(tt.err))
		})
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(nil))
	assert.Equal(t, "Config file not found", GetSafeErrorMessage(job.ErrConfigNotFound))
	assert.Equal(t, "Job not found", GetSafeErrorMessage(fmt.Errorf("%w: id", job.ErrNotFound)))
	assert.Equal(t, "Invalid job request", GetSafeErrorMessage(fmt.Errorf("%w: cannot create /root/x", job.ErrValidation)))
	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(errors.New("open /etc/secret: permission denied")))
}
