package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobEvent(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	event := NewJobEvent("job-1", "failed", at)
	event.Cause = "pipeline"
	event.Message = "generate step failed"

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, at, event.OccurredAt)

	data, err := json.Marshal(event)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"cause":"pipeline"`)
	assert.NotContains(t, string(data), "run_id")

	other := NewJobEvent("job-1", "failed", at)
	assert.NotEqual(t, event.ID, other.ID)
}
