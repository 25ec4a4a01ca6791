package credential

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettings_EnvVarsSkipsEmptyFields(t *testing.T) {
	s := Settings{
		SynthesizerModel:  "gpt-4o-mini",
		SynthesizerAPIKey: "",
		TraineeBaseURL:    "http://localhost:8000/v1",
		TokenizerModel:    "cl100k_base",
	}

	assert.Equal(t, map[string]string{
		EnvSynthesizerModel: "gpt-4o-mini",
		EnvTraineeBaseURL:   "http://localhost:8000/v1",
		EnvTokenizerModel:   "cl100k_base",
	}, s.EnvVars())
	assert.Empty(t, Settings{}.EnvVars())
	assert.True(t, Settings{}.IsZero())
}

func TestEnvGuard_PatchesAndRestores(t *testing.T) {
	store := NewMapStore(map[string]string{
		EnvSynthesizerModel: "ambient-model",
		EnvTraineeModel:     "ambient-trainee",
	})
	guard := NewEnvGuard(store)

	var seen map[string]string
	err := guard.Run(context.Background(), Settings{
		SynthesizerModel:  "job-model",
		SynthesizerAPIKey: "job-key",
	}, func(ctx context.Context) error {
		seen = store.Snapshot()
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "job-model", seen[EnvSynthesizerModel])
	assert.Equal(t, "job-key", seen[EnvSynthesizerAPIKey])
	assert.Equal(t, "ambient-trainee", seen[EnvTraineeModel], "absent overrides leave ambient values alone")

	after := store.Snapshot()
	assert.Equal(t, "ambient-model", after[EnvSynthesizerModel])
	_, present := after[EnvSynthesizerAPIKey]
	assert.False(t, present, "keys that were absent before must be removed again")
}

func TestEnvGuard_RestoresOnFailure(t *testing.T) {
	store := NewMapStore(nil)
	guard := NewEnvGuard(store)
	pipelineErr := errors.New("generate step failed")

	err := guard.Run(context.Background(), Settings{TraineeAPIKey: "secret"}, func(ctx context.Context) error {
		return pipelineErr
	})

	assert.ErrorIs(t, err, pipelineErr)
	assert.Empty(t, store.Snapshot())
}

func TestEnvGuard_RestoresOnPanic(t *testing.T) {
	store := NewMapStore(map[string]string{EnvTraineeModel: "before"})
	guard := NewEnvGuard(store)

	assert.Panics(t, func() {
		_ = guard.Run(context.Background(), Settings{TraineeModel: "during"}, func(ctx context.Context) error {
			panic("boom")
		})
	})

	assert.Equal(t, map[string]string{EnvTraineeModel: "before"}, store.Snapshot())

	// the lock must have been released
	err := guard.Run(context.Background(), Settings{}, func(ctx context.Context) error { return nil })
	assert.NoError(t, err)
}

// TestEnvGuard_ConcurrentJobsNeverObserveEachOther runs many overlapping calls
// with distinct credentials and checks each one only ever sees its own values.
func TestEnvGuard_ConcurrentJobsNeverObserveEachOther(t *testing.T) {
	store := NewMapStore(nil)
	guard := NewEnvGuard(store)

	const jobs = 8
	var wg sync.WaitGroup
	violations := make(chan string, jobs*2)

	for i := 0; i < jobs; i++ {
		model := string(rune('a'+i)) + "-model"
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := guard.Run(context.Background(), Settings{SynthesizerModel: model}, func(ctx context.Context) error {
				first := Resolve(ctx, store, RoleSynthesizer).Model
				time.Sleep(5 * time.Millisecond)
				second := Resolve(ctx, store, RoleSynthesizer).Model
				if first != model || second != model {
					violations <- model + " saw " + first + "/" + second
				}
				return nil
			})
			assert.NoError(t, err)
		}()
	}

	wg.Wait()
	close(violations)
	for v := range violations {
		t.Errorf("credential leak: %s", v)
	}
	assert.Empty(t, store.Snapshot())
}

func TestContextScope_DoesNotTouchStore(t *testing.T) {
	store := NewMapStore(map[string]string{
		EnvSynthesizerModel:   "ambient-model",
		EnvSynthesizerBaseURL: "http://ambient/v1",
	})

	var ep Endpoint
	err := ContextScope{}.Run(context.Background(), Settings{SynthesizerModel: "job-model"}, func(ctx context.Context) error {
		ep = Resolve(ctx, store, RoleSynthesizer)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, Endpoint{Model: "job-model", BaseURL: "http://ambient/v1"}, ep)
	assert.Equal(t, "ambient-model", store.Snapshot()[EnvSynthesizerModel])
}

func TestResolve_WithoutOverrides(t *testing.T) {
	store := NewMapStore(map[string]string{
		EnvTraineeModel:   "t",
		EnvTraineeAPIKey:  "k",
		EnvTokenizerModel: "cl100k_base",
	})

	assert.Equal(t, Endpoint{Model: "t", APIKey: "k"}, Resolve(context.Background(), store, RoleTrainee))
	assert.Equal(t, Endpoint{Model: "cl100k_base"}, Resolve(context.Background(), store, RoleTokenizer))
}
