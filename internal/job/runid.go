package job

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/phrazzld/graphgen-api/internal/pipeline"
)

// maxRunDirAttempts bounds how many ids are tried when run directories from
// earlier processes already occupy the next ones.
const maxRunDirAttempts = 100

// RunIDAllocator hands out time-derived run ids: the current Unix second, or
// one more than the previous id when that second was already used.
type RunIDAllocator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewRunIDAllocator creates an allocator reading the time from now.
func NewRunIDAllocator(now func() time.Time) *RunIDAllocator {
	return &RunIDAllocator{now: now}
}

// Next returns a run id greater than every id returned before.
func (a *RunIDAllocator) Next() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.now().Unix()
	if id <= a.last {
		id = a.last + 1
	}
	a.last = id
	return id
}

// CreateRunDir allocates a run id and creates its directory under parent.
// Ids whose directory already exists on disk are skipped.
func (a *RunIDAllocator) CreateRunDir(parent string) (runID, runDir string, err error) {
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create %s: %w", parent, err)
	}

	for attempt := 0; attempt < maxRunDirAttempts; attempt++ {
		runID = pipeline.FormatRunID(a.Next())
		runDir = filepath.Join(parent, runID)

		err := os.Mkdir(runDir, 0o755)
		if err == nil {
			return runID, runDir, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", "", fmt.Errorf("failed to create run directory: %w", err)
		}
	}
	return "", "", fmt.Errorf("no free run directory under %s after %d attempts", parent, maxRunDirAttempts)
}
