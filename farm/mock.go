package farm

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/prismvfx/farmhand/errors"
)

// MockFarm is an in-memory farm backend. The daemon registers it for smoke
// testing without a real scheduler, and the end-to-end tests script its
// reported statuses through SetStatus.
type MockFarm struct {
	mu   sync.Mutex
	jobs map[string]StatusResult
}

// NewMockFarm creates an empty mock farm.
func NewMockFarm() *MockFarm {
	return &MockFarm{
		jobs: make(map[string]StatusResult),
	}
}

// MockCapabilities are the declared bounds of the mock farm.
func MockCapabilities() Capabilities {
	return Capabilities{
		Priority: PriorityCaps{Default: 50, Min: 1, Max: 100},
		Chunking: ChunkingCaps{Enabled: true, Min: 1, Max: 100, Default: 10},
		Cancellation: CancellationCaps{
			Supported: true,
		},
	}
}

// Adapter returns the fully wired adapter for farm "mock".
func (m *MockFarm) Adapter() Adapter {
	caps := MockCapabilities()
	return Adapter{
		Name:         "mock",
		Submit:       m.submit,
		GetJobStatus: m.getJobStatus,
		CancelJob:    m.cancelJob,
		Capabilities: &caps,
	}
}

func (m *MockFarm) submit(ctx context.Context, req Request) (SubmitResult, error) {
	jobID := "mock-" + strings.Split(uuid.NewString(), "-")[0]

	m.mu.Lock()
	m.jobs[jobID] = StatusResult{Status: "queued"}
	m.mu.Unlock()

	return SubmitResult{JobID: jobID, Status: "queued", FarmType: "mock"}, nil
}

func (m *MockFarm) getJobStatus(ctx context.Context, jobID string) (StatusResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	res, ok := m.jobs[jobID]
	if !ok {
		return StatusResult{}, errors.Wrapf(errors.ErrNotFound, "mock job %s", jobID)
	}
	return res, nil
}

func (m *MockFarm) cancelJob(ctx context.Context, jobID string) (CancelResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[jobID]; !ok {
		return CancelResult{}, errors.Wrapf(errors.ErrNotFound, "mock job %s", jobID)
	}
	m.jobs[jobID] = StatusResult{Status: "cancelled"}
	return CancelResult{Status: "cancelled"}, nil
}

// SetStatus scripts the status the mock farm reports for a job.
func (m *MockFarm) SetStatus(jobID, status, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[jobID] = StatusResult{Status: status, Message: message}
}
