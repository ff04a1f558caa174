package farm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submitStub(ctx context.Context, req Request) (SubmitResult, error) {
	return SubmitResult{JobID: "stub-1", Status: "queued"}, nil
}

func statusStub(ctx context.Context, jobID string) (StatusResult, error) {
	return StatusResult{Status: "running"}, nil
}

func TestRegisterNormalizesNameAndDerivesFeatures(t *testing.T) {
	r := NewRegistry()

	err := r.Register(Adapter{
		Name:         "  Tractor ",
		Submit:       submitStub,
		GetJobStatus: statusStub,
	})
	require.NoError(t, err)

	a, ok := r.Get("tractor")
	require.True(t, ok, "lookup should be case-normalized")
	assert.Equal(t, "tractor", a.Name)
	assert.True(t, a.Supports.StatusLookup)
	assert.False(t, a.Supports.Cancellation, "no cancel func wired")

	// Lookup is case-insensitive both ways.
	_, ok = r.Get("TRACTOR")
	assert.True(t, ok)
}

func TestRegisterRejectsInvalidAdapters(t *testing.T) {
	r := NewRegistry()

	err := r.Register(Adapter{Name: "", Submit: submitStub})
	assert.Error(t, err, "empty name")

	err = r.Register(Adapter{Name: "deadline"})
	assert.Error(t, err, "missing submit function")

	assert.Empty(t, r.Names())
}

func TestCapabilitySnapshotIncludesEveryFarm(t *testing.T) {
	r := NewRegistry()

	caps := MockCapabilities()
	require.NoError(t, r.Register(Adapter{
		Name:         "mock",
		Submit:       submitStub,
		Capabilities: &caps,
	}))
	require.NoError(t, r.Register(Adapter{
		Name:   "legacy",
		Submit: submitStub,
	}))

	snap := r.CapabilitySnapshot()
	require.Len(t, snap, 2)

	require.NotNil(t, snap["mock"])
	assert.Equal(t, 50, snap["mock"].Priority.Default)

	// Registered without metadata: present, but nil.
	val, ok := snap["legacy"]
	assert.True(t, ok)
	assert.Nil(t, val)
}

func TestCapabilityProviderPreferredOverStatic(t *testing.T) {
	r := NewRegistry()

	static := Capabilities{Priority: PriorityCaps{Default: 10, Min: 1, Max: 20}}
	live := Capabilities{Priority: PriorityCaps{Default: 77, Min: 1, Max: 100}}

	require.NoError(t, r.Register(Adapter{
		Name:               "hybrid",
		Submit:             submitStub,
		Capabilities:       &static,
		CapabilityProvider: func() Capabilities { return live },
	}))

	snap := r.CapabilitySnapshot()
	require.NotNil(t, snap["hybrid"])
	assert.Equal(t, 77, snap["hybrid"].Priority.Default, "provider wins over static value")
}

func TestReRegisterClearsStaleCapabilities(t *testing.T) {
	r := NewRegistry()

	caps := MockCapabilities()
	require.NoError(t, r.Register(Adapter{
		Name:         "mock",
		Submit:       submitStub,
		Capabilities: &caps,
	}))
	require.NotNil(t, r.CapabilitySnapshot()["mock"])

	// Replacement carries no capability info; the old metadata must not
	// survive the upsert.
	require.NoError(t, r.Register(Adapter{
		Name:   "mock",
		Submit: submitStub,
	}))
	assert.Nil(t, r.CapabilitySnapshot()["mock"])
}

func TestRemoveDropsAdapter(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Adapter{Name: "mock", Submit: submitStub}))

	r.Remove("MOCK")
	_, ok := r.Get("mock")
	assert.False(t, ok)
	assert.Empty(t, r.CapabilitySnapshot())
}

func TestNamesSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"tractor", "deadline", "mock"} {
		require.NoError(t, r.Register(Adapter{Name: name, Submit: submitStub}))
	}
	assert.Equal(t, []string{"deadline", "mock", "tractor"}, r.Names())
}

func TestMockFarmLifecycle(t *testing.T) {
	m := NewMockFarm()
	a := m.Adapter()
	ctx := context.Background()

	res, err := a.Submit(ctx, Request{Farm: "mock", DCC: "blender"})
	require.NoError(t, err)
	assert.Contains(t, res.JobID, "mock-")
	assert.Equal(t, "queued", res.Status)

	m.SetStatus(res.JobID, "running", "frame 12/48")
	status, err := a.GetJobStatus(ctx, res.JobID)
	require.NoError(t, err)
	assert.Equal(t, "running", status.Status)
	assert.Equal(t, "frame 12/48", status.Message)

	cancel, err := a.CancelJob(ctx, res.JobID)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", cancel.Status)

	_, err = a.GetJobStatus(ctx, "mock-unknown")
	assert.Error(t, err)
}
