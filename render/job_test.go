package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismvfx/farmhand/farm"
)

func TestTerminalSetMatching(t *testing.T) {
	set := DefaultTerminalSet()

	assert.True(t, set.Contains("completed"))
	assert.True(t, set.Contains("FAILED"), "matching is case-insensitive")
	assert.True(t, set.Contains(" Cancelled "))
	assert.False(t, set.Contains("running"))
	assert.False(t, set.Contains("done"), "outside the default vocabulary")

	custom := NewTerminalSet("done", "error")
	assert.True(t, custom.Contains("Done"))
	assert.False(t, custom.Contains("completed"))
}

func TestNewJobStartsWithSingleHistoryEntry(t *testing.T) {
	now := time.Now()
	job := newJob(
		farm.SubmitResult{JobID: "mock-1", Status: "queued", FarmType: "mock"},
		farm.Request{Farm: "mock", DCC: "maya"},
		now, DefaultTerminalSet())

	assert.Equal(t, "mock-1", job.ID)
	assert.Equal(t, "queued", job.Status)
	require.Len(t, job.History, 1)
	assert.Equal(t, "queued", job.History[0].Status)
	assert.Nil(t, job.CompletedAt, "queued is not terminal")
}

func TestNewJobImmediatelyTerminal(t *testing.T) {
	now := time.Now()
	job := newJob(
		farm.SubmitResult{JobID: "mock-2", Status: "failed"},
		farm.Request{Farm: "mock"},
		now, DefaultTerminalSet())

	require.NotNil(t, job.CompletedAt, "farm rejected at submit time")
	assert.Equal(t, now, *job.CompletedAt)
}

func TestApplyStatusNoOpWhenUnchanged(t *testing.T) {
	now := time.Now()
	job := newJob(farm.SubmitResult{JobID: "j1", Status: "running"}, farm.Request{}, now, DefaultTerminalSet())
	before := job.UpdatedAt

	changed := job.applyStatus("running", "", now.Add(time.Minute), DefaultTerminalSet())

	assert.False(t, changed)
	assert.Equal(t, before, job.UpdatedAt, "no-op must not bump updated_at")
	assert.Len(t, job.History, 1, "no-op must not grow history")
}

func TestApplyStatusMessageOnlyChange(t *testing.T) {
	now := time.Now()
	job := newJob(farm.SubmitResult{JobID: "j1", Status: "running"}, farm.Request{}, now, DefaultTerminalSet())

	changed := job.applyStatus("running", "frame 30/48", now.Add(time.Minute), DefaultTerminalSet())

	assert.True(t, changed, "a new message alone is a change")
	assert.Equal(t, "frame 30/48", job.Message)
	assert.Len(t, job.History, 2)
}

func TestCompletedAtSetOnceAndStable(t *testing.T) {
	set := DefaultTerminalSet()
	now := time.Now()
	job := newJob(farm.SubmitResult{JobID: "j1", Status: "queued"}, farm.Request{}, now, set)

	t1 := now.Add(time.Minute)
	require.True(t, job.applyStatus("completed", "", t1, set))
	require.NotNil(t, job.CompletedAt)
	assert.Equal(t, t1, *job.CompletedAt)

	// A farm re-reporting terminal states later must not move the
	// completion time.
	t2 := now.Add(time.Hour)
	require.True(t, job.applyStatus("failed", "post-render check failed", t2, set))
	assert.Equal(t, t1, *job.CompletedAt, "completed_at is written exactly once")
	assert.Equal(t, "failed", job.Status)
}

func TestHistoryRecordsEveryTransition(t *testing.T) {
	set := DefaultTerminalSet()
	now := time.Now()
	job := newJob(farm.SubmitResult{JobID: "j1", Status: "queued"}, farm.Request{}, now, set)

	job.applyStatus("running", "", now.Add(1*time.Minute), set)
	job.applyStatus("running", "", now.Add(2*time.Minute), set) // no-op
	job.applyStatus("completed", "all frames rendered", now.Add(3*time.Minute), set)

	require.Len(t, job.History, 3)
	assert.Equal(t, "queued", job.History[0].Status)
	assert.Equal(t, "running", job.History[1].Status)
	assert.Equal(t, "completed", job.History[2].Status)
	assert.Equal(t, "all frames rendered", job.History[2].Message)
}

func TestCloneIsDeep(t *testing.T) {
	set := DefaultTerminalSet()
	now := time.Now()
	prio := 50
	chunk := 10
	job := newJob(
		farm.SubmitResult{JobID: "j1", Status: "completed"},
		farm.Request{Farm: "mock", Priority: &prio, ChunkSize: &chunk},
		now, set)

	dup := job.clone()
	*dup.Request.Priority = 99
	*dup.CompletedAt = now.Add(time.Hour)
	dup.History[0].Status = "mutated"

	assert.Equal(t, 50, *job.Request.Priority)
	assert.Equal(t, now, *job.CompletedAt)
	assert.Equal(t, "completed", job.History[0].Status)
}
