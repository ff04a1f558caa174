package render

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prismvfx/farmhand/errors"
	"github.com/prismvfx/farmhand/farm"
	"github.com/prismvfx/farmhand/stream"
)

// Poller scenarios for the Ripley & HAL universe: the refresh loop drives
// jobs through the statuses the farm reports. pollOnce is exercised
// directly so each assertion runs against exactly one tick.

// TestPollerRefreshesActiveJobs tests a scripted queued -> running -> completed run
func TestPollerRefreshesActiveJobs(t *testing.T) {
	t.Log("🛠 Ripley watches the poller chase a job across the farm...")

	rig := newWranglerRig(t, DefaultConfig())
	ctx := context.Background()

	job, err := rig.orch.Submit(ctx, wranglerRequest())
	if err != nil {
		t.Fatalf("Submission failed: %v", err)
	}

	rig.mock.SetStatus(job.ID, "running", "frame 1012/1048")
	rig.orch.pollOnce(ctx, time.Now())

	refreshed, _ := rig.orch.Get(job.ID)
	if refreshed.Status != "running" || refreshed.Message != "frame 1012/1048" {
		t.Fatalf("Poll did not apply the farm's status: %+v", refreshed)
	}
	if len(refreshed.History) != 2 {
		t.Errorf("Expected 2 history entries, got %d", len(refreshed.History))
	}

	// Re-polling the same answer is a no-op.
	rig.orch.pollOnce(ctx, time.Now())
	again, _ := rig.orch.Get(job.ID)
	if len(again.History) != 2 {
		t.Errorf("Idempotent re-poll inflated history to %d", len(again.History))
	}

	rig.mock.SetStatus(job.ID, "completed", "")
	rig.orch.pollOnce(ctx, time.Now())

	done, _ := rig.orch.Get(job.ID)
	if done.Status != "completed" {
		t.Fatalf("Expected completed, got %s", done.Status)
	}
	if done.CompletedAt == nil {
		t.Fatal("Terminal status must set completed_at")
	}
	completedAt := *done.CompletedAt

	// Terminal jobs are no longer polled; nothing can move.
	rig.mock.SetStatus(job.ID, "running", "zombie")
	rig.orch.pollOnce(ctx, time.Now())
	final, _ := rig.orch.Get(job.ID)
	if final.Status != "completed" {
		t.Error("A terminal job must not be re-polled")
	}
	if !final.CompletedAt.Equal(completedAt) {
		t.Error("completed_at moved on a terminal job")
	}

	t.Log("✓ The poller walked the job to completion and then left it alone")
}

// TestPollerFailureIsolation tests that HAL's outage cannot stall other farms
func TestPollerFailureIsolation(t *testing.T) {
	t.Log("🔴 HAL stops answering status calls mid-show...")

	mock := farm.NewMockFarm()
	registry := farm.NewRegistry()
	if err := registry.Register(mock.Adapter()); err != nil {
		t.Fatalf("Failed to register mock: %v", err)
	}
	if err := registry.Register(farm.Adapter{
		Name: "hal",
		Submit: func(ctx context.Context, req farm.Request) (farm.SubmitResult, error) {
			return farm.SubmitResult{JobID: "hal-1", Status: "queued", FarmType: "hal"}, nil
		},
		GetJobStatus: func(ctx context.Context, jobID string) (farm.StatusResult, error) {
			return farm.StatusResult{}, errors.New("I'm afraid I can't do that")
		},
	}); err != nil {
		t.Fatalf("Failed to register HAL: %v", err)
	}

	store := NewStore(filepath.Join(t.TempDir(), "jobs.json"), time.Hour, nil)
	orch := New(registry, store, stream.NewHub(8, nil), DefaultConfig(), nil)
	ctx := context.Background()

	halReq := wranglerRequest()
	halReq.Farm = "hal"
	halJob, err := orch.Submit(ctx, halReq)
	if err != nil {
		t.Fatalf("HAL submission failed: %v", err)
	}
	mockJob, err := orch.Submit(ctx, wranglerRequest())
	if err != nil {
		t.Fatalf("Mock submission failed: %v", err)
	}

	mock.SetStatus(mockJob.ID, "running", "")
	orch.pollOnce(ctx, time.Now())

	// The healthy farm's job moved despite HAL's failure.
	refreshed, _ := orch.Get(mockJob.ID)
	if refreshed.Status != "running" {
		t.Errorf("Healthy farm's job was not refreshed: %s", refreshed.Status)
	}
	// HAL's job is untouched, not corrupted, and still eligible next tick.
	stuck, _ := orch.Get(halJob.ID)
	if stuck.Status != "queued" || len(stuck.History) != 1 {
		t.Errorf("Failed lookup must leave the job unchanged: %+v", stuck)
	}

	t.Log("✓ One farm down, the other still refreshed")
}

// TestPollerSkipsFarmsWithoutStatusLookup tests the capability gate
func TestPollerSkipsFarmsWithoutStatusLookup(t *testing.T) {
	registry := farm.NewRegistry()
	if err := registry.Register(farm.Adapter{
		Name: "fireandforget",
		Submit: func(ctx context.Context, req farm.Request) (farm.SubmitResult, error) {
			return farm.SubmitResult{JobID: "ff-1", Status: "queued"}, nil
		},
	}); err != nil {
		t.Fatalf("Failed to register: %v", err)
	}
	orch := New(registry, NewStore(filepath.Join(t.TempDir(), "jobs.json"), time.Hour, nil), nil, DefaultConfig(), nil)

	req := wranglerRequest()
	req.Farm = "fireandforget"
	job, err := orch.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submission failed: %v", err)
	}

	orch.pollOnce(context.Background(), time.Now())

	after, _ := orch.Get(job.ID)
	if after.Status != "queued" || len(after.History) != 1 {
		t.Errorf("A farm without status lookup must be skipped, got %+v", after)
	}
}

// TestPollerStartStopLifecycle tests idempotent start/stop and the shutdown flush
func TestPollerStartStopLifecycle(t *testing.T) {
	t.Log("⏳ Kronos starts and stops the clockwork...")

	cfg := DefaultConfig()
	cfg.PollInterval = 10 * time.Millisecond
	rig := newWranglerRig(t, cfg)

	if _, err := rig.orch.Submit(context.Background(), wranglerRequest()); err != nil {
		t.Fatalf("Submission failed: %v", err)
	}

	rig.orch.StartBackgroundPolling()
	rig.orch.StartBackgroundPolling() // second start is a no-op

	time.Sleep(30 * time.Millisecond)

	before := rig.store.Stats().LastSaveAt
	rig.orch.StopBackgroundPolling()
	after := rig.store.Stats().LastSaveAt
	if after == nil {
		t.Fatal("Stop must flush the table to the store")
	}
	if before != nil && !after.After(*before) && !after.Equal(*before) {
		t.Error("Shutdown flush did not persist")
	}

	// Stopping again must not hang or panic.
	rig.orch.StopBackgroundPolling()

	t.Log("✓ Clockwork wound down cleanly, table flushed")
}

// TestPollerPublishesUpdates tests that refresh changes reach subscribers
func TestPollerPublishesUpdates(t *testing.T) {
	rig := newWranglerRig(t, DefaultConfig())
	ctx := context.Background()

	job, err := rig.orch.Submit(ctx, wranglerRequest())
	if err != nil {
		t.Fatalf("Submission failed: %v", err)
	}

	sub := rig.hub.Subscribe()
	defer rig.hub.Unsubscribe(sub)
	<-sub.C() // drain the snapshot baseline

	rig.mock.SetStatus(job.ID, "running", "")
	rig.orch.pollOnce(ctx, time.Now())

	select {
	case ev := <-sub.C():
		event := ev.(Event)
		if event.Event != stream.EventJobUpdated {
			t.Fatalf("Expected job.updated, got %s", event.Event)
		}
		if event.Job == nil || event.Job.Status != "running" {
			t.Errorf("Update event payload wrong: %+v", event.Job)
		}
	case <-time.After(time.Second):
		t.Fatal("No update event published")
	}

	// An idempotent re-poll publishes nothing.
	rig.orch.pollOnce(ctx, time.Now())
	select {
	case ev := <-sub.C():
		t.Fatalf("Unexpected event after no-op poll: %+v", ev)
	default:
	}
}
