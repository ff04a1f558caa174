package render

import (
	"context"
	"fmt"
	"time"

	"github.com/prismvfx/farmhand/stream"
)

// StartBackgroundPolling launches the status-refresh loop. Calling it
// while the loop is already running is a no-op.
func (o *Orchestrator) StartBackgroundPolling() {
	o.pollMu.Lock()
	defer o.pollMu.Unlock()

	if o.pollCancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	o.pollCancel = cancel
	o.pollDone = done

	go o.pollLoop(ctx, done)
	o.logger.Infow("Status poller started", "interval", o.pollInterval)
}

// StopBackgroundPolling cooperatively signals the loop, waits for it to
// actually exit, and flushes the table to the store. Safe to call when the
// poller is not running and safe to call repeatedly.
func (o *Orchestrator) StopBackgroundPolling() {
	o.pollMu.Lock()
	cancel := o.pollCancel
	done := o.pollDone
	o.pollCancel = nil
	o.pollDone = nil
	o.pollMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	// Shutdown flush bypasses the persist throttle.
	o.persist(o.Snapshot())
	o.logger.Infow("Status poller stopped")
}

// pollLoop is the long-lived refresh loop.
func (o *Orchestrator) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			o.pollOnce(ctx, now)
		}
	}
}

// pollTarget is one job due for a status refresh.
type pollTarget struct {
	jobID string
	farm  string
}

// pollOnce refreshes every non-terminal job whose adapter exposes status
// lookup. A single adapter failure is recorded and does not abort the
// rest of the tick; the next tick naturally retries.
func (o *Orchestrator) pollOnce(ctx context.Context, now time.Time) {
	// Copy the refresh targets out and release the lock before any
	// adapter network call.
	o.mu.Lock()
	targets := make([]pollTarget, 0, len(o.order))
	for _, id := range o.order {
		job, ok := o.jobs[id]
		if !ok {
			continue
		}
		if job.terminal(o.terminal) {
			continue
		}
		targets = append(targets, pollTarget{jobID: id, farm: job.Farm})
	}
	o.mu.Unlock()

	refreshed := 0
	failures := 0
	for _, target := range targets {
		select {
		case <-ctx.Done():
			return
		default:
		}

		adapter, ok := o.registry.Get(target.farm)
		if !ok || !adapter.Supports.StatusLookup {
			continue
		}

		res, err := adapter.GetJobStatus(ctx, target.jobID)
		if err != nil {
			failures++
			o.logger.Warnw("Status refresh failed",
				"job_id", target.jobID,
				"farm", target.farm,
				"error", err)
			continue
		}

		o.mu.Lock()
		job, present := o.jobs[target.jobID]
		var updated *Job
		if present && job.applyStatus(res.Status, res.Message, time.Now(), o.terminal) {
			updated = job.clone()
			refreshed++
		}
		o.mu.Unlock()

		if updated != nil {
			o.publish(stream.EventJobUpdated, updated)
		}
	}

	o.logPollActivity(len(targets), refreshed, failures)

	// At most one poller-driven persist per StorePersistInterval; the
	// shutdown flush in StopBackgroundPolling bypasses this.
	if o.persistLimiter.Allow() {
		o.persist(o.Snapshot())
	}
}

// logPollActivity emits one telemetry line per tick, but only when the
// active-job count changed since the last line, so an idle farm does not
// fill the log.
func (o *Orchestrator) logPollActivity(active, refreshed, failures int) {
	o.mu.Lock()
	changed := active != o.lastActivePolled
	o.lastActivePolled = active
	o.mu.Unlock()

	if !changed && failures == 0 {
		return
	}

	metrics := getSystemMetrics()
	o.logger.Infow(fmt.Sprintf("Poll tick - %d active jobs", active),
		"refreshed", refreshed,
		"failures", failures,
		"mem", fmt.Sprintf("%.1f/%.1fGB (%.0f%%)",
			metrics.MemoryUsedGB, metrics.MemoryTotalGB, metrics.MemoryPercent),
		"goroutines", metrics.Goroutines)
}
