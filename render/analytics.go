package render

import (
	"strings"
	"time"
)

// StatusDurations aggregates creation-to-completion time for finished jobs
// in one status bucket.
type StatusDurations struct {
	TotalSeconds   float64 `json:"total_seconds"`
	AverageSeconds float64 `json:"average_seconds"`
}

// StatusAnalytics is the per-status slice of the projection.
type StatusAnalytics struct {
	Count       int             `json:"count"`
	ActiveCount int             `json:"active_count"`
	Durations   StatusDurations `json:"durations"`
}

// AdapterAnalytics is the per-farm slice of the projection.
type AdapterAnalytics struct {
	TotalJobs                int            `json:"total_jobs"`
	StatusCounts             map[string]int `json:"status_counts"`
	CompletedJobs            int            `json:"completed_jobs"`
	AverageCompletionSeconds float64        `json:"average_completion_seconds"`
}

// WindowAnalytics is the per-submission-age slice of the projection.
type WindowAnalytics struct {
	TotalJobs                int     `json:"total_jobs"`
	CompletedJobs            int     `json:"completed_jobs"`
	AverageCompletionSeconds float64 `json:"average_completion_seconds"`
}

// AnalyticsSnapshot is a pure read-side projection over the job table,
// computed on demand and never persisted.
type AnalyticsSnapshot struct {
	TotalJobs int                         `json:"total_jobs"`
	ByStatus  map[string]StatusAnalytics  `json:"by_status"`
	ByAdapter map[string]AdapterAnalytics `json:"by_adapter"`
	ByWindow  map[string]WindowAnalytics  `json:"by_submission_age"`
}

var analyticsWindows = []struct {
	label string
	span  time.Duration
}{
	{"1h", time.Hour},
	{"6h", 6 * time.Hour},
	{"24h", 24 * time.Hour},
	{"7d", 7 * 24 * time.Hour},
}

// Analytics computes the projection against now. The table lock is held
// only for the copy-out; the arithmetic runs on the copy.
func (o *Orchestrator) Analytics(now time.Time) AnalyticsSnapshot {
	table := o.Snapshot()

	snap := AnalyticsSnapshot{
		TotalJobs: len(table),
		ByStatus:  make(map[string]StatusAnalytics),
		ByAdapter: make(map[string]AdapterAnalytics),
		ByWindow:  make(map[string]WindowAnalytics, len(analyticsWindows)),
	}

	type windowAccum struct {
		total          int
		completed      int
		totalCompleted float64
	}
	windows := make([]windowAccum, len(analyticsWindows))

	for _, job := range table {
		status := strings.ToLower(job.Status)

		var completionSeconds float64
		completed := job.CompletedAt != nil
		if completed {
			completionSeconds = job.CompletedAt.Sub(job.CreatedAt).Seconds()
		}

		st := snap.ByStatus[status]
		st.Count++
		if !completed {
			st.ActiveCount++
		} else {
			st.Durations.TotalSeconds += completionSeconds
		}
		snap.ByStatus[status] = st

		ad, ok := snap.ByAdapter[job.Farm]
		if !ok {
			ad.StatusCounts = make(map[string]int)
		}
		ad.TotalJobs++
		ad.StatusCounts[status]++
		if completed {
			ad.CompletedJobs++
			ad.AverageCompletionSeconds += completionSeconds // running total, averaged below
		}
		snap.ByAdapter[job.Farm] = ad

		age := now.Sub(job.CreatedAt)
		for i, w := range analyticsWindows {
			if age > w.span {
				continue
			}
			windows[i].total++
			if completed {
				windows[i].completed++
				windows[i].totalCompleted += completionSeconds
			}
		}
	}

	for status, st := range snap.ByStatus {
		finished := st.Count - st.ActiveCount
		if finished > 0 {
			st.Durations.AverageSeconds = st.Durations.TotalSeconds / float64(finished)
			snap.ByStatus[status] = st
		}
	}
	for name, ad := range snap.ByAdapter {
		if ad.CompletedJobs > 0 {
			ad.AverageCompletionSeconds /= float64(ad.CompletedJobs)
			snap.ByAdapter[name] = ad
		}
	}
	for i, w := range analyticsWindows {
		entry := WindowAnalytics{
			TotalJobs:     windows[i].total,
			CompletedJobs: windows[i].completed,
		}
		if windows[i].completed > 0 {
			entry.AverageCompletionSeconds = windows[i].totalCompleted / float64(windows[i].completed)
		}
		snap.ByWindow[w.label] = entry
	}

	return snap
}
