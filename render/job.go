// Package render implements the render-job orchestrator: request
// validation against farm capabilities, the in-memory job table with
// oldest-first eviction, the background status poller, durable persistence
// with retention pruning, and the analytics projection.
package render

import (
	"strings"
	"time"

	"github.com/prismvfx/farmhand/farm"
)

// TerminalSet is the set of statuses after which a job is not expected to
// change. Matching is case-insensitive. Farms report free-form statuses, so
// the set is configuration, not an adapter contract.
type TerminalSet map[string]struct{}

// NewTerminalSet builds a terminal set from status strings.
func NewTerminalSet(statuses ...string) TerminalSet {
	set := make(TerminalSet, len(statuses))
	for _, s := range statuses {
		set[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	return set
}

// DefaultTerminalSet covers the statuses most farm products report for
// finished work. This is a heuristic; deployments integrating farms with a
// different vocabulary configure their own set.
func DefaultTerminalSet() TerminalSet {
	return NewTerminalSet("completed", "failed", "cancelled")
}

// Contains reports whether status falls in the terminal bucket.
func (s TerminalSet) Contains(status string) bool {
	_, ok := s[strings.ToLower(strings.TrimSpace(status))]
	return ok
}

// StatusChange is one append-only history entry on a job.
type StatusChange struct {
	Status  string    `json:"status"`
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

// Job is one tracked render job. ID is opaque and farm-assigned; Status is
// a free-form string. History grows only when status or message actually
// changes, so idempotent re-polling never inflates it.
type Job struct {
	ID          string         `json:"id"`
	Farm        string         `json:"farm"`
	FarmType    string         `json:"farm_type,omitempty"`
	Status      string         `json:"status"`
	Message     string         `json:"message,omitempty"`
	Request     farm.Request   `json:"request"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	History     []StatusChange `json:"status_history"`
}

// newJob builds the record for a freshly submitted job with a single-entry
// history. An adapter reporting an immediately terminal status (a farm
// rejecting at submit time) gets CompletedAt set right away.
func newJob(res farm.SubmitResult, req farm.Request, now time.Time, terminal TerminalSet) *Job {
	j := &Job{
		ID:        res.JobID,
		Farm:      req.Farm,
		FarmType:  res.FarmType,
		Status:    res.Status,
		Request:   req,
		CreatedAt: now,
		UpdatedAt: now,
		History: []StatusChange{
			{Status: res.Status, At: now},
		},
	}
	if terminal.Contains(res.Status) {
		t := now
		j.CompletedAt = &t
	}
	return j
}

// applyStatus is the update rule shared by submit, cancel, and poll.
// If either status or message differs from the record's current values it
// updates both, bumps UpdatedAt, appends a history entry, and sets
// CompletedAt the first time the status enters the terminal bucket.
// An unchanged (status, message) pair is a no-op and returns false.
func (j *Job) applyStatus(status, message string, now time.Time, terminal TerminalSet) bool {
	if status == j.Status && message == j.Message {
		return false
	}

	j.Status = status
	j.Message = message
	j.UpdatedAt = now
	j.History = append(j.History, StatusChange{Status: status, Message: message, At: now})

	if j.CompletedAt == nil && terminal.Contains(status) {
		t := now
		j.CompletedAt = &t
	}
	return true
}

// terminal reports whether the job's current status is in the bucket.
func (j *Job) terminal(set TerminalSet) bool {
	return set.Contains(j.Status)
}

// clone deep-copies a job so read operations can release the table lock
// before callers touch the result.
func (j *Job) clone() *Job {
	out := *j

	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	if j.Request.Priority != nil {
		p := *j.Request.Priority
		out.Request.Priority = &p
	}
	if j.Request.ChunkSize != nil {
		c := *j.Request.ChunkSize
		out.Request.ChunkSize = &c
	}
	out.History = make([]StatusChange, len(j.History))
	copy(out.History, j.History)

	return &out
}
