// Package farm defines the contract between the render orchestrator and
// concrete render-farm backends. An Adapter translates generic submissions
// into one farm's submit/status/cancel calls; the Registry owns the set of
// adapters and their capability metadata.
package farm

import (
	"context"
)

// Request is a render job submission. Priority and ChunkSize are optional;
// validation resolves omitted values against the target farm's declared
// defaults and range-checks them inclusively.
type Request struct {
	DCC       string `json:"dcc"`
	Scene     string `json:"scene"`
	Frames    string `json:"frames"`
	Output    string `json:"output"`
	Farm      string `json:"farm"`
	Priority  *int   `json:"priority,omitempty"`
	ChunkSize *int   `json:"chunk_size,omitempty"`
	User      string `json:"user"`
}

// SubmitResult is what an adapter reports back for an accepted submission.
// JobID is opaque and farm-assigned; Status is free-form (farms are not
// forced into a fixed vocabulary).
type SubmitResult struct {
	JobID    string `json:"job_id"`
	Status   string `json:"status"`
	FarmType string `json:"farm_type"`
}

// StatusResult is an adapter's answer to a status lookup.
type StatusResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// CancelResult is an adapter's answer to a cancellation call.
type CancelResult struct {
	Status string `json:"status"`
}

// SubmitFunc submits a validated request to the farm.
type SubmitFunc func(ctx context.Context, req Request) (SubmitResult, error)

// StatusFunc looks up the current status of a farm-assigned job ID.
type StatusFunc func(ctx context.Context, jobID string) (StatusResult, error)

// CancelFunc asks the farm to cancel a job.
type CancelFunc func(ctx context.Context, jobID string) (CancelResult, error)

// Features are the optional capabilities an adapter actually wires up.
// They are derived once at registration so behavior is statically visible
// instead of being probed at call sites.
type Features struct {
	StatusLookup bool `json:"status_lookup"`
	Cancellation bool `json:"cancellation"`
}

// Adapter is one registered farm integration. Submit is required;
// GetJobStatus and CancelJob are optional. Capability metadata comes from
// either the static Capabilities value or the CapabilityProvider, which is
// evaluated at snapshot time so live farms can report current limits.
//
// The orchestrator imposes no timeout on adapter calls; bounding latency
// is the adapter integration's responsibility.
type Adapter struct {
	Name               string
	Submit             SubmitFunc
	GetJobStatus       StatusFunc
	CancelJob          CancelFunc
	Supports           Features
	Capabilities       *Capabilities
	CapabilityProvider func() Capabilities
}

// CapabilitiesNow resolves the adapter's capability source, preferring the
// live provider over the static value. Returns false when the adapter was
// registered without any capability info.
func (a *Adapter) CapabilitiesNow() (Capabilities, bool) {
	if a.CapabilityProvider != nil {
		return a.CapabilityProvider(), true
	}
	if a.Capabilities != nil {
		return *a.Capabilities, true
	}
	return Capabilities{}, false
}
