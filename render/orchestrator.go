package render

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/prismvfx/farmhand/errors"
	"github.com/prismvfx/farmhand/farm"
	"github.com/prismvfx/farmhand/stream"
)

// Event is the hub payload for job notifications.
type Event struct {
	Event string `json:"event"`
	Job   *Job   `json:"job,omitempty"`
	Jobs  []*Job `json:"jobs,omitempty"`
}

// Config carries the orchestrator's tuning knobs. Loading these from a
// file or environment is the caller's concern.
type Config struct {
	// HistoryLimit bounds the in-memory job table; the oldest record is
	// evicted past it. Zero or negative means unbounded.
	HistoryLimit int
	// PollInterval is the background status-refresh cadence.
	PollInterval time.Duration
	// StorePersistInterval throttles poller-driven persistence.
	StorePersistInterval time.Duration
	// TerminalStatuses overrides the default terminal bucket.
	TerminalStatuses []string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HistoryLimit:         500,
		PollInterval:         15 * time.Second,
		StorePersistInterval: 30 * time.Second,
	}
}

// Orchestrator owns the in-memory job table and the adapter registry. One
// mutex guards the table; read operations copy out under it and release
// before further processing, and adapter network calls always run outside
// it so a slow farm cannot stall unrelated reads.
type Orchestrator struct {
	registry     *farm.Registry
	store        *Store
	hub          *stream.Hub
	logger       *zap.SugaredLogger
	terminal     TerminalSet
	historyLimit int
	pollInterval time.Duration

	// Allows one poller-driven persist per StorePersistInterval; submit
	// and cancel persist unconditionally.
	persistLimiter *rate.Limiter

	mu        sync.Mutex
	jobs      map[string]*Job
	order     []string // insertion order, oldest first, for eviction
	evictions int

	pollMu     sync.Mutex
	pollCancel context.CancelFunc
	pollDone   chan struct{}

	lastActivePolled int
}

// New creates an orchestrator around a store and hub. The hub's snapshot
// provider is installed here so new subscribers always receive the
// baseline table before any live event.
func New(registry *farm.Registry, store *Store, hub *stream.Hub, cfg Config, log *zap.SugaredLogger) *Orchestrator {
	terminal := DefaultTerminalSet()
	if len(cfg.TerminalStatuses) > 0 {
		terminal = NewTerminalSet(cfg.TerminalStatuses...)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.StorePersistInterval <= 0 {
		cfg.StorePersistInterval = DefaultConfig().StorePersistInterval
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	o := &Orchestrator{
		registry:         registry,
		store:            store,
		hub:              hub,
		logger:           log,
		terminal:         terminal,
		historyLimit:     cfg.HistoryLimit,
		pollInterval:     cfg.PollInterval,
		persistLimiter:   rate.NewLimiter(rate.Every(cfg.StorePersistInterval), 1),
		jobs:             make(map[string]*Job),
		lastActivePolled: -1,
	}

	if hub != nil {
		hub.SetSnapshot(func() interface{} {
			return Event{Event: stream.EventSnapshot, Jobs: o.Snapshot()}
		})
	}
	return o
}

// Registry exposes the adapter registry owned by this orchestrator.
func (o *Orchestrator) Registry() *farm.Registry {
	return o.registry
}

// RegisterAdapter upserts a farm adapter. Replacing an adapter without new
// capability info removes the stale metadata for that name.
func (o *Orchestrator) RegisterAdapter(a farm.Adapter) error {
	return o.registry.Register(a)
}

// Restore loads the persisted job table. A load failure leaves the
// current in-memory table in place rather than refusing to start. A
// restored table larger than the history limit (the limit was lowered
// between runs) is trimmed oldest-first on the spot.
func (o *Orchestrator) Restore() {
	jobs, err := o.store.Load()
	if err != nil {
		o.logger.Warnw("Failed to load persisted jobs, continuing with in-memory table",
			"error", err)
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.historyLimit > 0 && len(jobs) > o.historyLimit {
		trimmed := len(jobs) - o.historyLimit
		jobs = jobs[trimmed:]
		o.evictions += trimmed
		o.logger.Infow("Trimmed restored jobs past history limit",
			"trimmed", trimmed,
			"history_limit", o.historyLimit)
	}

	o.jobs = make(map[string]*Job, len(jobs))
	o.order = make([]string, 0, len(jobs))
	for _, job := range jobs {
		o.jobs[job.ID] = job
		o.order = append(o.order, job.ID)
	}
}

// Submit validates a request against the current capability snapshot,
// invokes the target adapter, and tracks the resulting job.
func (o *Orchestrator) Submit(ctx context.Context, req farm.Request) (*Job, error) {
	snapshot := o.registry.CapabilitySnapshot()
	validated, err := ValidateRequest(req, snapshot)
	if err != nil {
		return nil, err
	}

	adapter, ok := o.registry.Get(validated.Farm)
	if !ok {
		// Adapter removed between snapshot and submit.
		err := errors.Wrapf(errors.ErrUnknownFarm, "farm %q is not registered", validated.Farm)
		return nil, errors.WithDetailf(err, "Farm: %s", validated.Farm)
	}

	// Adapter network call runs outside the table lock.
	res, err := adapter.Submit(ctx, validated)
	if err != nil {
		return nil, classifySubmitError(err, validated.Farm)
	}

	now := time.Now()
	job := newJob(res, validated, now, o.terminal)

	o.mu.Lock()
	if _, exists := o.jobs[job.ID]; exists {
		// Adapter-assigned IDs key the table; accepting a duplicate would
		// alias two submissions onto one record.
		o.mu.Unlock()
		err := errors.Newf("farm %q returned duplicate job ID", validated.Farm)
		err = errors.WithDetailf(err, "Job ID: %s", job.ID)
		err = errors.WithDetailf(err, "Farm: %s", validated.Farm)
		o.logger.Errorw("Adapter reused a job ID, submission not tracked",
			"job_id", job.ID,
			"farm", validated.Farm)
		return nil, err
	}
	o.jobs[job.ID] = job
	o.order = append(o.order, job.ID)
	if o.historyLimit > 0 && len(o.order) > o.historyLimit {
		oldest := o.order[0]
		o.order = o.order[1:]
		delete(o.jobs, oldest)
		o.evictions++
		o.logger.Debugw("Evicted oldest job past history limit",
			"evicted_job_id", oldest,
			"history_limit", o.historyLimit)
	}
	table := o.snapshotLocked()
	o.mu.Unlock()

	o.persist(table)
	o.publish(stream.EventJobCreated, job.clone())

	o.logger.Infow("Render job submitted",
		"job_id", job.ID,
		"farm", job.Farm,
		"dcc", validated.DCC,
		"status", job.Status,
		"user", validated.User)

	return job.clone(), nil
}

// classifySubmitError maps adapter submit failures onto the error
// taxonomy: stubbed farms stay AdapterNotImplemented, everything else is
// an AdapterUnavailable with a retry hint and the farm in context.
func classifySubmitError(err error, farmName string) error {
	if errors.Is(err, errors.ErrAdapterNotImplemented) {
		err = errors.Wrapf(err, "farm %q cannot accept submissions yet", farmName)
		return errors.WithDetailf(err, "Farm: %s", farmName)
	}
	if !errors.Is(err, errors.ErrAdapterUnavailable) {
		err = errors.Wrap(errors.ErrAdapterUnavailable, err.Error())
	}
	err = errors.Wrapf(err, "farm %q submission failed", farmName)
	err = errors.WithDetailf(err, "Farm: %s", farmName)
	return errors.WithHint(err, "the farm may be temporarily unreachable; retry the submission")
}

// Cancel asks the job's adapter to cancel it and applies the resulting
// status through the shared update rule.
func (o *Orchestrator) Cancel(ctx context.Context, jobID string) (*Job, error) {
	o.mu.Lock()
	job, ok := o.jobs[jobID]
	var farmName string
	if ok {
		farmName = job.Farm
	}
	o.mu.Unlock()

	if !ok {
		err := errors.Wrapf(errors.ErrNotFound, "job %s", jobID)
		return nil, errors.WithDetailf(err, "Job ID: %s", jobID)
	}

	adapter, found := o.registry.Get(farmName)
	if !found || !adapter.Supports.Cancellation || !cancellationDeclared(adapter) {
		err := errors.Wrapf(errors.ErrCancellationUnsupported,
			"farm %q cannot cancel jobs", farmName)
		err = errors.WithDetailf(err, "Job ID: %s", jobID)
		return nil, errors.WithDetailf(err, "Farm: %s", farmName)
	}

	res, err := adapter.CancelJob(ctx, jobID)
	if err != nil {
		err = errors.Wrapf(err, "farm %q cancellation failed", farmName)
		err = errors.WithDetailf(err, "Job ID: %s", jobID)
		return nil, errors.WithHint(err, "the farm may be temporarily unreachable; retry the cancellation")
	}

	now := time.Now()
	o.mu.Lock()
	job, ok = o.jobs[jobID]
	if !ok {
		// Evicted while the adapter call was in flight; nothing to update.
		o.mu.Unlock()
		err := errors.Wrapf(errors.ErrNotFound, "job %s", jobID)
		return nil, errors.WithDetailf(err, "Job ID: %s", jobID)
	}
	changed := job.applyStatus(res.Status, job.Message, now, o.terminal)
	updated := job.clone()
	var table []*Job
	if changed {
		table = o.snapshotLocked()
	}
	o.mu.Unlock()

	if changed {
		o.persist(table)
		o.publish(stream.EventJobUpdated, updated)
		o.logger.Infow("Render job cancelled",
			"job_id", jobID,
			"farm", farmName,
			"status", updated.Status)
	}
	return updated, nil
}

// cancellationDeclared checks the capability descriptor too: an adapter
// may wire a cancel func while its farm declares cancellation off.
func cancellationDeclared(a *farm.Adapter) bool {
	caps, ok := a.CapabilitiesNow()
	if !ok {
		return true // no metadata, the wired func decides
	}
	return caps.Cancellation.Supported
}

// Get returns a copy of one job.
func (o *Orchestrator) Get(jobID string) (*Job, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	job, ok := o.jobs[jobID]
	if !ok {
		return nil, false
	}
	return job.clone(), true
}

// List returns matching jobs, most recently submitted first. The filters
// are optional; limit <= 0 means all. The table lock is held only for the
// copy-out.
func (o *Orchestrator) List(limit int, statusFilter, farmFilter string) []*Job {
	o.mu.Lock()
	matched := make([]*Job, 0, len(o.order))
	for i := len(o.order) - 1; i >= 0; i-- {
		job, ok := o.jobs[o.order[i]]
		if !ok {
			continue
		}
		if statusFilter != "" && !strings.EqualFold(job.Status, statusFilter) {
			continue
		}
		if farmFilter != "" && !strings.EqualFold(job.Farm, farmFilter) {
			continue
		}
		matched = append(matched, job.clone())
		if limit > 0 && len(matched) == limit {
			break
		}
	}
	o.mu.Unlock()
	return matched
}

// Snapshot returns a copy of the full table in insertion order.
func (o *Orchestrator) Snapshot() []*Job {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// snapshotLocked clones the table in insertion order.
// REQUIRES: o.mu held.
func (o *Orchestrator) snapshotLocked() []*Job {
	out := make([]*Job, 0, len(o.order))
	for _, id := range o.order {
		if job, ok := o.jobs[id]; ok {
			out = append(out, job.clone())
		}
	}
	return out
}

// Evictions returns how many records history-limit eviction has removed.
func (o *Orchestrator) Evictions() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.evictions
}

// StoreStats exposes the job store's observational state.
func (o *Orchestrator) StoreStats() StoreStats {
	return o.store.Stats()
}

// persist writes a table snapshot. Save failures are surfaced in the log
// but never roll back the in-memory mutation that triggered them.
func (o *Orchestrator) persist(table []*Job) {
	if err := o.store.Save(table); err != nil {
		o.logger.Warnw("Failed to persist job table", "error", err)
	}
}

// publish fans an event out to stream subscribers.
func (o *Orchestrator) publish(name string, job *Job) {
	if o.hub == nil {
		return
	}
	o.hub.Publish(Event{Event: name, Job: job})
}
