package farm

// PriorityCaps declares a farm's priority bounds and default.
type PriorityCaps struct {
	Default int `json:"default"`
	Min     int `json:"min"`
	Max     int `json:"max"`
}

// ChunkingCaps declares whether a farm chunks frame ranges and within
// what bounds.
type ChunkingCaps struct {
	Enabled bool `json:"enabled"`
	Min     int  `json:"min"`
	Max     int  `json:"max"`
	Default int  `json:"default"`
}

// CancellationCaps declares whether a farm supports cancelling jobs.
type CancellationCaps struct {
	Supported bool `json:"supported"`
}

// Capabilities is the full capability descriptor for one farm, supplied at
// registration either as a static value or via a provider function
// evaluated at query time.
type Capabilities struct {
	Priority     PriorityCaps     `json:"priority"`
	Chunking     ChunkingCaps     `json:"chunking"`
	Cancellation CancellationCaps `json:"cancellation"`
}
