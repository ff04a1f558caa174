package render

import (
	"strings"

	"github.com/prismvfx/farmhand/errors"
	"github.com/prismvfx/farmhand/farm"
)

// ValidateRequest normalizes and bounds-checks a submission against one
// capability snapshot. Pure function: no side effects, no adapter calls.
// The snapshot is captured once by the caller, so a concurrent adapter
// registration or removal mid-request cannot yield a partially validated
// result.
//
// The returned request has its farm name case-normalized and omitted
// priority/chunk size resolved to the farm's declared defaults. Range
// checks are inclusive of the declared bounds.
func ValidateRequest(req farm.Request, snapshot map[string]*farm.Capabilities) (farm.Request, error) {
	req.Farm = strings.ToLower(strings.TrimSpace(req.Farm))

	if req.Farm == "" {
		return req, errors.WithDetail(
			errors.Wrap(errors.ErrInvalidRequest, "farm name is required"),
			"Field: farm")
	}
	for _, f := range []struct{ name, value string }{
		{"dcc", req.DCC},
		{"scene", req.Scene},
		{"frames", req.Frames},
		{"output", req.Output},
	} {
		if strings.TrimSpace(f.value) == "" {
			err := errors.Wrapf(errors.ErrInvalidRequest, "%s is required", f.name)
			return req, errors.WithDetailf(err, "Field: %s", f.name)
		}
	}

	caps, ok := snapshot[req.Farm]
	if !ok {
		err := errors.Wrapf(errors.ErrUnknownFarm, "farm %q is not registered", req.Farm)
		return req, errors.WithDetailf(err, "Farm: %s", req.Farm)
	}
	if caps == nil {
		// Registered without capability metadata: nothing to default or
		// bounds-check, the request passes through as-is.
		return req, nil
	}

	if req.Priority == nil {
		p := caps.Priority.Default
		req.Priority = &p
	}
	if *req.Priority < caps.Priority.Min || *req.Priority > caps.Priority.Max {
		err := errors.Wrapf(errors.ErrInvalidRequest,
			"priority %d outside farm %q bounds [%d, %d]",
			*req.Priority, req.Farm, caps.Priority.Min, caps.Priority.Max)
		err = errors.WithDetail(err, "Field: priority")
		err = errors.WithDetailf(err, "Value: %d", *req.Priority)
		return req, err
	}

	if caps.Chunking.Enabled {
		if req.ChunkSize == nil {
			c := caps.Chunking.Default
			req.ChunkSize = &c
		}
		if *req.ChunkSize < caps.Chunking.Min || *req.ChunkSize > caps.Chunking.Max {
			err := errors.Wrapf(errors.ErrInvalidRequest,
				"chunk size %d outside farm %q bounds [%d, %d]",
				*req.ChunkSize, req.Farm, caps.Chunking.Min, caps.Chunking.Max)
			err = errors.WithDetail(err, "Field: chunk_size")
			err = errors.WithDetailf(err, "Value: %d", *req.ChunkSize)
			return req, err
		}
	} else if req.ChunkSize != nil {
		err := errors.Wrapf(errors.ErrInvalidRequest,
			"farm %q does not support chunking", req.Farm)
		err = errors.WithDetail(err, "Field: chunk_size")
		err = errors.WithDetailf(err, "Value: %d", *req.ChunkSize)
		return req, err
	}

	return req, nil
}
