// Package preflight validates page store permissions before a publish run
// touches anything.
package preflight

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pagehost/pagehost/pkg/output"
	"github.com/pagehost/pagehost/pkg/provider"
)

// Mode defines how aggressive preflight checks are.
type Mode string

const (
	ModePlanOnly   Mode = "plan-only"
	ModeReadSafe   Mode = "read-safe"
	ModeWriteProbe Mode = "write-probe"
)

// ProbeStrategy selects a provider-specific write probe strategy.
type ProbeStrategy string

const (
	ProbeMultipartAbort ProbeStrategy = "multipart-abort"
	ProbePutDelete      ProbeStrategy = "put-delete"
)

// DefaultProbePrefix is where probe keys land when the spec does not set one.
// Probe objects never collide with published pages because page keys start
// with a random stem, never an underscore.
const DefaultProbePrefix = "_pagehost/probe/"

// Spec controls how preflight checks are executed.
type Spec struct {
	Mode          Mode
	ProbeStrategy ProbeStrategy
	ProbePrefix   string
}

// Capability names are stable strings used in JSONL output.
const (
	CapBucketList  = "bucket.list"
	CapTargetHead  = "target.head"
	CapTargetWrite = "target.write"
)

// Share runs staged preflight checks for a publish run.
//
// Ordering (fail-fast): bucket list → target head → write probe (write-probe
// mode only). Head on a random key tolerates NOT_FOUND; any other error is a
// capability failure.
func Share(ctx context.Context, store provider.Provider, spec Spec) (*output.PreflightRecord, error) {
	rec := newRecord(spec)

	if spec.Mode == ModePlanOnly {
		return rec, nil
	}

	_, err := store.List(ctx, provider.ListOptions{MaxKeys: 1})
	if err != nil {
		rec.Results = append(rec.Results, output.PreflightCheckResult{
			Capability: CapBucketList,
			Allowed:    false,
			Method:     "List(maxKeys=1)",
			ErrorCode:  normalizeErrorCode(err),
			Detail:     err.Error(),
		})
		return rec, err
	}
	rec.Results = append(rec.Results, output.PreflightCheckResult{
		Capability: CapBucketList,
		Allowed:    true,
		Method:     "List(maxKeys=1)",
	})

	probeKey := joinPrefix(probePrefix(spec), "head-"+uuid.NewString())
	_, headErr := store.Head(ctx, probeKey)
	if headErr != nil && !provider.IsNotFound(headErr) {
		rec.Results = append(rec.Results, output.PreflightCheckResult{
			Capability: CapTargetHead,
			Allowed:    false,
			Method:     "Head(random)",
			ErrorCode:  normalizeErrorCode(headErr),
			Detail:     headErr.Error(),
		})
		return rec, headErr
	}
	rec.Results = append(rec.Results, output.PreflightCheckResult{
		Capability: CapTargetHead,
		Allowed:    true,
		Method:     "Head(random)",
	})

	if spec.Mode != ModeWriteProbe {
		return rec, nil
	}

	probeRec, err := WriteProbe(ctx, store, spec)
	rec.Results = append(rec.Results, probeRec.Results...)
	return rec, err
}

// WriteProbe proves write permission on the page store without leaving data
// behind. When the spec does not pin a strategy, multipart-abort is preferred
// because it never materializes an object; stores without multipart support
// fall back to put-delete.
func WriteProbe(ctx context.Context, store provider.Provider, spec Spec) (*output.PreflightRecord, error) {
	rec := newRecord(spec)

	strategy := spec.ProbeStrategy
	if strategy == "" {
		strategy = pickStrategy(store)
	}

	switch strategy {
	case ProbeMultipartAbort:
		return rec, probeMultipartAbort(ctx, store, probePrefix(spec), rec)
	case ProbePutDelete:
		return rec, probePutDelete(ctx, store, probePrefix(spec), rec)
	default:
		return rec, fmt.Errorf("unknown probe strategy %q", strategy)
	}
}

func probeMultipartAbort(ctx context.Context, store provider.Provider, prefix string, rec *output.PreflightRecord) error {
	const method = "CreateMultipartUpload+Abort"

	mp, ok := store.(provider.MultipartUploader)
	if !ok {
		return fmt.Errorf("store does not support multipart uploads; use %s", ProbePutDelete)
	}

	probeKey := joinPrefix(prefix, "write-"+uuid.NewString())
	uploadID, err := mp.CreateMultipartUpload(ctx, probeKey)
	if err != nil {
		rec.Results = append(rec.Results, output.PreflightCheckResult{
			Capability: CapTargetWrite,
			Allowed:    false,
			Method:     method,
			ErrorCode:  normalizeErrorCode(err),
			Detail:     err.Error(),
		})
		return err
	}

	if abortErr := mp.AbortMultipartUpload(ctx, probeKey, uploadID); abortErr != nil {
		// Write permission is proven, but the dangling upload needs attention.
		rec.Results = append(rec.Results, output.PreflightCheckResult{
			Capability: CapTargetWrite,
			Allowed:    true,
			Method:     method,
			ErrorCode:  normalizeErrorCode(abortErr),
			Detail:     "abort failed, upload " + uploadID + " may linger: " + abortErr.Error(),
		})
		return abortErr
	}

	rec.Results = append(rec.Results, output.PreflightCheckResult{
		Capability: CapTargetWrite,
		Allowed:    true,
		Method:     method,
	})
	return nil
}

func probePutDelete(ctx context.Context, store provider.Provider, prefix string, rec *output.PreflightRecord) error {
	const method = "PutObject+DeleteObject"

	putter, ok := store.(provider.ObjectPutter)
	if !ok {
		return fmt.Errorf("store does not support PutObject")
	}
	deleter, ok := store.(provider.ObjectDeleter)
	if !ok {
		return fmt.Errorf("store does not support DeleteObject")
	}

	probeKey := joinPrefix(prefix, "write-"+uuid.NewString())
	if err := putter.PutObject(ctx, probeKey, strings.NewReader(""), 0, provider.PutOptions{}); err != nil {
		rec.Results = append(rec.Results, output.PreflightCheckResult{
			Capability: CapTargetWrite,
			Allowed:    false,
			Method:     method,
			ErrorCode:  normalizeErrorCode(err),
			Detail:     err.Error(),
		})
		return err
	}

	if delErr := deleter.DeleteObject(ctx, probeKey); delErr != nil {
		rec.Results = append(rec.Results, output.PreflightCheckResult{
			Capability: CapTargetWrite,
			Allowed:    true,
			Method:     method,
			ErrorCode:  normalizeErrorCode(delErr),
			Detail:     "delete failed, probe object " + probeKey + " left behind: " + delErr.Error(),
		})
		return delErr
	}

	rec.Results = append(rec.Results, output.PreflightCheckResult{
		Capability: CapTargetWrite,
		Allowed:    true,
		Method:     method,
	})
	return nil
}

func pickStrategy(store provider.Provider) ProbeStrategy {
	if _, ok := store.(provider.MultipartUploader); ok {
		return ProbeMultipartAbort
	}
	return ProbePutDelete
}

func newRecord(spec Spec) *output.PreflightRecord {
	return &output.PreflightRecord{
		Mode:        string(spec.Mode),
		ProbePrefix: spec.ProbePrefix,
		Results:     []output.PreflightCheckResult{},
	}
}

func probePrefix(spec Spec) string {
	if spec.ProbePrefix == "" {
		return DefaultProbePrefix
	}
	return spec.ProbePrefix
}

func joinPrefix(prefix, suffix string) string {
	if prefix == "" {
		return strings.TrimPrefix(suffix, "/")
	}
	if strings.HasSuffix(prefix, "/") {
		return prefix + strings.TrimPrefix(suffix, "/")
	}
	return prefix + "/" + strings.TrimPrefix(suffix, "/")
}

func normalizeErrorCode(err error) string {
	switch {
	case provider.IsAccessDenied(err):
		return output.ErrCodeAccessDenied
	case provider.IsBucketNotFound(err), provider.IsNotFound(err):
		return output.ErrCodeNotFound
	case provider.IsThrottled(err):
		return output.ErrCodeThrottled
	case provider.IsInvalidCredentials(err):
		return output.ErrCodeAccessDenied
	case provider.IsProviderUnavailable(err):
		return output.ErrCodeInternal
	default:
		return output.ErrCodeInternal
	}
}
