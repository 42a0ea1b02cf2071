// Package output provides JSONL output for publish results.
//
// Output is structured as typed record envelopes containing share
// receipts, errors, and summaries. Each line is a self-contained JSON
// object that can be parsed independently, so receipts pipe cleanly into
// jq or land in a log file.
package output

import (
	"encoding/json"
	"errors"
	"time"
)

// Record type constants define the envelope types for JSONL output.
// These follow the pattern: pagehost.<type>.v<version>
const (
	// TypeShare identifies share receipt records.
	TypeShare = "pagehost.share.v1"

	// TypeError identifies error records.
	TypeError = "pagehost.error.v1"

	// TypePreflight identifies preflight capability check records.
	TypePreflight = "pagehost.preflight.v1"

	// TypeSummary identifies final summary records.
	TypeSummary = "pagehost.summary.v1"
)

// Record is the envelope for all JSONL output.
//
// Each line of JSONL output contains a Record with a type-specific
// payload in the Data field. The type field determines how to
// interpret the Data payload.
type Record struct {
	// Type identifies the record type (e.g., "pagehost.share.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was created (RFC3339Nano).
	TS time.Time `json:"ts"`

	// JobID is the correlation ID for this publish run.
	JobID string `json:"job_id"`

	// Provider identifies the storage provider (e.g., "s3", "file").
	Provider string `json:"provider"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// ShareRecord is the data payload for a published page.
type ShareRecord struct {
	// Path is the local file that was published.
	Path string `json:"path"`

	// Key is the object key the page was stored under.
	Key string `json:"key"`

	// URL is the shareable URL. For token-guarded pages it carries the
	// access token, so the line is as sensitive as the page itself.
	URL string `json:"url"`

	// Visibility is the access mode: "public" or "token-guarded".
	Visibility string `json:"visibility"`

	// ContentType is the MIME type the page was stored with.
	ContentType string `json:"content_type"`

	// Bytes is the uploaded object size.
	Bytes int64 `json:"bytes"`

	// DatastoreID identifies the page's datastore object, when a datastore
	// block was injected.
	DatastoreID string `json:"datastore_id,omitempty"`

	// Expires is when a presigned URL stops working. Absent for token URLs,
	// which do not expire.
	Expires *time.Time `json:"expires,omitempty"`
}

// ErrorRecord is the data payload for errors.
//
// Errors are emitted as records rather than failing the entire run,
// allowing the remaining files of a multi-file publish to go through.
type ErrorRecord struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// Path is the local file related to this error, if applicable.
	Path string `json:"path,omitempty"`

	// Key is the object key related to this error, if applicable.
	Key string `json:"key,omitempty"`

	// Details contains additional error context.
	Details any `json:"details,omitempty"`
}

// Error codes for ErrorRecord.
const (
	// ErrCodeInvalidInput indicates an unusable input file or argument.
	ErrCodeInvalidInput = "INVALID_INPUT"

	// ErrCodeAccessDenied indicates permission failure.
	ErrCodeAccessDenied = "ACCESS_DENIED"

	// ErrCodeNotFound indicates the object or bucket was not found.
	ErrCodeNotFound = "NOT_FOUND"

	// ErrCodeTimeout indicates an operation timed out.
	ErrCodeTimeout = "TIMEOUT"

	// ErrCodeThrottled indicates rate limiting.
	ErrCodeThrottled = "THROTTLED"

	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal = "INTERNAL"
)

// PreflightRecord is the data payload for preflight capability checks.
//
// Preflight records are emitted before the uploads start. They provide an
// explicit contract for what was checked and whether the principal appears
// to have the required permissions.
type PreflightRecord struct {
	Mode        string                 `json:"mode"`
	ProbePrefix string                 `json:"probe_prefix,omitempty"`
	Results     []PreflightCheckResult `json:"results"`
}

// PreflightCheckResult is a single capability check result.
type PreflightCheckResult struct {
	Capability string `json:"capability"`
	Allowed    bool   `json:"allowed"`
	Method     string `json:"method,omitempty"`
	ErrorCode  string `json:"error_code,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

// SummaryRecord is the data payload for final summaries.
//
// A summary record is emitted at the end of a publish run with aggregate
// statistics.
type SummaryRecord struct {
	// Published is the number of files uploaded successfully.
	Published int64 `json:"published"`

	// Failed is the number of files that could not be published.
	Failed int64 `json:"failed"`

	// BytesTotal is the cumulative size of uploaded objects in bytes.
	BytesTotal int64 `json:"bytes_total"`

	// Duration is the total run duration.
	Duration time.Duration `json:"duration_ns"`

	// DurationHuman is a human-readable duration string.
	DurationHuman string `json:"duration"`
}

// Writer errors.
var (
	// ErrWriterClosed is returned when writing to a closed writer.
	ErrWriterClosed = errors.New("writer is closed")
)

// WriteError wraps errors that occur during write operations.
type WriteError struct {
	Op  string // Operation that failed (e.g., "marshal_data", "write")
	Err error  // Underlying error
}

func (e *WriteError) Error() string {
	return "output: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
