package output

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONLWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-123", "s3")

	assert.NotNil(t, w)
	assert.Equal(t, "job-123", w.jobID)
	assert.Equal(t, "s3", w.provider)
}

func TestJSONLWriter_WriteShare(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-123", "s3")

	share := &ShareRecord{
		Path:        "reports/q1.html",
		Key:         "Xr9mQ2lzT4bAwC8dEfGhIj-q1",
		URL:         "https://pages.example.com/Xr9mQ2lzT4bAwC8dEfGhIj-q1?token=abc",
		Visibility:  "token-guarded",
		ContentType: "text/html",
		Bytes:       2048,
		DatastoreID: "a1b2c3d4e5f6a7b8c9d0",
	}

	err := w.WriteShare(context.Background(), share)
	require.NoError(t, err)

	var record Record
	err = json.Unmarshal(buf.Bytes(), &record)
	require.NoError(t, err)

	assert.Equal(t, TypeShare, record.Type)
	assert.Equal(t, "job-123", record.JobID)
	assert.Equal(t, "s3", record.Provider)
	assert.False(t, record.TS.IsZero())

	var data ShareRecord
	err = json.Unmarshal(record.Data, &data)
	require.NoError(t, err)

	assert.Equal(t, "reports/q1.html", data.Path)
	assert.Equal(t, "Xr9mQ2lzT4bAwC8dEfGhIj-q1", data.Key)
	assert.Equal(t, "token-guarded", data.Visibility)
	assert.Equal(t, int64(2048), data.Bytes)
	assert.Nil(t, data.Expires)
}

func TestJSONLWriter_WriteShare_Presigned(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-456", "s3")

	expires := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	share := &ShareRecord{
		Path:        "reports/q1.html",
		Key:         "Xr9mQ2lzT4bAwC8dEfGhIj-q1",
		URL:         "https://bucket.s3.amazonaws.com/Xr9mQ2lzT4bAwC8dEfGhIj-q1?X-Amz-Signature=abc",
		Visibility:  "token-guarded",
		ContentType: "text/html",
		Bytes:       2048,
		Expires:     &expires,
	}

	err := w.WriteShare(context.Background(), share)
	require.NoError(t, err)

	var record Record
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	var data ShareRecord
	require.NoError(t, json.Unmarshal(record.Data, &data))
	require.NotNil(t, data.Expires)
	assert.True(t, expires.Equal(*data.Expires))
}

func TestJSONLWriter_WriteError(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-123", "s3")

	errRec := &ErrorRecord{
		Code:    ErrCodeInvalidInput,
		Message: "no <head> element",
		Path:    "reports/broken.html",
	}

	err := w.WriteError(context.Background(), errRec)
	require.NoError(t, err)

	var record Record
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, TypeError, record.Type)

	var data ErrorRecord
	require.NoError(t, json.Unmarshal(record.Data, &data))
	assert.Equal(t, ErrCodeInvalidInput, data.Code)
	assert.Equal(t, "reports/broken.html", data.Path)
	assert.Empty(t, data.Key)
}

func TestJSONLWriter_WritePreflight(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-123", "s3")

	preflight := &PreflightRecord{
		Mode:        "write-probe",
		ProbePrefix: "reports/",
		Results: []PreflightCheckResult{
			{Capability: "head", Allowed: true, Method: "HeadObject"},
			{Capability: "write", Allowed: false, Method: "CreateMultipartUpload", ErrorCode: "ACCESS_DENIED"},
		},
	}

	err := w.WritePreflight(context.Background(), preflight)
	require.NoError(t, err)

	var record Record
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, TypePreflight, record.Type)

	var data PreflightRecord
	require.NoError(t, json.Unmarshal(record.Data, &data))
	assert.Equal(t, "write-probe", data.Mode)
	require.Len(t, data.Results, 2)
	assert.False(t, data.Results[1].Allowed)
}

func TestJSONLWriter_WriteSummary(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-123", "s3")

	sum := &SummaryRecord{
		Published:     3,
		Failed:        1,
		BytesTotal:    1 << 20,
		Duration:      2500 * time.Millisecond,
		DurationHuman: "2.5s",
	}

	err := w.WriteSummary(context.Background(), sum)
	require.NoError(t, err)

	var record Record
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, TypeSummary, record.Type)

	var data SummaryRecord
	require.NoError(t, json.Unmarshal(record.Data, &data))
	assert.Equal(t, int64(3), data.Published)
	assert.Equal(t, int64(1), data.Failed)
	assert.Equal(t, 2500*time.Millisecond, data.Duration)
}

func TestJSONLWriter_NewlineTerminated(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-123", "s3")

	require.NoError(t, w.WriteShare(context.Background(), &ShareRecord{Path: "a.html"}))
	require.NoError(t, w.WriteShare(context.Background(), &ShareRecord{Path: "b.html"}))

	out := buf.String()
	assert.True(t, strings.HasSuffix(out, "\n"))

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	assert.Len(t, lines, 2)
	for _, line := range lines {
		var record Record
		assert.NoError(t, json.Unmarshal([]byte(line), &record))
	}
}

func TestJSONLWriter_Close(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-123", "s3")

	require.NoError(t, w.Close())

	err := w.WriteShare(context.Background(), &ShareRecord{Path: "a.html"})
	assert.ErrorIs(t, err, ErrWriterClosed)
}

func TestJSONLWriter_ConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-123", "s3")

	const writers = 8
	const perWriter = 25

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				_ = w.WriteShare(context.Background(), &ShareRecord{Path: "a.html"})
			}
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, writers*perWriter)
	for _, line := range lines {
		var record Record
		require.NoError(t, json.Unmarshal([]byte(line), &record), "interleaved line: %q", line)
	}
}

func TestJSONLWriter_ContextCancellation(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-123", "s3")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.WriteShare(ctx, &ShareRecord{Path: "a.html"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, buf.Len())
}

type failingWriter struct {
	err error
}

func (fw *failingWriter) Write(p []byte) (int, error) {
	return 0, fw.err
}

func TestJSONLWriter_WriteFailure(t *testing.T) {
	sentinel := errors.New("disk full")
	w := NewJSONLWriter(&failingWriter{err: sentinel}, "job-123", "s3")

	err := w.WriteShare(context.Background(), &ShareRecord{Path: "a.html"})
	require.Error(t, err)

	var writeErr *WriteError
	require.ErrorAs(t, err, &writeErr)
	assert.Equal(t, "write", writeErr.Op)
	assert.ErrorIs(t, err, sentinel)
}

// shortWriteWriter accepts at most chunk bytes per call, exercising the
// short-write loop.
type shortWriteWriter struct {
	buf   bytes.Buffer
	chunk int
}

func (sw *shortWriteWriter) Write(p []byte) (int, error) {
	if len(p) > sw.chunk {
		p = p[:sw.chunk]
	}
	return sw.buf.Write(p)
}

func TestJSONLWriter_ShortWrite(t *testing.T) {
	sw := &shortWriteWriter{chunk: 7}
	w := NewJSONLWriter(sw, "job-123", "s3")

	require.NoError(t, w.WriteShare(context.Background(), &ShareRecord{Path: "a.html"}))

	var record Record
	require.NoError(t, json.Unmarshal(sw.buf.Bytes(), &record))
	assert.Equal(t, TypeShare, record.Type)
}

type zeroWriteWriter struct{}

func (zeroWriteWriter) Write(p []byte) (int, error) {
	return 0, nil
}

func TestJSONLWriter_ZeroWrite(t *testing.T) {
	w := NewJSONLWriter(zeroWriteWriter{}, "job-123", "s3")

	err := w.WriteShare(context.Background(), &ShareRecord{Path: "a.html"})
	require.Error(t, err)
	assert.ErrorIs(t, err, io.ErrShortWrite)
}

func TestWriteError(t *testing.T) {
	inner := errors.New("boom")
	err := &WriteError{Op: "write", Err: inner}

	assert.Equal(t, "output: write: boom", err.Error())
	assert.ErrorIs(t, err, inner)
}

func TestRecord_JSONSerialization(t *testing.T) {
	record := Record{
		Type:     TypeShare,
		TS:       time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
		JobID:    "job-789",
		Provider: "file",
		Data:     json.RawMessage(`{"path":"a.html"}`),
	}

	raw, err := json.Marshal(record)
	require.NoError(t, err)

	assert.Contains(t, string(raw), `"type":"pagehost.share.v1"`)
	assert.Contains(t, string(raw), `"job_id":"job-789"`)
	assert.Contains(t, string(raw), `"provider":"file"`)
	assert.Contains(t, string(raw), `"data":{"path":"a.html"}`)
}

func TestShareRecord_OmitEmpty(t *testing.T) {
	raw, err := json.Marshal(&ShareRecord{Path: "a.html"})
	require.NoError(t, err)

	assert.NotContains(t, string(raw), "datastore_id")
	assert.NotContains(t, string(raw), "expires")
}

func TestErrorRecord_OmitEmpty(t *testing.T) {
	raw, err := json.Marshal(&ErrorRecord{Code: ErrCodeInternal, Message: "boom"})
	require.NoError(t, err)

	assert.NotContains(t, string(raw), `"path"`)
	assert.NotContains(t, string(raw), `"key"`)
	assert.NotContains(t, string(raw), `"details"`)
}
