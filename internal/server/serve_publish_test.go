package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagehost/pagehost/pkg/access"
	"github.com/pagehost/pagehost/pkg/provider/file"
	"github.com/pagehost/pagehost/pkg/publish"
)

// guardedURLPattern is the published contract for token-guarded links: an
// unguessable key derived from the file name plus a 43-char token.
var guardedURLPattern = regexp.MustCompile(`^https://[^/]+/[A-Za-z0-9_-]{22}-report\?token=([A-Za-z0-9_-]{43})$`)

// The full path a page takes: published through the real pipeline onto a
// file-backed store, then served back through the gate.
func TestPublishThenServe(t *testing.T) {
	ctx := context.Background()

	store, err := file.New(file.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	defer store.Close()

	dir := t.TempDir()
	reportBody := "<html><head></head><body>quarterly numbers</body></html>"
	reportPath := filepath.Join(dir, "report.html")
	require.NoError(t, os.WriteFile(reportPath, []byte(reportBody), 0o644))

	indexBody := "<html><head></head><body>hello</body></html>"
	indexPath := filepath.Join(dir, "index.html")
	require.NoError(t, os.WriteFile(indexPath, []byte(indexBody), 0o644))

	pub := publish.New(store, nil, "e2e-job", publish.Config{
		URL: publish.URLBuilder{BaseURL: "https://pages.example.com"},
	})

	results, summary, err := pub.Run(ctx, []publish.Request{
		{Path: reportPath, Visibility: access.VisibilityTokenGuarded},
		{Path: indexPath, Visibility: access.VisibilityPublic},
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, summary.Published)
	require.EqualValues(t, 0, summary.Failed)

	var guarded, public *publish.Receipt
	for i := range results {
		require.NoError(t, results[i].Err)
		switch results[i].Receipt.Visibility {
		case access.VisibilityTokenGuarded:
			guarded = results[i].Receipt
		case access.VisibilityPublic:
			public = results[i].Receipt
		}
	}
	require.NotNil(t, guarded)
	require.NotNil(t, public)

	m := guardedURLPattern.FindStringSubmatch(guarded.URL)
	require.NotNil(t, m, "guarded URL %q does not match the link contract", guarded.URL)
	require.Equal(t, guarded.Token, m[1])
	assert.NotContains(t, public.URL, "token=")

	srv := New("127.0.0.1", 0, WithStore(store))
	handler := srv.Handler()

	get := func(url string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
		return rec
	}

	t.Run("guarded page with its token", func(t *testing.T) {
		rec := get("/" + guarded.Key + "?token=" + guarded.Token)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, reportBody, rec.Body.String())
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	})

	t.Run("guarded page with the wrong token", func(t *testing.T) {
		rec := get("/" + guarded.Key + "?token=AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("guarded page without a token", func(t *testing.T) {
		rec := get("/" + guarded.Key)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("public page needs no token", func(t *testing.T) {
		rec := get("/" + public.Key)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, indexBody, rec.Body.String())
	})

	t.Run("unknown key", func(t *testing.T) {
		rec := get("/AAAAAAAAAAAAAAAAAAAAAA-missing")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
