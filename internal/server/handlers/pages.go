package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/pagehost/pagehost/internal/errors"
	"github.com/pagehost/pagehost/pkg/access"
	"github.com/pagehost/pagehost/pkg/provider"
)

// tokenQueryParam carries the access token for guarded pages.
const tokenQueryParam = "token"

// PageHandler serves published pages out of the object store. Every read is
// authorized against the policy stored on the object itself, so the gate
// needs no datastore of its own.
type PageHandler struct {
	store     provider.Provider
	validator *access.Validator
	logger    *zap.Logger
}

// NewPageHandler returns a handler reading from store.
func NewPageHandler(store provider.Provider, logger *zap.Logger) *PageHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageHandler{
		store:     store,
		validator: access.NewValidator(store),
		logger:    logger,
	}
}

// ServePage handles page reads. The object key is the full remaining path,
// since keys published under a prefix span several segments. Denied reads
// produce the same JSON error envelope regardless of whether the token was
// missing or wrong.
func (h *PageHandler) ServePage(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if key == "" {
		apperrors.WriteJSONError(w, http.StatusNotFound, apperrors.CodeNotFound, "not found")
		return
	}
	token := r.URL.Query().Get(tokenQueryParam)

	decision, err := h.validator.Authorize(r.Context(), key, token)
	if err != nil {
		h.logger.Warn("authorization failed", zap.String("key", key), zap.Error(err))
		respondWithError(w, r, err)
		return
	}

	switch decision {
	case access.DecisionAllow:
	case access.DecisionDenyNotFound:
		apperrors.WriteJSONError(w, http.StatusNotFound, apperrors.CodeNotFound, "not found")
		return
	default:
		apperrors.WriteJSONError(w, http.StatusForbidden, apperrors.CodeAccessDenied, "access denied")
		return
	}

	getter, ok := h.store.(provider.ObjectGetter)
	if !ok {
		respondWithError(w, r, fmt.Errorf("store cannot stream objects: %w", provider.ErrNotSupported))
		return
	}

	body, meta, err := getter.GetObject(r.Context(), key)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	defer body.Close()

	if meta.ContentType != "" {
		w.Header().Set("Content-Type", meta.ContentType)
	}
	if meta.CacheControl != "" {
		w.Header().Set("Cache-Control", meta.CacheControl)
	}
	if meta.ETag != "" {
		w.Header().Set("ETag", meta.ETag)
	}
	if meta.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	}

	if r.Method == http.MethodHead {
		return
	}

	if _, err := io.Copy(w, body); err != nil {
		// Headers are already out, nothing useful can be sent to the
		// client at this point.
		h.logger.Warn("page stream interrupted", zap.String("key", key), zap.Error(err))
	}
}
