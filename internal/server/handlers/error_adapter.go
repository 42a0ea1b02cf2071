package handlers

import (
	"net/http"

	apperrors "github.com/pagehost/pagehost/internal/errors"
)

// HTTPErrorResponder maps an error to an HTTP response.
type HTTPErrorResponder func(w http.ResponseWriter, r *http.Request, err error)

// httpErrorResponder is the responder used by all handlers in this
// package. Tests swap it to observe error paths without decoding JSON.
var httpErrorResponder HTTPErrorResponder = defaultHTTPErrorResponder

func defaultHTTPErrorResponder(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}

// SetHTTPErrorResponder replaces the responder. Passing nil restores the
// default.
func SetHTTPErrorResponder(f HTTPErrorResponder) {
	if f == nil {
		httpErrorResponder = defaultHTTPErrorResponder
		return
	}
	httpErrorResponder = f
}

// ResetHTTPErrorResponder restores the default responder.
func ResetHTTPErrorResponder() {
	httpErrorResponder = defaultHTTPErrorResponder
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	httpErrorResponder(w, r, err)
}
