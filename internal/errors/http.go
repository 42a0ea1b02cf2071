package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io/fs"
	"net/http"

	"github.com/pagehost/pagehost/pkg/provider"
)

// Error codes carried in the gate's JSON error envelope.
const (
	CodeAccessDenied       = "ACCESS_DENIED"
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeInternal           = "INTERNAL"
)

// HTTPErrorResponse is the JSON error envelope returned by the gate.
type HTTPErrorResponse struct {
	Error HTTPError `json:"error"`
}

// HTTPError carries the machine-readable code and a human message.
type HTTPError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSONError writes the standard error envelope with the given status.
func WriteJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(HTTPErrorResponse{
		Error: HTTPError{Code: code, Message: message},
	})
}

// RespondWithError maps err onto the gate's HTTP error contract.
//
// Authorization failures answer 403, so a guarded page looks the same as a
// bucket-level denial. Unknown objects answer 404. Everything else answers
// 500 with no detail leaked to the client.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case err == nil:
		return
	case IsAuthorization(err), provider.IsAccessDenied(err), provider.IsInvalidCredentials(err):
		WriteJSONError(w, http.StatusForbidden, CodeAccessDenied, "access denied")
	case provider.IsNotFound(err), provider.IsBucketNotFound(err), stderrors.Is(err, fs.ErrNotExist):
		WriteJSONError(w, http.StatusNotFound, CodeNotFound, "not found")
	case IsInput(err):
		WriteJSONError(w, http.StatusBadRequest, CodeInvalidInput, err.Error())
	case provider.IsThrottled(err), stderrors.Is(err, context.DeadlineExceeded):
		WriteJSONError(w, http.StatusServiceUnavailable, CodeServiceUnavailable, "temporarily unavailable")
	default:
		WriteJSONError(w, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}
