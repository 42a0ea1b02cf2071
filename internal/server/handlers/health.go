// Package handlers implements the HTTP handlers served by the gate.
package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"sync"
	"time"

	fulmenerrors "github.com/fulmenhq/gofulmen/errors"
)

// HealthChecker reports the health of a single dependency.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// HealthResponse is the JSON body returned by the health endpoints.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
	statusTimeout   = "timeout"

	// checkTimeout bounds each individual checker so one stuck
	// dependency cannot hang the whole probe.
	checkTimeout = 2 * time.Second
)

// HealthManager runs registered checkers and serves the health endpoints.
type HealthManager struct {
	mu       sync.RWMutex
	version  string
	checkers map[string]HealthChecker
}

// NewHealthManager returns a manager with no checkers registered.
func NewHealthManager(version string) *HealthManager {
	return &HealthManager{
		version:  version,
		checkers: make(map[string]HealthChecker),
	}
}

// RegisterChecker adds a named checker. Registering the same name again
// replaces the previous checker.
func (m *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers[name] = checker
}

// HealthHandler reports aggregate health across all registered checkers.
func (m *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	m.serveChecks(w, r)
}

// LivenessHandler reports whether the process is alive. It never consults
// checkers, so a failing dependency cannot get the process restarted.
func (m *HealthManager) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	m.writeStatus(w, statusHealthy, nil)
}

// ReadinessHandler reports whether the gate should receive traffic.
func (m *HealthManager) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	m.serveChecks(w, r)
}

// StartupHandler reports whether startup has completed.
func (m *HealthManager) StartupHandler(w http.ResponseWriter, r *http.Request) {
	m.serveChecks(w, r)
}

func (m *HealthManager) serveChecks(w http.ResponseWriter, r *http.Request) {
	checks := m.runChecks(r.Context())
	status := m.determineOverallStatus(checks)

	if status == statusUnhealthy {
		writeHealthError(w, "one or more health checks failed", checks)
		return
	}

	m.writeStatus(w, status, checks)
}

// runChecks runs every registered checker with a per-check timeout and
// returns the result of each by name.
func (m *HealthManager) runChecks(ctx context.Context) map[string]string {
	m.mu.RLock()
	checkers := make(map[string]HealthChecker, len(m.checkers))
	for name, checker := range m.checkers {
		checkers[name] = checker
	}
	m.mu.RUnlock()

	checks := make(map[string]string, len(checkers))
	for name, checker := range checkers {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := checker.CheckHealth(checkCtx)
		cancel()

		switch {
		case err == nil:
			checks[name] = statusHealthy
		case stderrors.Is(err, context.DeadlineExceeded):
			checks[name] = statusTimeout
		default:
			checks[name] = statusUnhealthy
		}
	}

	return checks
}

// determineOverallStatus folds individual check results into one status.
// Any unhealthy check makes the gate unhealthy. Timeouts alone degrade
// the gate but keep it serving.
func (m *HealthManager) determineOverallStatus(checks map[string]string) string {
	status := statusHealthy
	for _, result := range checks {
		switch result {
		case statusUnhealthy:
			return statusUnhealthy
		case statusTimeout:
			status = statusDegraded
		}
	}
	return status
}

func (m *HealthManager) writeStatus(w http.ResponseWriter, status string, checks map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(HealthResponse{
		Status:  status,
		Version: m.version,
		Checks:  checks,
	})
}

type healthErrorResponse struct {
	Error healthErrorDetail `json:"error"`
}

type healthErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// writeHealthError renders a 503 with the failing checks attached as
// envelope context.
func writeHealthError(w http.ResponseWriter, message string, checks map[string]string) {
	envelope := fulmenerrors.NewErrorEnvelope("SERVICE_UNAVAILABLE", message)
	if checks != nil {
		envelope, _ = envelope.WithContext(map[string]interface{}{
			"checks": checks,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	_ = json.NewEncoder(w).Encode(healthErrorResponse{
		Error: healthErrorDetail{
			Code:    envelope.Code,
			Message: envelope.Message,
			Details: envelope.Context,
		},
	})
}

// globalHealthManager backs the package-level handler functions used when
// routes are wired before the manager exists.
var globalHealthManager *HealthManager

// InitHealthManager creates the process-wide health manager.
func InitHealthManager(version string) {
	globalHealthManager = NewHealthManager(version)
}

// GetHealthManager returns the process-wide manager, or nil before
// InitHealthManager has run.
func GetHealthManager() *HealthManager {
	return globalHealthManager
}

// HealthHandler serves aggregate health from the process-wide manager.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	if globalHealthManager == nil {
		writeHealthError(w, "health manager not initialized", nil)
		return
	}
	globalHealthManager.HealthHandler(w, r)
}

// LivenessHandler serves liveness from the process-wide manager.
func LivenessHandler(w http.ResponseWriter, r *http.Request) {
	if globalHealthManager == nil {
		writeHealthError(w, "health manager not initialized", nil)
		return
	}
	globalHealthManager.LivenessHandler(w, r)
}

// ReadinessHandler serves readiness from the process-wide manager.
func ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	if globalHealthManager == nil {
		writeHealthError(w, "health manager not initialized", nil)
		return
	}
	globalHealthManager.ReadinessHandler(w, r)
}

// StartupHandler serves startup state from the process-wide manager.
func StartupHandler(w http.ResponseWriter, r *http.Request) {
	if globalHealthManager == nil {
		writeHealthError(w, "health manager not initialized", nil)
		return
	}
	globalHealthManager.StartupHandler(w, r)
}
