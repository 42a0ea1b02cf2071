package handlers

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync"
)

// VersionInfo describes the running build.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
	GoVersion string `json:"go_version"`
}

var (
	versionMu sync.RWMutex
	buildInfo = VersionInfo{Version: "dev"}
)

// SetVersionInfo records the build identity served by VersionHandler.
func SetVersionInfo(version, commit, buildDate string) {
	versionMu.Lock()
	defer versionMu.Unlock()
	buildInfo = VersionInfo{Version: version, Commit: commit, BuildDate: buildDate}
}

// VersionHandler reports the running build as JSON.
func VersionHandler(w http.ResponseWriter, r *http.Request) {
	versionMu.RLock()
	info := buildInfo
	versionMu.RUnlock()
	info.GoVersion = runtime.Version()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(info)
}
