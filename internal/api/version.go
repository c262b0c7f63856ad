package api

import (
	"encoding/json"
	"net/http"
	"runtime"
)

// APIVersion is the path prefix version served by this build.
const APIVersion = "v1"

// BuildInfo is stamped via ldflags; empty fields fall back to dev values.
type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildDate string `json:"buildDate"`
}

func (b BuildInfo) withDefaults() BuildInfo {
	if b.Version == "" {
		b.Version = "dev"
	}
	if b.GitCommit == "" {
		b.GitCommit = "unknown"
	}
	if b.BuildDate == "" {
		b.BuildDate = "unknown"
	}
	return b
}

type versionResponse struct {
	BuildInfo
	GoVersion   string `json:"goVersion"`
	APIVersion  string `json:"apiVersion"`
	Environment string `json:"environment"`
}

// VersionHandler serves build metadata. The body never changes, so it is
// encoded once.
func VersionHandler(info BuildInfo, env string) http.Handler {
	body, err := json.Marshal(versionResponse{
		BuildInfo:   info.withDefaults(),
		GoVersion:   runtime.Version(),
		APIVersion:  APIVersion,
		Environment: env,
	})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err != nil {
			http.Error(w, "version unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	})
}
