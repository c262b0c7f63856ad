package cmd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCheckHealth(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus string
		wantErr    string
	}{
		{name: "healthy", status: http.StatusOK, body: `{"status":"healthy"}`, wantStatus: "healthy"},
		{name: "degraded counts as up", status: http.StatusOK, body: `{"status":"degraded","checks":{"job_queue":{"status":"warn"}}}`, wantStatus: "degraded"},
		{name: "unhealthy", status: http.StatusServiceUnavailable, body: `{"status":"unhealthy"}`, wantStatus: "unhealthy", wantErr: "status 503"},
		{name: "shutting down", status: http.StatusServiceUnavailable, body: `{"status":"shutting_down"}`, wantStatus: "shutting_down", wantErr: "status 503"},
		{name: "invalid body", status: http.StatusOK, body: `not json`, wantErr: "invalid health response"},
		{name: "unknown status", status: http.StatusOK, body: `{"status":"maybe"}`, wantStatus: "maybe", wantErr: "status=maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/readyz" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			status, err := checkHealth(context.Background(), server.URL+"/readyz", time.Second)
			if status != tt.wantStatus {
				t.Errorf("status = %q, want %q", status, tt.wantStatus)
			}
			switch {
			case tt.wantErr == "" && err != nil:
				t.Errorf("unexpected error: %v", err)
			case tt.wantErr != "" && (err == nil || !strings.Contains(err.Error(), tt.wantErr)):
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestCheckHealthUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL + "/readyz"
	server.Close()

	if _, err := checkHealth(context.Background(), url, time.Second); err == nil {
		t.Fatal("expected error for unreachable server")
	}
}

func TestHealthcheckCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer server.Close()

	output, err := execute(t, "healthcheck", "--url", server.URL+"/readyz")
	if err != nil {
		t.Fatalf("healthcheck failed: %v", err)
	}
	if !strings.Contains(output, "status: healthy") {
		t.Errorf("unexpected output: %s", output)
	}
}
