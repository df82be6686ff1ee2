package filevalidator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newClamAVServer(t *testing.T, status int, respond func(content []byte) map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/scan" {
			http.NotFound(w, r)
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		content, _ := io.ReadAll(file)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(respond(content))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRemoteScanner_Scan(t *testing.T) {
	clamLike := func(content []byte) map[string]string {
		if strings.Contains(string(content), EICARTestString) {
			return map[string]string{"status": "FOUND", "message": "Eicar-Test-Signature", "time": "0.001"}
		}
		return map[string]string{"status": "OK", "message": "", "time": "0.001"}
	}

	tests := []struct {
		name       string
		status     int
		respond    func([]byte) map[string]string
		data       []byte
		wantClean  bool
		wantThreat string
		wantErr    string
	}{
		{name: "clean", status: http.StatusOK, respond: clamLike, data: samplePDF, wantClean: true},
		{name: "infected", status: http.StatusOK, respond: clamLike, data: []byte(EICARTestString), wantThreat: "Eicar-Test-Signature"},
		{
			name:   "service error",
			status: http.StatusOK,
			respond: func([]byte) map[string]string {
				return map[string]string{"status": "ERROR", "message": "database outdated"}
			},
			data:    samplePDF,
			wantErr: "database outdated",
		},
		{
			name:    "unknown status",
			status:  http.StatusOK,
			respond: func([]byte) map[string]string { return map[string]string{"status": "MAYBE"} },
			data:    samplePDF,
			wantErr: "unknown status",
		},
		{
			name:    "http failure",
			status:  http.StatusServiceUnavailable,
			respond: clamLike,
			data:    samplePDF,
			wantErr: "unexpected status 503",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newClamAVServer(t, tt.status, tt.respond)
			scanner := NewRemoteScanner(RemoteScannerConfig{URL: server.URL + "/", Timeout: 5 * time.Second})

			result, err := scanner.Scan(context.Background(), tt.data)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Scan() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Scan() error = %v", err)
			}
			if result.Clean != tt.wantClean || result.ThreatName != tt.wantThreat {
				t.Errorf("Scan() = %+v", result)
			}
		})
	}
}

func TestRemoteScanner_UnreachableBecomesValidationError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	validator := New(DefaultOptions(), WithScanner(NewRemoteScanner(RemoteScannerConfig{URL: url})))
	result := validator.ValidateBytes(samplePDF, MIMETypePDF)

	if result.IsValid {
		t.Fatal("scanner failure must invalidate the result")
	}
	if len(result.Errors) != 1 || !strings.HasPrefix(result.Errors[0], "validation error: remote scan:") {
		t.Errorf("Errors = %q", result.Errors)
	}
	if result.Fingerprint == "" {
		t.Error("pipeline should continue after scanner failure")
	}
}
