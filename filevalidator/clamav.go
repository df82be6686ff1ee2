package filevalidator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const (
	defaultRemoteScanTimeout = 30 * time.Second
	defaultRemoteScanPath    = "/api/v1/scan"
)

// RemoteScannerConfig configures a RemoteScanner
type RemoteScannerConfig struct {
	// URL is the base URL of the scanning service (e.g., "http://clamav:3000")
	URL string
	// Path overrides the scan endpoint. Default: "/api/v1/scan"
	Path string
	// Timeout bounds a single scan request. Default: 30s
	Timeout time.Duration
	// Client overrides the HTTP client; Timeout is ignored when set
	Client *http.Client
}

// RemoteScanner submits content to a ClamAV REST service. The service
// answers with {"status": "OK"|"FOUND"|"ERROR", "message": ..., "time": ...}.
type RemoteScanner struct {
	endpoint string
	client   *http.Client
}

// NewRemoteScanner creates a scanner for a ClamAV REST endpoint
func NewRemoteScanner(cfg RemoteScannerConfig) *RemoteScanner {
	if cfg.Path == "" {
		cfg.Path = defaultRemoteScanPath
	}
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = defaultRemoteScanTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &RemoteScanner{
		endpoint: strings.TrimRight(cfg.URL, "/") + cfg.Path,
		client:   client,
	}
}

type remoteScanResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Time    string `json:"time,omitempty"`
}

// Scan implements ThreatScanner
func (s *RemoteScanner) Scan(ctx context.Context, data []byte) (ScanResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "upload")
	if err != nil {
		return ScanResult{}, fmt.Errorf("remote scan: build request: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return ScanResult{}, fmt.Errorf("remote scan: build request: %w", err)
	}
	if err := mw.Close(); err != nil {
		return ScanResult{}, fmt.Errorf("remote scan: build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, &body)
	if err != nil {
		return ScanResult{}, fmt.Errorf("remote scan: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return ScanResult{}, fmt.Errorf("remote scan: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1*MB))
	if err != nil {
		return ScanResult{}, fmt.Errorf("remote scan: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return ScanResult{}, fmt.Errorf("remote scan: unexpected status %d", resp.StatusCode)
	}

	var scan remoteScanResponse
	if err := json.Unmarshal(payload, &scan); err != nil {
		return ScanResult{}, fmt.Errorf("remote scan: decode response: %w", err)
	}

	switch strings.ToUpper(scan.Status) {
	case "OK":
		return ScanResult{Clean: true}, nil
	case "FOUND":
		name := scan.Message
		if name == "" {
			name = "unknown threat"
		}
		return ScanResult{Clean: false, ThreatName: name}, nil
	case "ERROR":
		return ScanResult{}, fmt.Errorf("remote scan: service error: %s", scan.Message)
	default:
		return ScanResult{}, fmt.Errorf("remote scan: unknown status %q", scan.Status)
	}
}
