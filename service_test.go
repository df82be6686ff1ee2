package filegate_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gobeaver/filegate"
	_ "github.com/gobeaver/filegate/driver/local"
	_ "github.com/gobeaver/filegate/driver/memory"
	"github.com/gobeaver/filegate/filevalidator"
	_ "github.com/gobeaver/filegate/notify"
	"github.com/gobeaver/filegate/store"
)

func memoryConfig() *filegate.Config {
	return &filegate.Config{
		Driver:           "memory",
		IncomingBucket:   "incoming",
		ValidatedBucket:  "validated",
		QuarantineBucket: "quarantine",
		ThreatScan:       true,
		Fingerprint:      true,
		StoreDriver:      "memory",
		Notifier:         "none",
		AdmitConcurrency: 2,
	}
}

func TestOpenMemory(t *testing.T) {
	ctx := context.Background()
	svc, err := filegate.Open(memoryConfig())
	require.NoError(t, err)
	defer svc.Close()

	assert.Equal(t, []string{"incoming", "quarantine", "validated"}, svc.Buckets.Names())
	assert.IsType(t, &store.Memory{}, svc.Store)
	assert.Nil(t, svc.Notifier)

	incoming, err := svc.Buckets.Bucket("incoming")
	require.NoError(t, err)
	require.NoError(t, incoming.Write(ctx, "a.pdf", stringsReader(samplePDF)))
	require.NoError(t, incoming.Write(ctx, "b.pdf", stringsReader(infectedPDF)))

	in, err := svc.Inbox()
	require.NoError(t, err)
	results, err := in.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)

	statuses := map[string]filegate.Status{}
	for _, r := range results {
		require.NoError(t, r.Err)
		statuses[r.Upload.Key] = r.Decision.Status
	}
	assert.Equal(t, map[string]filegate.Status{
		"a.pdf": filegate.StatusValidated,
		"b.pdf": filegate.StatusQuarantined,
	}, statuses)

	quarantine, _ := svc.Buckets.Bucket("quarantine")
	exists, _ := quarantine.FileExists(ctx, "b.pdf")
	assert.True(t, exists)
	assert.Equal(t, 2, svc.Store.(*store.Memory).Len())
}

func TestOpenLocalWithSQLite(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	cfg := memoryConfig()
	cfg.Driver = "local"
	cfg.LocalBasePath = base
	cfg.QuarantinePrefix = "held"
	cfg.StoreDriver = "sqlite"
	cfg.StoreDSN = filepath.Join(base, "records.db")
	cfg.Notifier = "log"

	svc, err := filegate.Open(cfg)
	require.NoError(t, err)
	defer svc.Close()
	assert.NotNil(t, svc.Notifier)

	require.NoError(t, os.WriteFile(filepath.Join(base, "incoming", "scan.pdf"), []byte(infectedPDF), 0o644))

	d, err := svc.Gate.Admit(ctx, filegate.Upload{Bucket: "incoming", Key: "scan.pdf"})
	require.NoError(t, err)
	assert.Equal(t, filegate.StatusQuarantined, d.Status)
	assert.Equal(t, "quarantine/held/scan.pdf", d.Location.String())
	assert.FileExists(t, filepath.Join(base, "quarantine", "held", "scan.pdf"))
	assert.NoFileExists(t, filepath.Join(base, "incoming", "scan.pdf"))

	rec, err := svc.Store.FindByFingerprint(ctx, d.Result.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, d.UploadID, rec.UploadID)
	assert.Equal(t, d.Result.Errors, rec.Result.Errors)
}

func TestOpenInvalidConfig(t *testing.T) {
	cfg := memoryConfig()
	cfg.Driver = "ftp"
	_, err := filegate.Open(cfg)
	assert.ErrorIs(t, err, filegate.ErrUnknownDriver)

	cfg = memoryConfig()
	cfg.SignaturesFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = filegate.Open(cfg)
	assert.ErrorContains(t, err, "failed to load signatures")
}

func TestNewValidatorSignatures(t *testing.T) {
	sigs := filepath.Join(t.TempDir(), "sigs.yaml")
	require.NoError(t, os.WriteFile(sigs, []byte("signatures:\n  - name: Acme-Macro\n    pattern: ACME-MACRO-LOADER\n"), 0o644))

	cfg := memoryConfig()
	cfg.SignaturesFile = sigs
	v, err := filegate.NewValidator(cfg)
	require.NoError(t, err)

	result := v.ValidateBytes([]byte("%PDF-1.4\nACME-MACRO-LOADER\n%%EOF\n"), filevalidator.MIMETypePDF)
	assert.Contains(t, result.Errors, "Threat detected: Acme-Macro")

	// Built-in signatures still apply
	result = v.ValidateBytes([]byte(infectedPDF), filevalidator.MIMETypePDF)
	assert.Contains(t, result.Errors, "Threat detected: EICAR-Test-File")
}

func TestNewValidatorRemoteScanner(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		content, _ := io.ReadAll(file)
		resp := map[string]string{"status": "OK"}
		if strings.Contains(string(content), "REMOTE-ONLY") {
			resp = map[string]string{"status": "FOUND", "message": "Remote.Marker"}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	cfg := memoryConfig()
	cfg.ClamAVURL = server.URL
	v, err := filegate.NewValidator(cfg)
	require.NoError(t, err)

	result := v.ValidateBytes([]byte("%PDF-1.4\nREMOTE-ONLY\n%%EOF\n"), filevalidator.MIMETypePDF)
	assert.Contains(t, result.Errors, "Threat detected: Remote.Marker")

	result = v.ValidateBytes([]byte(samplePDF), filevalidator.MIMETypePDF)
	assert.True(t, result.IsValid, result.Errors)
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv("BEAVER_FILEGATE_DRIVER", "memory")
	t.Setenv("BEAVER_FILEGATE_NOTIFIER", "none")

	g, err := filegate.NewFromEnv()
	require.NoError(t, err)
	assert.NotNil(t, g)

	g, err = filegate.WithPrefix("BEAVER_").New()
	require.NoError(t, err)
	assert.NotNil(t, g)
}
