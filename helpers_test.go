package filegate_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gobeaver/filegate"
	"github.com/gobeaver/filegate/driver/memory"
	"github.com/gobeaver/filegate/filevalidator"
)

const samplePDF = "%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n"

var infectedPDF = "%PDF-1.4\n" + filevalidator.EICARTestString + "\n%%EOF\n"

// fixture is a gate over three in-memory buckets
type fixture struct {
	buckets    *filegate.Buckets
	incoming   *memory.Adapter
	validated  *memory.Adapter
	quarantine *memory.Adapter
	relocator  *filegate.Relocator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		buckets:    filegate.NewBuckets(),
		incoming:   memory.New(),
		validated:  memory.New(),
		quarantine: memory.New(),
	}
	require.NoError(t, f.buckets.Mount("incoming", f.incoming))
	require.NoError(t, f.buckets.Mount("validated", f.validated))
	require.NoError(t, f.buckets.Mount("quarantine", f.quarantine))

	var err error
	f.relocator, err = filegate.NewRelocator(
		filegate.Namespace{FS: f.validated, Bucket: "validated"},
		filegate.Namespace{FS: f.quarantine, Bucket: "quarantine"},
	)
	require.NoError(t, err)
	return f
}

func (f *fixture) put(t *testing.T, key, content string) {
	t.Helper()
	require.NoError(t, f.incoming.Write(context.Background(), key, strings.NewReader(content)))
}

func (f *fixture) gate(t *testing.T, opts ...filegate.GateOption) *filegate.Gate {
	t.Helper()
	base := []filegate.GateOption{filegate.WithRelocator(f.relocator)}
	g, err := filegate.NewGate(f.buckets, filevalidator.NewDefault(), append(base, opts...)...)
	require.NoError(t, err)
	return g
}

// recordingNotifier keeps every notification it receives
type recordingNotifier struct {
	mu   sync.Mutex
	sent []filegate.Notification
}

func (r *recordingNotifier) Notify(ctx context.Context, n filegate.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingNotifier) all() []filegate.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]filegate.Notification(nil), r.sent...)
}

func stringsReader(s string) *strings.Reader {
	return strings.NewReader(s)
}
