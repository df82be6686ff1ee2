package filegate_test

import (
	"context"
	"errors"
	"io"
	"path"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gobeaver/filegate"
	"github.com/gobeaver/filegate/driver/memory"
	"github.com/gobeaver/filegate/filevalidator"
)

func keys(results []filegate.BatchResult) []string {
	var out []string
	for _, r := range results {
		out = append(out, r.Upload.Key)
	}
	sort.Strings(out)
	return out
}

func TestInboxScan(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	// Without relocation objects stay put, so the seen set decides
	g, err := filegate.NewGate(f.buckets, filevalidator.NewDefault())
	require.NoError(t, err)

	f.put(t, "inbox/a.pdf", samplePDF)
	f.put(t, "inbox/2024/b.pdf", samplePDF)
	f.put(t, "inbox/notes.txt", "notes")
	f.put(t, "elsewhere/c.pdf", samplePDF)

	in, err := filegate.NewInbox(g, f.buckets, "incoming",
		filegate.WithInboxPrefix("inbox"),
		filegate.WithInboxPattern("*.pdf"),
		filegate.WithDocumentCategory("invoice"),
		filegate.WithInboxConcurrency(2),
	)
	require.NoError(t, err)

	results, err := in.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"inbox/2024/b.pdf", "inbox/a.pdf"}, keys(results))
	for _, r := range results {
		assert.Equal(t, "invoice", r.Upload.DocumentCategory)
		assert.Equal(t, "incoming", r.Upload.Bucket)
		assert.Equal(t, filevalidator.MIMETypePDF, r.Upload.ContentType)
		require.NotNil(t, r.Decision)
		assert.Equal(t, filegate.StatusValidated, r.Decision.Status)
		assert.Equal(t, path.Base(r.Upload.Key), r.Upload.OriginalFilename)
	}

	// Nothing new
	results, err = in.Scan(ctx)
	require.NoError(t, err)
	assert.Empty(t, results)

	// A rewritten object counts as new
	require.NoError(t, f.incoming.Write(ctx, "inbox/a.pdf", stringsReader(infectedPDF), filegate.WithOverwrite(true)))
	results, err = in.Scan(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"inbox/a.pdf"}, keys(results))
	assert.Equal(t, filegate.StatusQuarantined, results[0].Decision.Status)
}

func TestInboxScanMissingPrefix(t *testing.T) {
	f := newFixture(t)
	in, err := filegate.NewInbox(f.gate(t), f.buckets, "incoming", filegate.WithInboxPrefix("not-yet"))
	require.NoError(t, err)

	results, err := in.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestNewInbox(t *testing.T) {
	f := newFixture(t)
	_, err := filegate.NewInbox(nil, f.buckets, "incoming")
	assert.Error(t, err)
	_, err = filegate.NewInbox(f.gate(t), f.buckets, "missing")
	assert.ErrorIs(t, err, filegate.ErrUnknownBucket)
}

// runInbox starts in.Run and returns a stop function that waits for it
func runInbox(t *testing.T, in *filegate.Inbox) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- in.Run(ctx) }()
	return func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("inbox did not stop")
		}
	}
}

func notified(n *recordingNotifier, key string) bool {
	for _, sent := range n.all() {
		if sent.Key == key {
			return true
		}
	}
	return false
}

func TestInboxRunWatch(t *testing.T) {
	f := newFixture(t)
	f.put(t, "early.pdf", samplePDF)
	notifier := &recordingNotifier{}
	g := f.gate(t, filegate.WithNotifier(notifier))

	in, err := filegate.NewInbox(g, f.buckets, "incoming", filegate.WithInboxPattern("*.pdf"))
	require.NoError(t, err)
	stop := runInbox(t, in)
	defer stop()

	assert.Eventually(t, func() bool { return notified(notifier, "early.pdf") }, 2*time.Second, 10*time.Millisecond)

	// Keep uploading until the watcher picks it up, so the test does not
	// depend on when the watch was registered
	assert.Eventually(t, func() bool {
		if notified(notifier, "late.pdf") {
			return true
		}
		_ = f.incoming.Write(context.Background(), "late.pdf", stringsReader(samplePDF), filegate.WithOverwrite(true))
		return false
	}, 2*time.Second, 20*time.Millisecond)

	exists, _ := f.validated.FileExists(context.Background(), "late.pdf")
	assert.True(t, exists)
}

func TestInboxRunPolling(t *testing.T) {
	f := newFixture(t)
	// ValidatedFileSystem does not forward CanWatch, which forces polling
	incoming := filegate.NewValidatedFileSystem(memory.New(), filevalidator.NewDefault())
	buckets := filegate.NewBuckets()
	require.NoError(t, buckets.Mount("incoming", incoming))
	require.NoError(t, buckets.Mount("validated", f.validated))
	require.NoError(t, buckets.Mount("quarantine", f.quarantine))

	notifier := &recordingNotifier{}
	g, err := filegate.NewGate(buckets, filevalidator.NewDefault(),
		filegate.WithRelocator(f.relocator),
		filegate.WithNotifier(notifier),
	)
	require.NoError(t, err)

	in, err := filegate.NewInbox(g, buckets, "incoming", filegate.WithPollInterval(10*time.Millisecond))
	require.NoError(t, err)
	stop := runInbox(t, in)
	defer stop()

	require.NoError(t, incoming.Write(context.Background(), "polled.pdf", stringsReader(samplePDF)))
	assert.Eventually(t, func() bool { return notified(notifier, "polled.pdf") }, 2*time.Second, 10*time.Millisecond)
}

func TestInboxSkipsNamespacesInsideBucket(t *testing.T) {
	ctx := context.Background()
	fs := memory.New()
	buckets := filegate.NewBuckets()
	require.NoError(t, buckets.Mount("store", fs))
	relocator, err := filegate.NewRelocator(
		filegate.Namespace{FS: fs, Bucket: "store", Prefix: "validated"},
		filegate.Namespace{FS: fs, Bucket: "store", Prefix: "quarantine"},
	)
	require.NoError(t, err)
	notifier := &recordingNotifier{}
	g, err := filegate.NewGate(buckets, filevalidator.NewDefault(),
		filegate.WithRelocator(relocator), filegate.WithNotifier(notifier))
	require.NoError(t, err)

	require.NoError(t, fs.Write(ctx, "bad.txt", stringsReader("meeting notes")))
	require.NoError(t, fs.Write(ctx, "good.pdf", stringsReader(samplePDF)))

	in, err := filegate.NewInbox(g, buckets, "store")
	require.NoError(t, err)

	results, err := in.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bad.txt", "good.pdf"}, keys(results))

	for i := 0; i < 2; i++ {
		results, err = in.Scan(ctx)
		require.NoError(t, err)
		assert.Empty(t, results)
	}

	for _, key := range []string{"quarantine/bad.txt", "validated/good.pdf"} {
		exists, _ := fs.FileExists(ctx, key)
		assert.True(t, exists, key)
	}
	exists, _ := fs.FileExists(ctx, "quarantine/quarantine/bad.txt")
	assert.False(t, exists)
	assert.Len(t, notifier.all(), 2)
}

// flakyFS fails writes while fail is set
type flakyFS struct {
	*memory.Adapter
	fail atomic.Bool
}

func (f *flakyFS) Write(ctx context.Context, path string, content io.Reader, options ...filegate.Option) error {
	if f.fail.Load() {
		return errors.New("disk full")
	}
	return f.Adapter.Write(ctx, path, content, options...)
}

func TestInboxRetriesUnrelocatedUploads(t *testing.T) {
	ctx := context.Background()
	incoming := memory.New()
	validated := &flakyFS{Adapter: memory.New()}
	validated.fail.Store(true)

	buckets := filegate.NewBuckets()
	require.NoError(t, buckets.Mount("incoming", incoming))
	relocator, err := filegate.NewRelocator(
		filegate.Namespace{FS: validated, Bucket: "validated"},
		filegate.Namespace{FS: memory.New(), Bucket: "quarantine"},
	)
	require.NoError(t, err)
	g, err := filegate.NewGate(buckets, filevalidator.NewDefault(), filegate.WithRelocator(relocator))
	require.NoError(t, err)
	in, err := filegate.NewInbox(g, buckets, "incoming")
	require.NoError(t, err)

	require.NoError(t, incoming.Write(ctx, "a.pdf", stringsReader(samplePDF)))

	results, err := in.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.ErrorContains(t, results[0].Err, "disk full")
	assert.True(t, results[0].Decision.Location.IsZero())

	validated.fail.Store(false)
	results, err = in.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, "validated/a.pdf", results[0].Decision.Location.String())

	results, err = in.Scan(ctx)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestInboxRetriesAdmissionsWithoutDecision(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	var interrupted atomic.Bool
	interrupt := func(next filegate.AdmitFunc) filegate.AdmitFunc {
		return func(ctx context.Context, u filegate.Upload) (*filegate.Decision, error) {
			if interrupted.CompareAndSwap(false, true) {
				return nil, context.DeadlineExceeded
			}
			return next(ctx, u)
		}
	}
	in, err := filegate.NewInbox(f.gate(t, filegate.WithMiddleware(interrupt)), f.buckets, "incoming")
	require.NoError(t, err)
	f.put(t, "a.pdf", samplePDF)

	results, err := in.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Nil(t, results[0].Decision)
	assert.ErrorIs(t, results[0].Err, context.DeadlineExceeded)

	results, err = in.Scan(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a.pdf"}, keys(results))
	assert.Equal(t, filegate.StatusValidated, results[0].Decision.Status)
}
