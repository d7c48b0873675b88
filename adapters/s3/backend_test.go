package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gostratum/metricsx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docshost/blobstore"
)

// fakeS3 implements s3API in memory with per-key failure injection.
type fakeS3 struct {
	mu          sync.Mutex
	objects     map[string]fakeObject
	putFailures map[string]int
	putCalls    map[string]int
}

type fakeObject struct {
	data            []byte
	contentType     string
	contentEncoding string
	lastModified    *time.Time
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		objects:     make(map[string]fakeObject),
		putFailures: make(map[string]int),
		putCalls:    make(map[string]int),
	}
}

func (f *fakeS3) seed(key string, obj fakeObject) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = obj
}

func (f *fakeS3) failPuts(key string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putFailures[key] = n
}

func (f *fakeS3) calls(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.putCalls[key]
}

func (f *fakeS3) GetObject(ctx context.Context, in *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	obj, exists := f.objects[aws.ToString(in.Key)]
	if !exists {
		return nil, &types.NoSuchKey{}
	}

	out := &awss3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(obj.data)),
		ContentLength: aws.Int64(int64(len(obj.data))),
		LastModified:  obj.lastModified,
	}
	if obj.contentType != "" {
		out.ContentType = aws.String(obj.contentType)
	}
	if obj.contentEncoding != "" {
		out.ContentEncoding = aws.String(obj.contentEncoding)
	}
	return out, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
	key := aws.ToString(in.Key)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.putCalls[key]++

	if remaining := f.putFailures[key]; remaining > 0 {
		f.putFailures[key] = remaining - 1
		return nil, fmt.Errorf("injected put failure for %s", key)
	}

	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	f.objects[key] = fakeObject{
		data:            data,
		contentType:     aws.ToString(in.ContentType),
		contentEncoding: aws.ToString(in.ContentEncoding),
		lastModified:    &now,
	}
	return &awss3.PutObjectOutput{}, nil
}

func testConfig() *blobstore.Config {
	cfg := blobstore.DefaultConfig()
	cfg.MaxUploadAttempts = 3
	cfg.MaxConcurrentUploads = 4
	cfg.BackoffInitial = 0 // keep retry rounds immediate in tests
	return cfg
}

func newTestBackend(t *testing.T, client s3API, cfg *blobstore.Config) *Backend {
	t.Helper()
	effective, options := blobstore.GetEffectiveConfig(cfg)
	return newBackendWithClient(client, effective, options)
}

func TestGetRoundTrip(t *testing.T) {
	fake := newFakeS3()
	stamp := time.Date(2018, time.April, 16, 4, 33, 50, 0, time.UTC)
	fake.seed("crate/1.0.0/index.html", fakeObject{
		data:            []byte("<h1>docs</h1>"),
		contentType:     "text/html",
		contentEncoding: "gzip",
		lastModified:    &stamp,
	})
	backend := newTestBackend(t, fake, testConfig())

	blob, err := backend.Get(context.Background(), "crate/1.0.0/index.html", 1024)
	require.NoError(t, err)
	assert.Equal(t, "crate/1.0.0/index.html", blob.Path)
	assert.Equal(t, "text/html", blob.MIME)
	assert.Equal(t, []byte("<h1>docs</h1>"), blob.Content)
	assert.Equal(t, blobstore.CompressionGzip, blob.Compression)
	assert.True(t, blob.DateUpdated.Equal(stamp))
}

func TestGetNotFound(t *testing.T) {
	backend := newTestBackend(t, newFakeS3(), testConfig())

	_, err := backend.Get(context.Background(), "missing.html", 1024)
	require.Error(t, err)
	assert.True(t, blobstore.IsNotFound(err))
}

func TestGetEmptyPath(t *testing.T) {
	backend := newTestBackend(t, newFakeS3(), testConfig())

	_, err := backend.Get(context.Background(), "", 1024)
	assert.ErrorIs(t, err, blobstore.ErrInvalidKey)
}

func TestGetEnforcesMaxSize(t *testing.T) {
	fake := newFakeS3()
	stamp := time.Now().UTC()
	fake.seed("big.bin", fakeObject{
		data:         bytes.Repeat([]byte("x"), 100),
		contentType:  "application/octet-stream",
		lastModified: &stamp,
	})
	backend := newTestBackend(t, fake, testConfig())

	_, err := backend.Get(context.Background(), "big.bin", 99)
	require.Error(t, err)
	assert.True(t, blobstore.IsSizeLimit(err))

	blob, err := backend.Get(context.Background(), "big.bin", 100)
	require.NoError(t, err)
	assert.Len(t, blob.Content, 100)
}

func TestGetMissingContentType(t *testing.T) {
	fake := newFakeS3()
	stamp := time.Now().UTC()
	fake.seed("bare", fakeObject{data: []byte("x"), lastModified: &stamp})
	backend := newTestBackend(t, fake, testConfig())

	_, err := backend.Get(context.Background(), "bare", 1024)
	require.Error(t, err)
	assert.ErrorIs(t, err, blobstore.ErrTransport)
}

func TestGetMissingLastModified(t *testing.T) {
	fake := newFakeS3()
	fake.seed("stale", fakeObject{data: []byte("x"), contentType: "text/plain"})
	backend := newTestBackend(t, fake, testConfig())

	_, err := backend.Get(context.Background(), "stale", 1024)
	require.Error(t, err)
	assert.ErrorIs(t, err, blobstore.ErrTransport)
}

func TestGetUnknownContentEncoding(t *testing.T) {
	fake := newFakeS3()
	stamp := time.Now().UTC()
	fake.seed("exotic", fakeObject{
		data:            []byte("payload"),
		contentType:     "text/plain",
		contentEncoding: "br",
		lastModified:    &stamp,
	})
	backend := newTestBackend(t, fake, testConfig())

	blob, err := backend.Get(context.Background(), "exotic", 1024)
	require.NoError(t, err)
	// The encoding label is preserved as "unknown" but the bytes come back
	// untouched.
	assert.Equal(t, blobstore.CompressionUnknown, blob.Compression)
	assert.Equal(t, []byte("payload"), blob.Content)
}

func TestResolveLastModified(t *testing.T) {
	t.Run("typed field wins", func(t *testing.T) {
		loc := time.FixedZone("PST", -8*3600)
		typed := time.Date(2018, time.April, 15, 20, 33, 50, 0, loc)

		got, err := resolveLastModified(&typed, "garbage")
		require.NoError(t, err)
		assert.Equal(t, time.UTC, got.Location())
		assert.True(t, got.Equal(typed))
	})

	t.Run("falls back to raw header", func(t *testing.T) {
		got, err := resolveLastModified(nil, "Thu, 1 Jan 1970 00:00:00 GMT")
		require.NoError(t, err)
		assert.True(t, got.Equal(time.Unix(0, 0)))
	})

	t.Run("malformed raw header", func(t *testing.T) {
		_, err := resolveLastModified(nil, "foo")
		assert.ErrorIs(t, err, blobstore.ErrMalformedTimestamp)
	})

	t.Run("nothing available", func(t *testing.T) {
		_, err := resolveLastModified(nil, "")
		assert.ErrorIs(t, err, blobstore.ErrTransport)
	})
}

func TestKeyPrefixing(t *testing.T) {
	fake := newFakeS3()
	cfg := testConfig()
	cfg.BasePrefix = "staging"
	backend := newTestBackend(t, fake, cfg)

	tx, err := backend.StartStorageTransaction(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.StoreBatch(context.Background(), []blobstore.Blob{
		{Path: "crate/index.html", MIME: "text/html", Content: []byte("x")},
	}))

	fake.mu.Lock()
	_, exists := fake.objects["staging/crate/index.html"]
	fake.mu.Unlock()
	assert.True(t, exists)
}

func TestPutSetsContentEncoding(t *testing.T) {
	fake := newFakeS3()
	backend := newTestBackend(t, fake, testConfig())

	tx, err := backend.StartStorageTransaction(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.StoreBatch(context.Background(), []blobstore.Blob{
		{Path: "compressed", MIME: "text/html", Content: []byte("x"), Compression: blobstore.CompressionZstd},
		{Path: "plain", MIME: "text/html", Content: []byte("y")},
	}))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, "zstd", fake.objects["compressed"].contentEncoding)
	assert.Empty(t, fake.objects["plain"].contentEncoding)
}

func TestStoreBatchRetryConvergence(t *testing.T) {
	fake := newFakeS3()
	fake.failPuts("a.html", 1)
	fake.failPuts("b.html", 1)
	backend := newTestBackend(t, fake, testConfig())

	ctx := context.Background()
	tx, err := backend.StartStorageTransaction(ctx)
	require.NoError(t, err)

	err = tx.StoreBatch(ctx, []blobstore.Blob{
		{Path: "a.html", MIME: "text/html", Content: []byte("a")},
		{Path: "b.html", MIME: "text/html", Content: []byte("b")},
		{Path: "c.html", MIME: "text/html", Content: []byte("c")},
	})
	require.NoError(t, err)
	require.NoError(t, tx.Complete())

	// Only the failed subset is retried: c succeeded in round one and must
	// not be re-uploaded.
	assert.Equal(t, 2, fake.calls("a.html"))
	assert.Equal(t, 2, fake.calls("b.html"))
	assert.Equal(t, 1, fake.calls("c.html"))
}

func TestStoreBatchRetryExhaustion(t *testing.T) {
	fake := newFakeS3()
	fake.failPuts("doomed.html", 3)
	backend := newTestBackend(t, fake, testConfig())

	ctx := context.Background()
	tx, err := backend.StartStorageTransaction(ctx)
	require.NoError(t, err)

	err = tx.StoreBatch(ctx, []blobstore.Blob{
		{Path: "doomed.html", MIME: "text/html", Content: []byte("d")},
		{Path: "fine.html", MIME: "text/html", Content: []byte("f")},
	})
	require.Error(t, err)
	require.ErrorIs(t, err, blobstore.ErrRetryBudgetExhausted)

	var retryErr *blobstore.RetryError
	require.ErrorAs(t, err, &retryErr)
	require.Len(t, retryErr.Failed, 1)
	assert.Equal(t, "doomed.html", retryErr.Failed[0].Path)
	assert.Equal(t, []byte("d"), retryErr.Failed[0].Content)
	assert.Equal(t, 3, retryErr.Rounds)

	assert.Equal(t, 3, fake.calls("doomed.html"))
	assert.Equal(t, 1, fake.calls("fine.html"))

	// Blobs that succeeded stay stored; the transaction itself is aborted.
	blob, err := backend.Get(ctx, "fine.html", 1024)
	require.NoError(t, err)
	assert.Equal(t, []byte("f"), blob.Content)

	err = tx.StoreBatch(ctx, []blobstore.Blob{{Path: "late.html", MIME: "text/html"}})
	assert.ErrorIs(t, err, blobstore.ErrTransactionClosed)
}

func TestStoreBatchUploadCounterExactlyOnce(t *testing.T) {
	fake := newFakeS3()
	fake.failPuts("a.html", 2)
	metrics := newCountingMetrics()
	backend := newTestBackend(t, fake, testConfig())
	backend.instr = blobstore.NewInstrumenter(metrics, nil)

	ctx := context.Background()
	tx, err := backend.StartStorageTransaction(ctx)
	require.NoError(t, err)

	err = tx.StoreBatch(ctx, []blobstore.Blob{
		{Path: "a.html", MIME: "text/html", Content: []byte("a")},
		{Path: "b.html", MIME: "text/html", Content: []byte("b")},
	})
	require.NoError(t, err)

	// One increment per blob regardless of how many rounds it needed.
	assert.Equal(t, 2.0, metrics.counter("blobstore_uploaded_blobs_total"))
	assert.Equal(t, 2.0, metrics.counter("blobstore_upload_failures_total"))
}

func TestStoreBatchRejectsBadBatches(t *testing.T) {
	backend := newTestBackend(t, newFakeS3(), testConfig())
	ctx := context.Background()

	tx, err := backend.StartStorageTransaction(ctx)
	require.NoError(t, err)

	err = tx.StoreBatch(ctx, nil)
	assert.ErrorIs(t, err, blobstore.ErrInvalidKey)

	err = tx.StoreBatch(ctx, []blobstore.Blob{{Path: "", MIME: "text/html"}})
	assert.ErrorIs(t, err, blobstore.ErrInvalidKey)

	err = tx.StoreBatch(ctx, []blobstore.Blob{
		{Path: "dup.html", MIME: "text/html"},
		{Path: "dup.html", MIME: "text/html"},
	})
	assert.ErrorIs(t, err, blobstore.ErrInvalidKey)
}

func TestStoreBatchHonorsContextBetweenRounds(t *testing.T) {
	fake := newFakeS3()
	fake.failPuts("a.html", 3)
	cfg := testConfig()
	cfg.BackoffInitial = 50 * time.Millisecond
	backend := newTestBackend(t, fake, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tx, err := backend.StartStorageTransaction(context.Background())
	require.NoError(t, err)

	err = tx.StoreBatch(ctx, []blobstore.Blob{{Path: "a.html", MIME: "text/html", Content: []byte("a")}})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	// One round ran before the inter-round wait observed the cancellation.
	assert.Equal(t, 1, fake.calls("a.html"))
}

func TestTransactionCompleteIsTerminal(t *testing.T) {
	backend := newTestBackend(t, newFakeS3(), testConfig())
	ctx := context.Background()

	tx, err := backend.StartStorageTransaction(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Complete())

	err = tx.StoreBatch(ctx, []blobstore.Blob{{Path: "a.html", MIME: "text/html"}})
	assert.ErrorIs(t, err, blobstore.ErrTransactionClosed)

	assert.ErrorIs(t, tx.Complete(), blobstore.ErrTransactionClosed)
}

// countingMetrics is a minimal metricsx.Metrics that tallies counter
// increments by metric name, ignoring labels.
type countingMetrics struct {
	mu       sync.Mutex
	counters map[string]float64
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{counters: make(map[string]float64)}
}

func (m *countingMetrics) counter(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

func (m *countingMetrics) Counter(name string, opts ...metricsx.Option) metricsx.Counter {
	return &countingCounter{metrics: m, name: name}
}

func (m *countingMetrics) Gauge(name string, opts ...metricsx.Option) metricsx.Gauge {
	return noopGauge{}
}

func (m *countingMetrics) Histogram(name string, opts ...metricsx.Option) metricsx.Histogram {
	return noopHistogram{}
}

func (m *countingMetrics) Summary(name string, opts ...metricsx.Option) metricsx.Summary {
	return noopSummary{}
}

type countingCounter struct {
	metrics *countingMetrics
	name    string
}

func (c *countingCounter) Inc(labels ...string) { c.Add(1, labels...) }

func (c *countingCounter) Add(value float64, labels ...string) {
	c.metrics.mu.Lock()
	defer c.metrics.mu.Unlock()
	c.metrics.counters[c.name] += value
}

type noopGauge struct{}

func (noopGauge) Set(value float64, labels ...string) {}
func (noopGauge) Inc(labels ...string)                {}
func (noopGauge) Dec(labels ...string)                {}
func (noopGauge) Add(value float64, labels ...string) {}
func (noopGauge) Sub(value float64, labels ...string) {}

type noopHistogram struct{}

func (noopHistogram) Observe(value float64, labels ...string) {}
func (noopHistogram) Timer(labels ...string) metricsx.Timer   { return noopTimer{} }

type noopSummary struct{}

func (noopSummary) Observe(value float64, labels ...string) {}

type noopTimer struct{}

func (noopTimer) ObserveDuration()    {}
func (noopTimer) Stop() time.Duration { return 0 }
