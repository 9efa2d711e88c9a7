package cache

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"

	"github.com/any-hub/static-hub/internal/metrics"
)

// countingFs 统计 Stat 调用次数，并可通过 gate 阻塞 Stat 以模拟慢 I/O。
type countingFs struct {
	afero.Fs
	stats   atomic.Int64
	gate    chan struct{}
	started chan struct{}
	once    sync.Once
}

func newCountingFs(base afero.Fs) *countingFs {
	return &countingFs{Fs: base, started: make(chan struct{})}
}

func (c *countingFs) Stat(name string) (os.FileInfo, error) {
	c.stats.Add(1)
	c.once.Do(func() { close(c.started) })
	if c.gate != nil {
		<-c.gate
	}
	return c.Fs.Stat(name)
}

func writeFile(t *testing.T, fsys afero.Fs, name string, data string) {
	t.Helper()
	if err := afero.WriteFile(fsys, name, []byte(data), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestStatOfReturnsRecord(t *testing.T) {
	base := afero.NewMemMapFs()
	writeFile(t, base, "/static/app.js", "console.log(1)")
	modTime := time.UnixMilli(1700000000000)
	if err := base.Chtimes("/static/app.js", modTime, modTime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	c := NewStatCache(base, Options{})
	record, err := c.StatOf(context.Background(), "/static/app.js")
	if err != nil {
		t.Fatalf("stat error: %v", err)
	}
	if record.Size != int64(len("console.log(1)")) {
		t.Fatalf("size mismatch: %d", record.Size)
	}
	if !record.ModTime.Equal(modTime) {
		t.Fatalf("modtime mismatch: %v", record.ModTime)
	}
	if !record.Regular {
		t.Fatalf("file should be regular")
	}
}

func TestStatOfDirectoryIsNotRegular(t *testing.T) {
	base := afero.NewMemMapFs()
	if err := base.MkdirAll("/static/dir", 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	record, err := NewStatCache(base, Options{}).StatOf(context.Background(), "/static/dir")
	if err != nil {
		t.Fatalf("stat error: %v", err)
	}
	if record.Regular {
		t.Fatalf("directory must not be reported as regular file")
	}
}

func TestStatOfMemoizesRepeatedCalls(t *testing.T) {
	counting := newCountingFs(afero.NewMemMapFs())
	writeFile(t, counting.Fs, "/a.txt", "hello")

	c := NewStatCache(counting, Options{})
	for i := 0; i < 5; i++ {
		if _, err := c.StatOf(context.Background(), "/a.txt"); err != nil {
			t.Fatalf("stat error: %v", err)
		}
	}
	if got := counting.stats.Load(); got != 1 {
		t.Fatalf("expected a single underlying stat, got %d", got)
	}
}

func TestStatOfDeduplicatesConcurrentMisses(t *testing.T) {
	counting := newCountingFs(afero.NewMemMapFs())
	writeFile(t, counting.Fs, "/a.txt", "hello")
	counting.gate = make(chan struct{})

	c := NewStatCache(counting, Options{})

	const callers = 16
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record, err := c.StatOf(context.Background(), "/a.txt")
			if err == nil && record.Size != 5 {
				err = errors.New("unexpected size")
			}
			errs <- err
		}()
	}

	<-counting.started
	time.Sleep(20 * time.Millisecond)
	close(counting.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("stat error: %v", err)
		}
	}
	if got := counting.stats.Load(); got != 1 {
		t.Fatalf("concurrent callers should share one stat, got %d", got)
	}
}

func TestStatOfErrorsAreNotCached(t *testing.T) {
	counting := newCountingFs(afero.NewMemMapFs())
	c := NewStatCache(counting, Options{})

	_, err := c.StatOf(context.Background(), "/missing")
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
	var statErr *StatError
	if !errors.As(err, &statErr) || statErr.Path != "/missing" {
		t.Fatalf("expected *StatError, got %T %v", err, err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("stat error should unwrap to ErrNotExist: %v", err)
	}

	writeFile(t, counting.Fs, "/missing", "now here")
	if _, err := c.StatOf(context.Background(), "/missing"); err != nil {
		t.Fatalf("second lookup should hit the filesystem again: %v", err)
	}
	if got := counting.stats.Load(); got != 2 {
		t.Fatalf("expected 2 stats, got %d", got)
	}
}

func TestInvalidateForcesFreshStat(t *testing.T) {
	counting := newCountingFs(afero.NewMemMapFs())
	writeFile(t, counting.Fs, "/a.txt", "one")
	c := NewStatCache(counting, Options{})

	first, _ := c.StatOf(context.Background(), "/a.txt")
	writeFile(t, counting.Fs, "/a.txt", "three")

	cached, _ := c.StatOf(context.Background(), "/a.txt")
	if cached.Size != first.Size {
		t.Fatalf("cached record should not change before invalidation")
	}

	if !c.Invalidate("/a.txt") {
		t.Fatalf("invalidate should report a removed entry")
	}
	if c.Invalidate("/a.txt") {
		t.Fatalf("second invalidate should report nothing removed")
	}

	fresh, err := c.StatOf(context.Background(), "/a.txt")
	if err != nil {
		t.Fatalf("stat error: %v", err)
	}
	if fresh.Size != int64(len("three")) {
		t.Fatalf("expected refreshed size, got %d", fresh.Size)
	}
}

func TestCapacityEvictsOldest(t *testing.T) {
	base := afero.NewMemMapFs()
	for _, name := range []string{"/a", "/b", "/c"} {
		writeFile(t, base, name, name)
	}
	c := NewStatCache(base, Options{Capacity: 2})
	for _, name := range []string{"/a", "/b", "/c"} {
		if _, err := c.StatOf(context.Background(), name); err != nil {
			t.Fatalf("stat error: %v", err)
		}
	}
	if c.Len() != 2 {
		t.Fatalf("expected capacity-bounded cache, got %d", c.Len())
	}
	keys := c.Keys()
	if len(keys) != 2 || keys[0] != "/b" || keys[1] != "/c" {
		t.Fatalf("unexpected keys after eviction: %v", keys)
	}
}

func TestTTLExpiresRecords(t *testing.T) {
	counting := newCountingFs(afero.NewMemMapFs())
	writeFile(t, counting.Fs, "/a", "x")
	c := NewStatCache(counting, Options{TTL: 30 * time.Millisecond})

	if _, err := c.StatOf(context.Background(), "/a"); err != nil {
		t.Fatalf("stat error: %v", err)
	}
	time.Sleep(80 * time.Millisecond)
	if _, err := c.StatOf(context.Background(), "/a"); err != nil {
		t.Fatalf("stat error: %v", err)
	}
	if got := counting.stats.Load(); got != 2 {
		t.Fatalf("expired record should trigger a new stat, got %d", got)
	}
}

func TestPurgeAndCancelledContext(t *testing.T) {
	base := afero.NewMemMapFs()
	writeFile(t, base, "/a", "x")
	c := NewStatCache(base, Options{})
	if _, err := c.StatOf(context.Background(), "/a"); err != nil {
		t.Fatalf("stat error: %v", err)
	}
	c.Purge()
	if c.Len() != 0 {
		t.Fatalf("purge should empty the cache")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.StatOf(ctx, "/a"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestEntriesGaugeIsTrackedPerCache(t *testing.T) {
	reg := metrics.NewRegistry()

	docsFs := afero.NewMemMapFs()
	for _, name := range []string{"/a", "/b", "/c"} {
		writeFile(t, docsFs, name, name)
	}
	blogFs := afero.NewMemMapFs()
	writeFile(t, blogFs, "/post", "hello")

	docs := NewStatCache(docsFs, Options{Metrics: reg.Site("docs")})
	blog := NewStatCache(blogFs, Options{Metrics: reg.Site("blog")})
	ctx := context.Background()
	for _, name := range []string{"/a", "/b", "/c"} {
		if _, err := docs.StatOf(ctx, name); err != nil {
			t.Fatalf("stat error: %v", err)
		}
	}
	if _, err := blog.StatOf(ctx, "/post"); err != nil {
		t.Fatalf("stat error: %v", err)
	}

	expected := `
# HELP static_hub_stat_cache_entries Number of records currently held by the stat cache
# TYPE static_hub_stat_cache_entries gauge
static_hub_stat_cache_entries{site="blog"} 1
static_hub_stat_cache_entries{site="docs"} 3
`
	if err := testutil.GatherAndCompare(reg.Gatherer(), strings.NewReader(expected), "static_hub_stat_cache_entries"); err != nil {
		t.Fatalf("gauge mismatch after fill: %v", err)
	}

	docs.Invalidate("/a")
	blog.Purge()
	expected = `
# HELP static_hub_stat_cache_entries Number of records currently held by the stat cache
# TYPE static_hub_stat_cache_entries gauge
static_hub_stat_cache_entries{site="blog"} 0
static_hub_stat_cache_entries{site="docs"} 2
`
	if err := testutil.GatherAndCompare(reg.Gatherer(), strings.NewReader(expected), "static_hub_stat_cache_entries"); err != nil {
		t.Fatalf("gauge mismatch after invalidate: %v", err)
	}
}
