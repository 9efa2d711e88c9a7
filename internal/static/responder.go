package static

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/any-hub/static-hub/internal/cache"
	"github.com/any-hub/static-hub/internal/meta"
	"github.com/any-hub/static-hub/internal/metrics"
)

// Responder 负责 “存在性检查 → stat → 组装响应头 → 条件比较 → 输出正文或状态码” 的完整流程。
type Responder struct {
	fs      afero.Fs
	stats   *cache.StatCache
	logger  *logrus.Logger
	metrics *metrics.Site
}

// ResponderOptions 注入日志与站点级指标，均可为空。
type ResponderOptions struct {
	Logger  *logrus.Logger
	Metrics *metrics.Site
}

// Result 汇总一次调用的结果，便于调用方记录日志。
type Result struct {
	Status int
	ETag   string
	Bytes  int64
	// Committed 表示响应头已写出，调用方不能再改写状态码。
	Committed bool
}

// NewResponder 以 fs 为文件来源构建响应器；stats 为 nil 时创建一个不限容量的缓存。
func NewResponder(fs afero.Fs, stats *cache.StatCache, opts ResponderOptions) *Responder {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	if stats == nil {
		stats = cache.NewStatCache(fs, cache.Options{Logger: logger, Metrics: opts.Metrics})
	}
	return &Responder{fs: fs, stats: stats, logger: logger, metrics: opts.Metrics}
}

// Stats 返回响应器共享的 StatCache。
func (r *Responder) Stats() *cache.StatCache {
	return r.stats
}

// ServeStatic 按顺序执行存在性检查、stat、条件请求比较并输出文件。
// 返回 *IOError 时尚未写出响应头；返回 *StreamError 时 200 已提交。
func (r *Responder) ServeStatic(ctx context.Context, req RequestHeaders, sink ResponseSink, path string, opts Options) (Result, error) {
	if err := opts.Validate(); err != nil {
		return Result{}, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	started := time.Now()

	found, err := afero.Exists(r.fs, path)
	if err != nil {
		return Result{}, &IOError{Op: "exists", Path: path, Err: err}
	}
	if !found {
		return r.notFound(sink, path, "missing")
	}

	record, err := r.stats.StatOf(ctx, path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Result{}, &IOError{Op: "stat", Path: path, Err: err}
	}
	if !record.Regular {
		return r.notFound(sink, path, "not_regular")
	}

	etag := meta.ETag(record)
	cacheControl := meta.NewHeaders(
		meta.HeaderCacheControl, opts.cacheControl(),
		meta.HeaderETag, etag,
	)
	headers := meta.Merge(opts.OutgoingHeaders, cacheControl, meta.ContentType(path))

	if inm := opts.ifNoneMatch(req); inm != "" && inm == etag {
		if err := sink.WriteHead(fiber.StatusNotModified, headers); err != nil {
			return Result{}, err
		}
		r.metrics.RecordResponse(fiber.StatusNotModified)
		r.logDecision(path, fiber.StatusNotModified, etag, 0, started)
		return Result{Status: fiber.StatusNotModified, ETag: etag, Committed: true}, sink.End()
	}

	if err := checkWindowBounds(opts.Window, record.Size); err != nil {
		return Result{}, err
	}
	size := contentSize(record.Size, opts.Window)

	file, err := r.fs.Open(path)
	if err != nil {
		return Result{}, &IOError{Op: "open", Path: path, Err: err}
	}
	defer file.Close()

	headers.Set(meta.HeaderContentSize, strconv.FormatInt(size, 10))
	if err := sink.WriteHead(fiber.StatusOK, headers); err != nil {
		return Result{}, err
	}
	r.metrics.RecordResponse(fiber.StatusOK)
	result := Result{Status: fiber.StatusOK, ETag: etag, Committed: true}

	body, err := windowReader(file, opts.Window)
	if err != nil {
		r.metrics.RecordStreamError()
		return result, &StreamError{Path: path, Err: err}
	}
	written, err := copyWithContext(ctx, sink, body)
	result.Bytes = written
	r.metrics.RecordBytesStreamed(written)
	if err != nil {
		r.metrics.RecordStreamError()
		r.logger.WithError(err).WithFields(logrus.Fields{
			"action":  "static_stream",
			"path":    path,
			"written": written,
		}).Warn("static_stream_failed")
		return result, &StreamError{Path: path, Written: written, Err: err}
	}

	r.logDecision(path, fiber.StatusOK, etag, written, started)
	return result, sink.End()
}

func (r *Responder) notFound(sink ResponseSink, path, reason string) (Result, error) {
	if err := sink.WriteHead(fiber.StatusNotFound, meta.Headers{}); err != nil {
		return Result{}, err
	}
	r.metrics.RecordResponse(fiber.StatusNotFound)
	r.logger.WithFields(logrus.Fields{
		"action": "static",
		"path":   path,
		"status": fiber.StatusNotFound,
		"reason": reason,
	}).Debug("static_not_found")
	return Result{Status: fiber.StatusNotFound, Committed: true}, sink.End()
}

func (r *Responder) logDecision(path string, status int, etag string, written int64, started time.Time) {
	r.logger.WithFields(logrus.Fields{
		"action":     "static",
		"path":       path,
		"status":     status,
		"etag":       etag,
		"bytes":      written,
		"elapsed_ms": time.Since(started).Milliseconds(),
	}).Debug("static_served")
}

// windowReader 按 ReadWindow 截取文件：仅有 Start 时读到 EOF，有 End 时读到 End（包含）。
func windowReader(file afero.File, w *ReadWindow) (io.Reader, error) {
	if w == nil || (w.Start == nil && w.End == nil) {
		return file, nil
	}
	start := w.start()
	if w.End == nil {
		if _, err := file.Seek(start, io.SeekStart); err != nil {
			return nil, err
		}
		return file, nil
	}
	return io.NewSectionReader(file, start, *w.End-start+1), nil
}

func checkWindowBounds(w *ReadWindow, fileSize int64) error {
	if w == nil {
		return nil
	}
	if w.Start != nil && *w.Start > fileSize {
		return fmt.Errorf("%w: start %d beyond size %d", ErrInvalidWindow, *w.Start, fileSize)
	}
	if w.End != nil && *w.End > fileSize-1 {
		return fmt.Errorf("%w: end %d beyond last byte %d", ErrInvalidWindow, *w.End, fileSize-1)
	}
	return nil
}
