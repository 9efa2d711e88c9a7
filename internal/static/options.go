package static

import (
	"fmt"

	"github.com/any-hub/static-hub/internal/meta"
)

// DefaultCacheControl 是未指定 Options.Cache 时使用的 cache-control。
const DefaultCacheControl = "public, max-age=720"

// Options 描述单次 ServeStatic 调用的可选参数，零值即为全部默认。
type Options struct {
	// Cache 为 cache-control 取值；nil 时使用 DefaultCacheControl，空串原样输出。
	Cache *string
	// IfNoneMatch 覆盖请求中的 if-none-match；nil 时读取请求头，缺省为空串。
	IfNoneMatch *string
	// OutgoingHeaders 以最低优先级合并进响应头。
	OutgoingHeaders meta.Headers
	// Window 限定输出的字节区间，nil 表示整个文件。
	Window *ReadWindow
}

// ReadWindow 是文件内连续的字节区间，Start 与 End 均为包含在内的偏移。
// 设置 End 时 content-size 按原始大小扣减计算，比实际输出少一个字节。
type ReadWindow struct {
	Start *int64
	End   *int64
}

// WindowFrom 返回从 start 到文件末尾的区间。
func WindowFrom(start int64) *ReadWindow {
	return &ReadWindow{Start: &start}
}

// WindowUntil 返回从文件开头到 end 的区间。
func WindowUntil(end int64) *ReadWindow {
	return &ReadWindow{End: &end}
}

// WindowBetween 返回 [start, end] 区间。
func WindowBetween(start, end int64) *ReadWindow {
	return &ReadWindow{Start: &start, End: &end}
}

func (w *ReadWindow) start() int64 {
	if w == nil || w.Start == nil {
		return 0
	}
	return *w.Start
}

// Validate 在入口处校验参数，校验失败时不会产生任何 I/O。
func (o Options) Validate() error {
	w := o.Window
	if w == nil {
		return nil
	}
	if w.Start != nil && *w.Start < 0 {
		return fmt.Errorf("%w: negative start %d", ErrInvalidWindow, *w.Start)
	}
	if w.End != nil && *w.End < 0 {
		return fmt.Errorf("%w: negative end %d", ErrInvalidWindow, *w.End)
	}
	if w.Start != nil && w.End != nil && *w.End < *w.Start {
		return fmt.Errorf("%w: end %d before start %d", ErrInvalidWindow, *w.End, *w.Start)
	}
	return nil
}

func (o Options) cacheControl() string {
	if o.Cache == nil {
		return DefaultCacheControl
	}
	return *o.Cache
}

func (o Options) ifNoneMatch(req RequestHeaders) string {
	if o.IfNoneMatch != nil {
		return *o.IfNoneMatch
	}
	if req == nil {
		return ""
	}
	return req.Get("If-None-Match")
}

// contentSize 按原始文件大小分别扣减 Start 与 End 两项，两次扣减互不依赖。
func contentSize(fileSize int64, w *ReadWindow) int64 {
	size := fileSize
	if w == nil {
		return size
	}
	if w.Start != nil {
		size -= *w.Start
	}
	if w.End != nil {
		size -= fileSize - *w.End
	}
	return size
}
