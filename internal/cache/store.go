package cache

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/static-hub/internal/metrics"
)

// StatRecord 是某一路径在查询时刻的文件信息快照，缓存后不可修改。
type StatRecord struct {
	ModTime time.Time `json:"mod_time"`
	Size    int64     `json:"size_bytes"`
	Regular bool      `json:"regular"`
}

// ModifiedTime 让 StatRecord 满足 meta.Stat，用于计算 ETag。
func (r StatRecord) ModifiedTime() time.Time {
	return r.ModTime
}

// SizeBytes 让 StatRecord 满足 meta.Stat。
func (r StatRecord) SizeBytes() int64 {
	return r.Size
}

// Options 控制 StatCache 的容量与过期策略。
type Options struct {
	// Capacity 为最多保留的记录数，0 表示不限制。
	Capacity int
	// TTL 为记录的存活时间，0 表示仅在 Invalidate/Purge 或容量淘汰时失效。
	TTL time.Duration
	// Logger 可选，用于输出 stat 失败等调试日志。
	Logger *logrus.Logger
	// Metrics 为站点级指标句柄，nil 时不记录。
	Metrics *metrics.Site
}

// StatError 表示底层文件系统查询失败，保留原始错误以便 errors.Is 判定。
type StatError struct {
	Path string
	Err  error
}

func (e *StatError) Error() string {
	return fmt.Sprintf("stat %s: %v", e.Path, e.Err)
}

func (e *StatError) Unwrap() error {
	return e.Err
}
