package cache

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"

	"github.com/any-hub/static-hub/internal/metrics"
)

// StatCache 以路径为键缓存 StatRecord，同一路径的并发未命中只触发一次 Stat。
type StatCache struct {
	fs      afero.Fs
	entries *expirable.LRU[string, StatRecord]
	group   singleflight.Group
	logger  *logrus.Logger
	metrics *metrics.Site

	// epoch 在 Invalidate/Purge 时递增，阻止失效前发起的查询把旧结果写回缓存。
	epoch atomic.Uint64
}

// NewStatCache 基于 fs 构建缓存实例，通常每个站点根目录一份。
func NewStatCache(fs afero.Fs, opts Options) *StatCache {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	capacity := opts.Capacity
	if capacity < 0 {
		capacity = 0
	}
	return &StatCache{
		fs:      fs,
		entries: expirable.NewLRU[string, StatRecord](capacity, nil, opts.TTL),
		logger:  logger,
		metrics: opts.Metrics,
	}
}

// StatOf 返回 path 对应的 StatRecord；查询失败时返回 *StatError，错误不会被缓存。
func (c *StatCache) StatOf(ctx context.Context, path string) (StatRecord, error) {
	if err := ctx.Err(); err != nil {
		return StatRecord{}, err
	}

	if record, ok := c.entries.Get(path); ok {
		c.metrics.RecordStatLookup(metrics.LookupHit)
		return record, nil
	}

	ch := c.group.DoChan(path, func() (interface{}, error) {
		if record, ok := c.entries.Peek(path); ok {
			return record, nil
		}
		epoch := c.epoch.Load()
		info, err := c.fs.Stat(path)
		if err != nil {
			return StatRecord{}, &StatError{Path: path, Err: err}
		}
		record := StatRecord{
			ModTime: info.ModTime(),
			Size:    info.Size(),
			Regular: info.Mode().IsRegular(),
		}
		if c.epoch.Load() == epoch {
			c.entries.Add(path, record)
			c.metrics.SetStatCacheEntries(c.entries.Len())
		}
		return record, nil
	})

	select {
	case <-ctx.Done():
		return StatRecord{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			c.metrics.RecordStatLookup(metrics.LookupError)
			c.logger.WithError(res.Err).WithFields(logrus.Fields{
				"action": "stat",
				"path":   path,
			}).Debug("stat_failed")
			return StatRecord{}, res.Err
		}
		c.metrics.RecordStatLookup(metrics.LookupMiss)
		return res.Val.(StatRecord), nil
	}
}

// Invalidate 删除单个路径的缓存记录。
func (c *StatCache) Invalidate(path string) bool {
	c.epoch.Add(1)
	c.group.Forget(path)
	removed := c.entries.Remove(path)
	c.metrics.SetStatCacheEntries(c.entries.Len())
	return removed
}

// Purge 清空全部缓存记录。
func (c *StatCache) Purge() {
	c.epoch.Add(1)
	c.entries.Purge()
	c.metrics.SetStatCacheEntries(0)
}

// Len 返回当前缓存的记录数（含尚未被清理的过期项）。
func (c *StatCache) Len() int {
	return c.entries.Len()
}

// Keys 返回当前缓存的路径列表，按最久未使用到最近使用排序。
func (c *StatCache) Keys() []string {
	return c.entries.Keys()
}
