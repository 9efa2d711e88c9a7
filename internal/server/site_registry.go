package server

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/any-hub/static-hub/internal/cache"
	"github.com/any-hub/static-hub/internal/config"
	"github.com/any-hub/static-hub/internal/metrics"
	"github.com/any-hub/static-hub/internal/static"
)

// SiteRoute 将站点配置与派生属性（生效的 cache-control、文件系统、stat 缓存）
// 聚合在一起，供路由/处理层直接复用，避免重复解析配置。
type SiteRoute struct {
	// Config 是用户在 config.toml 中声明的站点字段副本，避免外部修改。
	Config config.SiteConfig
	// ListenPort 记录当前 CLI 监听端口，方便日志输出。
	ListenPort int
	// CacheControl 是对当前站点生效的 cache-control，未覆盖时等于全局值。
	CacheControl string
	// FS 是以站点根目录为基准的只读文件系统，路径无法越出根目录。
	FS afero.Fs
	// Stats 与 Responder 共享，诊断接口通过它查看与失效缓存。
	Stats     *cache.StatCache
	Responder *static.Responder
}

// SiteRegistry 提供 Host/Host:port 到 SiteRoute 的查询能力，所有站点共享同一个监听端口。
type SiteRegistry struct {
	routes   map[string]*SiteRoute
	ordered  []*SiteRoute
	catchAll *SiteRoute
	metrics  *metrics.Registry
}

// RegistryOptions 允许测试注入自定义文件系统。
type RegistryOptions struct {
	Logger *logrus.Logger
	// FSFactory 根据站点配置返回文件系统，默认使用 BasePathFs 包装的只读 OsFs。
	FSFactory func(site config.SiteConfig) afero.Fs
	// Metrics 为所有站点共享的指标注册表，为空时由注册表自行创建。
	Metrics *metrics.Registry
}

// NewSiteRegistry 根据配置构建 Host 映射。调用方应在启动阶段创建一次并复用。
func NewSiteRegistry(cfg *config.Config, opts RegistryOptions) (*SiteRegistry, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if opts.FSFactory == nil {
		opts.FSFactory = siteFS
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewRegistry()
	}

	registry := &SiteRegistry{
		routes:  make(map[string]*SiteRoute, len(cfg.Sites)),
		metrics: opts.Metrics,
	}

	for _, site := range cfg.Sites {
		route := buildSiteRoute(cfg, site, opts)

		if site.IsCatchAll() {
			if registry.catchAll != nil {
				return nil, fmt.Errorf("duplicate catch-all site %s", site.Name)
			}
			registry.catchAll = route
			registry.ordered = append(registry.ordered, route)
			continue
		}

		normalizedHost := normalizeDomain(site.Domain)
		if normalizedHost == "" {
			return nil, fmt.Errorf("invalid domain for site %s", site.Name)
		}
		if _, exists := registry.routes[normalizedHost]; exists {
			return nil, fmt.Errorf("duplicate domain mapping detected for %s", normalizedHost)
		}
		registry.routes[normalizedHost] = route
		registry.ordered = append(registry.ordered, route)
	}

	return registry, nil
}

// Lookup 根据 Host 或 Host:port 查找 SiteRoute，未命中时回退到 Domain="*" 的站点。
func (r *SiteRegistry) Lookup(host string) (*SiteRoute, bool) {
	if r == nil {
		return nil, false
	}

	normalizedHost, _ := normalizeHost(host)
	if normalizedHost != "" {
		if route, ok := r.routes[normalizedHost]; ok {
			return route, true
		}
	}
	if r.catchAll != nil {
		return r.catchAll, true
	}
	return nil, false
}

// Find 按站点名称查找，供诊断接口使用。
func (r *SiteRegistry) Find(name string) (*SiteRoute, bool) {
	if r == nil {
		return nil, false
	}
	for _, route := range r.ordered {
		if route.Config.Name == name {
			return route, true
		}
	}
	return nil, false
}

// Metrics 返回站点共享的指标注册表。
func (r *SiteRegistry) Metrics() *metrics.Registry {
	if r == nil {
		return nil
	}
	return r.metrics
}

// List 返回当前注册的 SiteRoute 列表（按配置定义的顺序），用于调试或诊断输出。
func (r *SiteRegistry) List() []*SiteRoute {
	if r == nil || len(r.ordered) == 0 {
		return nil
	}
	result := make([]*SiteRoute, len(r.ordered))
	copy(result, r.ordered)
	return result
}

func buildSiteRoute(cfg *config.Config, site config.SiteConfig, opts RegistryOptions) *SiteRoute {
	fs := opts.FSFactory(site)
	siteMetrics := opts.Metrics.Site(site.Name)
	stats := cache.NewStatCache(fs, cache.Options{
		Capacity: cfg.Global.StatCacheSize,
		TTL:      cfg.Global.StatCacheTTL.DurationValue(),
		Logger:   opts.Logger,
		Metrics:  siteMetrics,
	})
	return &SiteRoute{
		Config:       site,
		ListenPort:   cfg.Global.ListenPort,
		CacheControl: cfg.EffectiveCacheControl(site),
		FS:           fs,
		Stats:        stats,
		Responder: static.NewResponder(fs, stats, static.ResponderOptions{
			Logger:  opts.Logger,
			Metrics: siteMetrics,
		}),
	}
}

func siteFS(site config.SiteConfig) afero.Fs {
	return afero.NewReadOnlyFs(afero.NewBasePathFs(afero.NewOsFs(), site.Root))
}

// ExpiresAt 返回站点配置的 expires 时间；未配置时返回零值。
func (r *SiteRoute) ExpiresAt(now time.Time) time.Time {
	if d := r.Config.Expires.DurationValue(); d > 0 {
		return now.Add(d)
	}
	return time.Time{}
}

func normalizeDomain(domain string) string {
	host, _ := normalizeHost(domain)
	return host
}

func normalizeHost(raw string) (string, int) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", 0
	}

	host := raw
	port := 0

	if strings.Contains(raw, ":") {
		if h, p, err := net.SplitHostPort(raw); err == nil {
			host = h
			if parsedPort, err := strconv.Atoi(p); err == nil {
				port = parsedPort
			}
		} else if idx := strings.LastIndex(raw, ":"); idx > -1 && strings.Count(raw[idx+1:], ":") == 0 {
			if parsedPort, err := strconv.Atoi(raw[idx+1:]); err == nil {
				host = raw[:idx]
				port = parsedPort
			}
		}
	}

	host = strings.TrimSuffix(host, ".")
	host = strings.ToLower(host)
	return host, port
}
