package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if seconds, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*d = Duration(time.Duration(seconds) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// 日志输出格式。
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

// DefaultCacheControl 与响应器默认值保持一致。
const DefaultCacheControl = "public, max-age=720"

// GlobalConfig 描述全局运行时行为，所有站点共享同一份参数。
type GlobalConfig struct {
	ListenPort         int      `mapstructure:"ListenPort"`
	LogLevel           string   `mapstructure:"LogLevel"`
	LogFormat          string   `mapstructure:"LogFormat"`
	LogFilePath        string   `mapstructure:"LogFilePath"`
	LogMaxSize         int      `mapstructure:"LogMaxSize"`
	LogMaxBackups      int      `mapstructure:"LogMaxBackups"`
	LogCompress        bool     `mapstructure:"LogCompress"`
	CacheControl       string   `mapstructure:"CacheControl"`
	StatCacheSize      int      `mapstructure:"StatCacheSize"`
	StatCacheTTL       Duration `mapstructure:"StatCacheTTL"`
	TLSCertFile        string   `mapstructure:"TLSCertFile"`
	TLSKeyFile         string   `mapstructure:"TLSKeyFile"`
	ShowNetworkAddress bool     `mapstructure:"ShowNetworkAddress"`
}

// HintConfig 为某个请求路径声明 early hints，输出为 link 响应头。
type HintConfig struct {
	Path  string   `mapstructure:"Path"`
	Links []string `mapstructure:"Links"`
}

// SiteConfig 决定单个站点如何把 Host 映射到本地目录。
type SiteConfig struct {
	Name         string       `mapstructure:"Name"`
	Domain       string       `mapstructure:"Domain"`
	Root         string       `mapstructure:"Root"`
	CacheControl string       `mapstructure:"CacheControl"`
	Expires      Duration     `mapstructure:"Expires"`
	Index        string       `mapstructure:"Index"`
	Hints        []HintConfig `mapstructure:"Hint"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig `mapstructure:",squash"`
	Sites  []SiteConfig `mapstructure:"Site"`
}

// TLSEnabled 表示是否同时配置了证书与私钥。
func (g GlobalConfig) TLSEnabled() bool {
	return g.TLSCertFile != "" && g.TLSKeyFile != ""
}

// IsCatchAll 表示站点是否匹配任意 Host。
func (s SiteConfig) IsCatchAll() bool {
	return strings.TrimSpace(s.Domain) == "*"
}

// LinksFor 返回某个请求路径配置的 early hints，未配置时返回 nil。
func (s SiteConfig) LinksFor(requestPath string) []string {
	for _, hint := range s.Hints {
		if hint.Path == requestPath {
			return hint.Links
		}
	}
	return nil
}

// EffectiveCacheControl 返回站点生效的 cache-control，未覆盖时回退至全局值。
func (c *Config) EffectiveCacheControl(s SiteConfig) string {
	if v := strings.TrimSpace(s.CacheControl); v != "" {
		return v
	}
	if v := strings.TrimSpace(c.Global.CacheControl); v != "" {
		return v
	}
	return DefaultCacheControl
}

// SiteSummaries 返回站点摘要，例如 docs:docs.local。
func SiteSummaries(sites []SiteConfig) []string {
	if len(sites) == 0 {
		return nil
	}
	result := make([]string, len(sites))
	for i, site := range sites {
		result[i] = fmt.Sprintf("%s:%s", site.Name, site.Domain)
	}
	return result
}
