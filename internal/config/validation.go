package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.LogLevel != "" {
		if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
			return newFieldError("Global.LogLevel", "无法识别的日志级别")
		}
	}
	switch g.LogFormat {
	case "", LogFormatJSON, LogFormatConsole:
	default:
		return newFieldError("Global.LogFormat", "仅支持 json/console")
	}
	if g.StatCacheSize < 0 {
		return newFieldError("Global.StatCacheSize", "不能为负数")
	}
	if g.StatCacheTTL.DurationValue() < 0 {
		return newFieldError("Global.StatCacheTTL", "不能为负数")
	}
	if (g.TLSCertFile == "") != (g.TLSKeyFile == "") {
		return newFieldError("Global.TLSCertFile/TLSKeyFile", "必须同时提供或同时留空")
	}

	if len(c.Sites) == 0 {
		return errors.New("至少需要配置一个 Site")
	}

	seenNames := map[string]struct{}{}
	seenDomains := map[string]string{}
	for i := range c.Sites {
		site := &c.Sites[i]
		if site.Name == "" {
			return newFieldError("Site[].Name", "不能为空")
		}
		if _, exists := seenNames[site.Name]; exists {
			return newFieldError(siteField(site.Name, "Name"), "重复")
		}
		seenNames[site.Name] = struct{}{}

		if err := validateDomain(site.Domain); err != nil {
			return fmt.Errorf("%s: %w", siteField(site.Name, "Domain"), err)
		}
		domain := strings.ToLower(strings.TrimSuffix(site.Domain, "."))
		if other, exists := seenDomains[domain]; exists {
			return newFieldError(siteField(site.Name, "Domain"), fmt.Sprintf("与站点 %s 重复", other))
		}
		seenDomains[domain] = site.Name

		if strings.TrimSpace(site.Root) == "" {
			return newFieldError(siteField(site.Name, "Root"), "不能为空")
		}
		if strings.ContainsAny(site.Index, `/\`) {
			return newFieldError(siteField(site.Name, "Index"), "只能是文件名")
		}
		for _, hint := range site.Hints {
			if !strings.HasPrefix(hint.Path, "/") {
				return newFieldError(siteField(site.Name, "Hint.Path"), "必须以 / 开头")
			}
			if len(hint.Links) == 0 {
				return newFieldError(siteField(site.Name, "Hint.Links"), "不能为空")
			}
		}
	}

	return nil
}

func validateDomain(domain string) error {
	if domain == "" {
		return errors.New("Domain 不能为空")
	}
	if domain == "*" {
		return nil
	}
	if strings.Contains(domain, "/") {
		return errors.New("Domain 不允许包含路径")
	}
	if strings.Contains(domain, " ") {
		return errors.New("Domain 不允许包含空格")
	}
	if strings.HasPrefix(domain, "http") {
		return errors.New("Domain 不应包含协议头")
	}
	return nil
}
