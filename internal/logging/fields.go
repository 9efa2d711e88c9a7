package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供站点/路径/状态字段，供静态请求日志复用。
func RequestFields(site, domain, path, method string, status int, elapsedMs int64) logrus.Fields {
	return logrus.Fields{
		"site":       site,
		"domain":     domain,
		"path":       path,
		"method":     method,
		"status":     status,
		"elapsed_ms": elapsedMs,
	}
}
