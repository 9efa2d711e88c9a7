package routes

import (
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"

	"github.com/any-hub/static-hub/internal/server"
	"github.com/any-hub/static-hub/internal/version"
)

// RegisterDiagnosticRoutes 暴露 /-/ 诊断接口：站点列表、stat 缓存查看/失效与 Prometheus 指标。
func RegisterDiagnosticRoutes(app *fiber.App, registry *server.SiteRegistry) {
	if app == nil || registry == nil {
		return
	}

	app.Get("/-/sites", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"version": version.Full(),
			"sites":   encodeSites(registry.List()),
		})
	})

	app.Get("/-/stat-cache/:site", func(c fiber.Ctx) error {
		route, err := lookupSite(c, registry)
		if route == nil {
			return err
		}
		return c.JSON(statCachePayload{
			Site:    route.Config.Name,
			Entries: route.Stats.Len(),
			Paths:   route.Stats.Keys(),
		})
	})

	// DELETE /-/stat-cache/:site?path=/a.js 失效单个路径；不带 path 时清空整个站点缓存。
	app.Delete("/-/stat-cache/:site", func(c fiber.Ctx) error {
		route, err := lookupSite(c, registry)
		if route == nil {
			return err
		}
		target := strings.TrimSpace(c.Query("path"))
		if target == "" {
			route.Stats.Purge()
			return c.JSON(fiber.Map{"site": route.Config.Name, "purged": true})
		}
		if !strings.HasPrefix(target, "/") {
			target = "/" + target
		}
		removed := route.Stats.Invalidate(target)
		return c.JSON(fiber.Map{"site": route.Config.Name, "path": target, "removed": removed})
	})

	app.Get("/-/metrics", adaptor.HTTPHandler(registry.Metrics().Handler()))
}

func lookupSite(c fiber.Ctx, registry *server.SiteRegistry) (*server.SiteRoute, error) {
	name := strings.TrimSpace(c.Params("site"))
	if name == "" {
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "site_required"})
	}
	route, ok := registry.Find(name)
	if !ok {
		return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "site_not_found"})
	}
	return route, nil
}

type sitePayload struct {
	Name             string `json:"name"`
	Domain           string `json:"domain"`
	Root             string `json:"root"`
	CacheControl     string `json:"cache_control"`
	Index            string `json:"index"`
	ExpiresSeconds   int64  `json:"expires_seconds"`
	HintPaths        int    `json:"hint_paths"`
	StatCacheEntries int    `json:"stat_cache_entries"`
}

type statCachePayload struct {
	Site    string   `json:"site"`
	Entries int      `json:"entries"`
	Paths   []string `json:"paths"`
}

func encodeSites(routes []*server.SiteRoute) []sitePayload {
	result := make([]sitePayload, 0, len(routes))
	for _, route := range routes {
		result = append(result, sitePayload{
			Name:             route.Config.Name,
			Domain:           route.Config.Domain,
			Root:             route.Config.Root,
			CacheControl:     route.CacheControl,
			Index:            route.Config.Index,
			ExpiresSeconds:   int64(route.Config.Expires.DurationValue().Seconds()),
			HintPaths:        len(route.Config.Hints),
			StatCacheEntries: route.Stats.Len(),
		})
	}
	return result
}
