package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/static-hub/internal/meta"
	"github.com/any-hub/static-hub/internal/static"
)

// SiteHandler describes the component responsible for answering a request
// from a site's files. It allows injecting fake handlers during tests.
type SiteHandler interface {
	Handle(fiber.Ctx, *SiteRoute) error
}

// SiteHandlerFunc adapts a function to the SiteHandler interface.
type SiteHandlerFunc func(fiber.Ctx, *SiteRoute) error

// Handle makes SiteHandlerFunc satisfy SiteHandler.
func (f SiteHandlerFunc) Handle(c fiber.Ctx, route *SiteRoute) error {
	return f(c, route)
}

// AppOptions wires the registry and the static handler into one Fiber app.
type AppOptions struct {
	Logger     *logrus.Logger
	Registry   *SiteRegistry
	Handler    SiteHandler
	ListenPort int
}

// 响应头与 Locals 键。
const (
	HeaderRequestID = "X-Request-ID"
	HeaderSite      = "X-Static-Hub-Site"
	HeaderHost      = "X-Static-Hub-Host"

	localsRoute     = "_statichub_route"
	localsRequestID = "_statichub_request_id"

	// unmappedSite 是未匹配 Host 的请求在指标中使用的站点标签。
	unmappedSite = "-"
)

const diagnosticsPrefix = "/-/"

var unmappedBody = []byte(`{"error":"host_unmapped"}`)

// NewApp 构建 Fiber 应用：请求 ID → Host 解析 → 站点处理器。/-/ 下的诊断路由
// 跳过 Host 解析，由调用方另行注册。
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("site registry is required")
	}
	if opts.Handler == nil {
		return nil, errors.New("site handler is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware)
	app.Use(siteMiddleware(opts))

	app.All("/*", func(c fiber.Ctx) error {
		route, ok := routeFrom(c)
		if !ok {
			return c.Next()
		}
		return opts.Handler.Handle(c, route)
	})

	return app, nil
}

// requestIDMiddleware 复用客户端传入的合法 UUID，否则生成新的请求 ID。
func requestIDMiddleware(c fiber.Ctx) error {
	reqID := strings.TrimSpace(c.Get(HeaderRequestID))
	if _, err := uuid.Parse(reqID); err != nil {
		reqID = uuid.NewString()
	}
	c.Locals(localsRequestID, reqID)
	c.Set(HeaderRequestID, reqID)
	return c.Next()
}

// siteMiddleware 将 Host 解析为 SiteRoute 并写入 Locals；未匹配时直接返回 404。
func siteMiddleware(opts AppOptions) fiber.Handler {
	return func(c fiber.Ctx) error {
		if IsDiagnosticsPath(string(c.Request().URI().Path())) {
			return c.Next()
		}

		host := strings.TrimSpace(hostHeader(c))
		route, ok := opts.Registry.Lookup(host)
		if !ok {
			return hostUnmapped(c, opts, host)
		}

		c.Locals(localsRoute, route)
		c.Set(HeaderSite, route.Config.Name)
		return c.Next()
	}
}

// hostUnmapped 通过与静态文件相同的 ResponseSink 写出 404，保证响应头处理一致。
func hostUnmapped(c fiber.Ctx, opts AppOptions, host string) error {
	opts.Logger.WithFields(logrus.Fields{
		"action":     "host_lookup",
		"host":       host,
		"port":       opts.ListenPort,
		"request_id": RequestID(c),
	}).Warn("host unmapped")

	headers := meta.NewHeaders(meta.HeaderContentType, "application/json; charset=utf-8")
	if host != "" {
		headers.Set(HeaderHost, host)
	}

	sink := static.FiberSink(c)
	if err := sink.WriteHead(fiber.StatusNotFound, headers); err != nil {
		return err
	}
	opts.Registry.Metrics().Site(unmappedSite).RecordResponse(fiber.StatusNotFound)
	if _, err := sink.Write(unmappedBody); err != nil {
		return err
	}
	return sink.End()
}

func hostHeader(c fiber.Ctx) string {
	if raw := c.Request().Header.Peek(fiber.HeaderHost); len(raw) > 0 {
		return string(raw)
	}
	return c.Hostname()
}

func routeFrom(c fiber.Ctx) (*SiteRoute, bool) {
	route, ok := c.Locals(localsRoute).(*SiteRoute)
	return route, ok && route != nil
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	reqID, _ := c.Locals(localsRequestID).(string)
	return reqID
}

// IsDiagnosticsPath reports whether path belongs to the /-/ diagnostics surface.
func IsDiagnosticsPath(path string) bool {
	return strings.HasPrefix(path, diagnosticsPrefix)
}
