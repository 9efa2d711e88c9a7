// Package handler adapts the static responder to Fiber requests routed by
// the site registry: it resolves index files, adds the per-site link and
// expires headers, and logs every outcome.
package handler

import (
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/static-hub/internal/logging"
	"github.com/any-hub/static-hub/internal/meta"
	"github.com/any-hub/static-hub/internal/server"
	"github.com/any-hub/static-hub/internal/static"
)

// Handler 对外暴露 Fiber handler，把请求交给站点的 Responder 并输出结构化日志。
type Handler struct {
	logger *logrus.Logger
	now    func() time.Time
}

// NewHandler constructs a static handler with a shared logger.
func NewHandler(logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Handler{
		logger: logger,
		now:    time.Now,
	}
}

// Handle 实现 server.SiteHandler。响应头提交前的错误转换为 500，提交后只记录日志。
func (h *Handler) Handle(c fiber.Ctx, route *server.SiteRoute) (err error) {
	started := time.Now()
	requestID := server.RequestID(c)
	method := c.Method()

	if method != http.MethodGet && method != http.MethodHead {
		c.Set(fiber.HeaderAllow, "GET, HEAD")
		return h.writeError(c, fiber.StatusMethodNotAllowed, "method_not_allowed")
	}

	target := resolveTarget(route, string(c.Request().URI().Path()))
	cacheControl := route.CacheControl
	opts := static.Options{
		Cache:           &cacheControl,
		OutgoingHeaders: h.outgoingHeaders(route, target),
	}

	var result static.Result
	defer func() {
		if r := recover(); r != nil {
			panicErr := fmt.Errorf("panic: %v", r)
			h.logResult(route, method, target, requestID, result, started, panicErr)
			err = h.writeError(c, fiber.StatusInternalServerError, "static_panic")
		}
	}()

	result, err = route.Responder.ServeStatic(c.Context(), static.FiberHeaders(c), static.FiberSink(c), target, opts)
	h.logResult(route, method, target, requestID, result, started, err)
	if err != nil && !result.Committed {
		return h.writeError(c, fiber.StatusInternalServerError, "static_failed")
	}
	return nil
}

// outgoingHeaders 组装最低优先级的站点级响应头：early hints 与 expires。
func (h *Handler) outgoingHeaders(route *server.SiteRoute, target string) meta.Headers {
	layers := []meta.Headers{meta.Link(route.Config.LinksFor(target))}
	if expires := route.ExpiresAt(h.now()); !expires.IsZero() {
		layers = append(layers, meta.Expires(expires))
	}
	return meta.Merge(layers...)
}

func (h *Handler) writeError(c fiber.Ctx, status int, code string) error {
	return c.Status(status).JSON(fiber.Map{"error": code})
}

func (h *Handler) logResult(
	route *server.SiteRoute,
	method string,
	target string,
	requestID string,
	result static.Result,
	started time.Time,
	err error,
) {
	fields := logging.RequestFields(
		route.Config.Name,
		route.Config.Domain,
		target,
		method,
		result.Status,
		time.Since(started).Milliseconds(),
	)
	fields["action"] = "static"
	fields["bytes"] = result.Bytes
	if result.ETag != "" {
		fields["etag"] = result.ETag
	}
	if requestID != "" {
		fields["request_id"] = requestID
	}
	if err != nil {
		fields["error"] = err.Error()
		fields["committed"] = result.Committed
		h.logger.WithFields(fields).Error("static_failed")
		return
	}
	h.logger.WithFields(fields).Info("static_complete")
}

// resolveTarget 规范化请求路径，目录形式的路径补上站点 Index 文件名。
func resolveTarget(route *server.SiteRoute, raw string) string {
	if raw == "" {
		raw = "/"
	}
	clean := path.Clean("/" + raw)
	if strings.HasSuffix(raw, "/") {
		index := route.Config.Index
		if index == "" {
			index = "index.html"
		}
		clean = path.Join(clean, index)
	}
	return clean
}
