package static

import (
	"io"
	"net/http"

	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/static-hub/internal/meta"
)

// RequestHeaders 是响应器读取请求头所需的最小接口，http.Header 天然满足。
type RequestHeaders interface {
	Get(name string) string
}

// HeaderFunc adapts a lookup function to RequestHeaders.
type HeaderFunc func(name string) string

// Get makes HeaderFunc satisfy RequestHeaders.
func (f HeaderFunc) Get(name string) string {
	return f(name)
}

// ResponseSink 是一次响应的写出目标：WriteHead 只能调用一次，随后写入正文并 End。
type ResponseSink interface {
	WriteHead(status int, headers meta.Headers) error
	io.Writer
	End() error
}

// FiberHeaders 读取 Fiber 请求头。
func FiberHeaders(c fiber.Ctx) RequestHeaders {
	return HeaderFunc(func(name string) string {
		return c.Get(name)
	})
}

// FiberSink 将响应写入 Fiber 上下文。
func FiberSink(c fiber.Ctx) ResponseSink {
	return &fiberSink{c: c}
}

type fiberSink struct {
	c       fiber.Ctx
	written bool
	body    io.Writer
}

func (s *fiberSink) WriteHead(status int, headers meta.Headers) error {
	if s.written {
		return ErrHeadersWritten
	}
	s.written = true
	s.c.Status(status)
	headers.Each(func(name, value string) {
		s.c.Set(name, value)
	})
	return nil
}

func (s *fiberSink) Write(p []byte) (int, error) {
	if s.body == nil {
		s.body = s.c.Response().BodyWriter()
	}
	return s.body.Write(p)
}

func (s *fiberSink) End() error {
	return nil
}

// HTTPSink 将响应写入 net/http 的 ResponseWriter。
func HTTPSink(w http.ResponseWriter) ResponseSink {
	return &httpSink{w: w}
}

type httpSink struct {
	w       http.ResponseWriter
	written bool
}

func (s *httpSink) WriteHead(status int, headers meta.Headers) error {
	if s.written {
		return ErrHeadersWritten
	}
	s.written = true
	header := s.w.Header()
	headers.Each(header.Set)
	s.w.WriteHeader(status)
	return nil
}

func (s *httpSink) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

func (s *httpSink) End() error {
	if flusher, ok := s.w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}
