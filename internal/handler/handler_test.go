package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/any-hub/static-hub/internal/config"
	"github.com/any-hub/static-hub/internal/server"
	"github.com/any-hub/static-hub/internal/server/routes"
)

var fixedNow = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

type testEnv struct {
	app      *fiber.App
	fs       afero.Fs
	registry *server.SiteRegistry
	logs     *bytes.Buffer
}

func newTestEnv(t *testing.T, mutate func(*config.SiteConfig)) *testEnv {
	t.Helper()

	fs := afero.NewMemMapFs()
	mtime := time.UnixMilli(1700000000000)
	files := map[string]string{
		"/index.html":     "<h1>docs</h1>",
		"/app.js":         "console.log('hi')",
		"/app.js.map":     `{"version":3}`,
		"/guide/index.md": "# guide",
	}
	for name, body := range files {
		if err := afero.WriteFile(fs, name, []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		if err := fs.Chtimes(name, mtime, mtime); err != nil {
			t.Fatalf("chtimes %s: %v", name, err)
		}
	}
	if err := fs.MkdirAll("/assets", 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	site := config.SiteConfig{
		Name:   "docs",
		Domain: "docs.local",
		Root:   "/srv/docs",
		Index:  "index.html",
	}
	if mutate != nil {
		mutate(&site)
	}
	cfg := &config.Config{
		Global: config.GlobalConfig{
			ListenPort:   5000,
			CacheControl: config.DefaultCacheControl,
		},
		Sites: []config.SiteConfig{site},
	}

	logs := &bytes.Buffer{}
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(logs)

	registry, err := server.NewSiteRegistry(cfg, server.RegistryOptions{
		Logger:    logger,
		FSFactory: func(config.SiteConfig) afero.Fs { return fs },
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	h := NewHandler(logger)
	h.now = func() time.Time { return fixedNow }

	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Registry:   registry,
		Handler:    h,
		ListenPort: 5000,
	})
	if err != nil {
		t.Fatalf("app: %v", err)
	}
	routes.RegisterDiagnosticRoutes(app, registry)

	return &testEnv{app: app, fs: fs, registry: registry, logs: logs}
}

func (e *testEnv) do(t *testing.T, method, target string, header http.Header) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest(method, "http://docs.local"+target, nil)
	req.Host = "docs.local"
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	resp, err := e.app.Test(req)
	if err != nil {
		t.Fatalf("app.Test %s %s: %v", method, target, err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, string(body)
}

func TestHandlerServesFileWithMetadata(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodGet, "/app.js", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", resp.StatusCode, body)
	}
	if body != "console.log('hi')" {
		t.Fatalf("unexpected body %q", body)
	}
	if got := resp.Header.Get("Content-Type"); got != "text/javascript; charset=utf-8" {
		t.Fatalf("unexpected content-type %q", got)
	}
	if got := resp.Header.Get("Cache-Control"); got != config.DefaultCacheControl {
		t.Fatalf("unexpected cache-control %q", got)
	}
	if got := resp.Header.Get("ETag"); got != `"11-18bcfe56800"` {
		t.Fatalf("unexpected etag %q", got)
	}
	if got := resp.Header.Get("Content-Size"); got != "17" {
		t.Fatalf("unexpected content-size %q", got)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header")
	}
	if !strings.Contains(env.logs.String(), `"static_complete"`) {
		t.Fatalf("expected completion log, got %s", env.logs.String())
	}
}

func TestHandlerReturnsNotModifiedOnMatchingETag(t *testing.T) {
	env := newTestEnv(t, nil)

	first, _ := env.do(t, http.MethodGet, "/app.js", nil)
	etag := first.Header.Get("ETag")

	resp, body := env.do(t, http.MethodGet, "/app.js", http.Header{"If-None-Match": {etag}})
	if resp.StatusCode != fiber.StatusNotModified {
		t.Fatalf("expected 304, got %d", resp.StatusCode)
	}
	if body != "" {
		t.Fatalf("expected empty body, got %q", body)
	}
	if resp.Header.Get("ETag") != etag {
		t.Fatalf("expected etag echoed on 304")
	}

	resp, _ = env.do(t, http.MethodGet, "/app.js", http.Header{"If-None-Match": {"W/" + etag}})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("weak validator must not match, got %d", resp.StatusCode)
	}
}

func TestHandlerNotFound(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, target := range []string{"/missing.css", "/assets", "/../etc/passwd"} {
		resp, _ := env.do(t, http.MethodGet, target, nil)
		if resp.StatusCode != fiber.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", target, resp.StatusCode)
		}
	}
}

func TestHandlerResolvesIndex(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodGet, "/", nil)
	if resp.StatusCode != fiber.StatusOK || body != "<h1>docs</h1>" {
		t.Fatalf("expected index.html, got %d %q", resp.StatusCode, body)
	}
	if got := resp.Header.Get("Content-Type"); !strings.HasPrefix(got, "text/html") {
		t.Fatalf("unexpected content-type %q", got)
	}

	env = newTestEnv(t, func(s *config.SiteConfig) { s.Index = "index.md" })
	resp, body = env.do(t, http.MethodGet, "/guide/", nil)
	if resp.StatusCode != fiber.StatusOK || body != "# guide" {
		t.Fatalf("expected guide index, got %d %q", resp.StatusCode, body)
	}
}

func TestHandlerAddsSiteHeaders(t *testing.T) {
	env := newTestEnv(t, func(s *config.SiteConfig) {
		s.CacheControl = "no-cache"
		s.Expires = config.Duration(time.Hour)
		s.Hints = []config.HintConfig{{
			Path:  "/index.html",
			Links: []string{"</app.js>; rel=preload; as=script", "</app.css>; rel=preload; as=style"},
		}}
	})

	resp, _ := env.do(t, http.MethodGet, "/", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Cache-Control"); got != "no-cache" {
		t.Fatalf("expected site cache-control override, got %q", got)
	}
	if got := resp.Header.Get("Link"); got != "</app.js>; rel=preload; as=script, </app.css>; rel=preload; as=style" {
		t.Fatalf("unexpected link header %q", got)
	}
	if got := resp.Header.Get("Expires"); got != "Tue, 02 Jan 2024 04:04:05 GMT" {
		t.Fatalf("unexpected expires header %q", got)
	}

	resp, _ = env.do(t, http.MethodGet, "/app.js", nil)
	if resp.Header.Get("Link") != "" {
		t.Fatalf("link header must only be sent for hinted paths")
	}
}

func TestHandlerSourceMapContentType(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, _ := env.do(t, http.MethodGet, "/app.js.map", nil)
	if got := resp.Header.Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected application/json, got %q", got)
	}
}

func TestHandlerHeadOmitsBody(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodHead, "/app.js", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body != "" {
		t.Fatalf("HEAD must not carry a body, got %q", body)
	}
	if resp.Header.Get("ETag") == "" {
		t.Fatalf("expected etag on HEAD")
	}
}

func TestHandlerRejectsUnsupportedMethods(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodPost, "/app.js", nil)
	if resp.StatusCode != fiber.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Allow") != "GET, HEAD" {
		t.Fatalf("expected Allow header, got %q", resp.Header.Get("Allow"))
	}
	if !strings.Contains(body, "method_not_allowed") {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestHandlerPicksUpChangesAfterInvalidate(t *testing.T) {
	env := newTestEnv(t, nil)

	first, _ := env.do(t, http.MethodGet, "/app.js", nil)
	oldTag := first.Header.Get("ETag")

	if err := afero.WriteFile(env.fs, "/app.js", []byte("console.log('changed!')"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	cached, _ := env.do(t, http.MethodGet, "/app.js", nil)
	if cached.Header.Get("ETag") != oldTag {
		t.Fatalf("expected cached stat to keep etag until invalidated")
	}

	resp, body := env.do(t, http.MethodDelete, "/-/stat-cache/docs?path=/app.js", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("invalidate failed: %d %s", resp.StatusCode, body)
	}
	var payload struct {
		Removed bool `json:"removed"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil || !payload.Removed {
		t.Fatalf("expected removed=true, got %s (%v)", body, err)
	}

	fresh, body := env.do(t, http.MethodGet, "/app.js", nil)
	if fresh.Header.Get("ETag") == oldTag {
		t.Fatalf("expected new etag after invalidate")
	}
	if body != "console.log('changed!')" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestResolveTarget(t *testing.T) {
	route := &server.SiteRoute{Config: config.SiteConfig{Index: "home.html"}}
	cases := map[string]string{
		"":              "/home.html",
		"/":             "/home.html",
		"/docs/":        "/docs/home.html",
		"/a/../b.js":    "/b.js",
		"//x//y.css":    "/x/y.css",
		"/../../secret": "/secret",
	}
	for raw, want := range cases {
		if got := resolveTarget(route, raw); got != want {
			t.Fatalf("resolveTarget(%q) = %q, want %q", raw, got, want)
		}
	}
}
