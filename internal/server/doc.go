// Package server hosts the Fiber HTTP service, request middleware chain, and
// site registry glue that maps the Host header to a site root and its static
// responder. Every site owns a read-only afero filesystem rooted at its
// configured directory and a bounded stat cache; the registry is built once
// at startup and shared by all requests. Handlers are injected through the
// SiteHandler interface so tests can replace the static pipeline.
package server
