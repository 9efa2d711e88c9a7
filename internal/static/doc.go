// Package static implements the conditional static-file responder. For a
// path it decides between 404, 304 and 200 plus a byte stream, attaching
// cache-control, etag, content-type and content-size headers. Filesystem
// access goes through afero so sites can be rooted, read-only or in memory;
// stat lookups go through a shared cache.StatCache.
//
// The existence check and the stat are two separate steps. A file removed
// or replaced between them is a best-effort race: the responder does not
// treat the pair as atomic and surfaces the stat failure as an IOError.
package static
