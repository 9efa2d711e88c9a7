// Package meta derives the response metadata attached to static files:
// content type from the file name, entity tags from a stat snapshot, and
// HTTP-date freshness headers. Every function is pure; the ordered Headers
// type and Merge give callers an explicit precedence when several header
// layers are combined into one response.
package meta
