package meta

import (
	"mime"
	"net/http"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	HeaderContentType  = "content-type"
	HeaderCacheControl = "cache-control"
	HeaderETag         = "etag"
	HeaderContentSize  = "content-size"
	HeaderLastModified = "last-modified"
	HeaderExpires      = "expires"
	HeaderLink         = "link"

	// SourceMapType 是 .map 文件的固定类型，与前缀扩展名无关。
	SourceMapType = "application/json"
	// DefaultType 用于无法识别的扩展名。
	DefaultType = "application/octet-stream"
)

// Stat 是计算 ETag 所需的最小文件信息。
type Stat interface {
	ModifiedTime() time.Time
	SizeBytes() int64
}

// ContentType 根据文件名推断 content-type；.map 一律视为 JSON。
func ContentType(filename string) Headers {
	name := filepath.Base(filename)
	return NewHeaders(HeaderContentType, contentTypeOf(name))
}

func contentTypeOf(name string) string {
	if strings.HasSuffix(name, ".map") {
		return SourceMapType
	}
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return DefaultType
	}
	if typ := mime.TypeByExtension(ext); typ != "" {
		return typ
	}
	return DefaultType
}

// ETag 返回 "<size 十六进制>-<毫秒 mtime 十六进制>"，同一份 size/mtime 恒得到相同结果。
func ETag(stat Stat) string {
	return FormatETag(stat.SizeBytes(), stat.ModifiedTime())
}

// FormatETag 是 ETag 的底层实现，便于调用方直接传入字段。
func FormatETag(size int64, modTime time.Time) string {
	var b strings.Builder
	b.Grow(24)
	b.WriteByte('"')
	b.WriteString(strconv.FormatInt(size, 16))
	b.WriteByte('-')
	b.WriteString(strconv.FormatInt(modTime.UnixMilli(), 16))
	b.WriteByte('"')
	return b.String()
}

// HTTPDate 以 IMF-fixdate 格式输出时间。
func HTTPDate(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}

// LastModified 生成 last-modified 响应头。
func LastModified(t time.Time) Headers {
	return NewHeaders(HeaderLastModified, HTTPDate(t))
}

// Expires 生成 expires 响应头。
func Expires(t time.Time) Headers {
	return NewHeaders(HeaderExpires, HTTPDate(t))
}

// Link 将 early hints 拼接为单个 link 头；为空时不返回任何键。
func Link(hints []string) Headers {
	if len(hints) == 0 {
		return Headers{}
	}
	return NewHeaders(HeaderLink, strings.Join(hints, ", "))
}
