package meta

import "strings"

// Headers 是保持插入顺序的响应头集合，键统一为小写；重复 Set 覆盖原值但保留首次出现的位置。
type Headers struct {
	keys   []string
	values map[string]string
}

// NewHeaders 以成对的 name/value 构建 Headers，奇数个参数时忽略最后一个。
func NewHeaders(pairs ...string) Headers {
	var h Headers
	for i := 0; i+1 < len(pairs); i += 2 {
		h.Set(pairs[i], pairs[i+1])
	}
	return h
}

// Set 写入或覆盖一个响应头。
func (h *Headers) Set(name, value string) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return
	}
	if h.values == nil {
		h.values = make(map[string]string)
	}
	if _, exists := h.values[key]; !exists {
		h.keys = append(h.keys, key)
	}
	h.values[key] = value
}

// Get 返回响应头取值以及是否存在。
func (h Headers) Get(name string) (string, bool) {
	value, ok := h.values[strings.ToLower(name)]
	return value, ok
}

// Has 判断响应头是否存在。
func (h Headers) Has(name string) bool {
	_, ok := h.Get(name)
	return ok
}

// Len 返回响应头数量。
func (h Headers) Len() int {
	return len(h.keys)
}

// Keys 按插入顺序返回全部键。
func (h Headers) Keys() []string {
	out := make([]string, len(h.keys))
	copy(out, h.keys)
	return out
}

// Each 按插入顺序遍历响应头。
func (h Headers) Each(fn func(name, value string)) {
	for _, key := range h.keys {
		fn(key, h.values[key])
	}
}

// Clone 返回一份独立副本。
func (h Headers) Clone() Headers {
	var out Headers
	h.Each(out.Set)
	return out
}

// Map 导出为普通 map，便于 JSON 输出或断言。
func (h Headers) Map() map[string]string {
	out := make(map[string]string, len(h.keys))
	h.Each(func(name, value string) {
		out[name] = value
	})
	return out
}

// Merge 按参数顺序合并多层响应头，后面的层在键冲突时覆盖前面的层。
func Merge(layers ...Headers) Headers {
	var out Headers
	for _, layer := range layers {
		layer.Each(out.Set)
	}
	return out
}
