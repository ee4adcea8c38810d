package fingerprint

import (
	"net/textproto"
	"sort"
)

// RequestHeaderAllowList 列出参与缓存键计算的请求头，其余请求头一律忽略。
var RequestHeaderAllowList = []string{
	"Accept",
	"Accept-Charset",
	"Accept-Encoding",
	"Accept-Language",
	"Authorization",
	"Content-Type",
	"Cookie",
	"Expect",
	"Host",
	"If-Match",
	"Range",
}

// ResponseHeaderAllowList 列出会被写入缓存条目的上游响应头。
var ResponseHeaderAllowList = []string{
	"Content-Encoding",
	"Content-Disposition",
	"Content-Language",
	"Content-Range",
	"Content-Type",
	"Last-Modified",
}

// Header 是一个 (name, value) 对，name 已规范化为 MIME 形式。
type Header struct {
	Name  string
	Value string
}

// AllowList 是大小写无关的头部白名单。
type AllowList struct {
	names map[string]struct{}
}

// NewAllowList 根据头部名称构建白名单，空白或重复名称会被忽略。
func NewAllowList(names []string) AllowList {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		canonical := textproto.CanonicalMIMEHeaderKey(name)
		if canonical == "" {
			continue
		}
		set[canonical] = struct{}{}
	}
	return AllowList{names: set}
}

// Allows reports whether the header name takes part in the allow-list.
func (a AllowList) Allows(name string) bool {
	_, ok := a.names[textproto.CanonicalMIMEHeaderKey(name)]
	return ok
}

// Names returns the canonical names in ascending order.
func (a AllowList) Names() []string {
	out := make([]string, 0, len(a.names))
	for name := range a.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Filter 从 lookup 中挑出白名单头部，每个头部只取第一个值，并按名称升序返回。
func (a AllowList) Filter(lookup func(name string) (string, bool)) []Header {
	names := a.Names()
	out := make([]Header, 0, len(names))
	for _, name := range names {
		value, ok := lookup(name)
		if !ok {
			continue
		}
		out = append(out, Header{Name: name, Value: value})
	}
	return out
}
