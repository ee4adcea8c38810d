package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"sort"
)

// absentBody 是请求体缺失时写入的长度哨兵，与空请求体（长度 0）区分。
const absentBody int32 = -1

// Fingerprint 描述一次请求中参与缓存键计算的全部字段。
type Fingerprint struct {
	Method string
	// URL 原样参与哈希，不做任何规范化。
	URL     string
	Headers []Header
	Body    []byte
	// HasBody 为 false 时表示请求没有正文，此时 Body 被忽略。
	HasBody bool
}

// New 构建 Fingerprint 并按名称升序排列 headers；body 为 nil 表示缺失。
func New(method, url string, headers []Header, body []byte) Fingerprint {
	sorted := append([]Header(nil), headers...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})
	return Fingerprint{
		Method:  method,
		URL:     url,
		Headers: sorted,
		Body:    body,
		HasBody: body != nil,
	}
}

// Header 返回指定头部的值。
func (f Fingerprint) Header(name string) (string, bool) {
	for _, h := range f.Headers {
		if h.Name == name {
			return h.Value, true
		}
	}
	return "", false
}

// Digest is the SHA-256 of a fingerprint's canonical encoding.
type Digest [sha256.Size]byte

// Hex returns the lower-case hex form used for the shard layout.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// String implements fmt.Stringer.
func (d Digest) String() string {
	return d.Hex()
}

// Encode 计算 Fingerprint 的摘要。每个字段都先写入长度再写入内容，
// 避免 ("ab","c") 与 ("a","bc") 这类拼接产生相同的哈希。
func Encode(f Fingerprint) Digest {
	h := sha256.New()
	writeCanonical(h, f)
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

func writeCanonical(h hash.Hash, f Fingerprint) {
	putString(h, f.Method)
	putString(h, f.URL)
	putInt(h, int32(len(f.Headers)))
	for _, header := range f.Headers {
		putString(h, header.Name)
		putString(h, header.Value)
	}
	if !f.HasBody {
		putInt(h, absentBody)
		return
	}
	putInt(h, int32(len(f.Body)))
	h.Write(f.Body)
}

func putString(h hash.Hash, s string) {
	putInt(h, int32(len(s)))
	h.Write([]byte(s))
}

func putInt(h hash.Hash, v int32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(v))
	h.Write(buf[:])
}
