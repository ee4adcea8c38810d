package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// EntryFormat 标识条目在磁盘上的序列化格式。
type EntryFormat string

const (
	FormatJSON EntryFormat = "json"
	FormatCBOR EntryFormat = "cbor"
)

// Codec 将 Entry 编解码为自描述的字节序列，字段名保持 statusCode/headers/body 不变。
type Codec interface {
	Format() EntryFormat
	Marshal(entry *Entry) ([]byte, error)
	Unmarshal(data []byte, entry *Entry) error
}

var errInvalidEntry = errors.New("invalid cache entry")

// ParseEntryFormat 解析配置中的格式名，空值回退为 json。
func ParseEntryFormat(raw string) (EntryFormat, error) {
	switch EntryFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCBOR:
		return FormatCBOR, nil
	default:
		return "", fmt.Errorf("unsupported entry format: %s", raw)
	}
}

// NewCodec 返回指定格式的编解码器。
func NewCodec(format EntryFormat) (Codec, error) {
	switch format {
	case "", FormatJSON:
		return jsonCodec{}, nil
	case FormatCBOR:
		mode, err := cbor.CoreDetEncOptions().EncMode()
		if err != nil {
			return nil, err
		}
		return cborCodec{enc: mode}, nil
	default:
		return nil, fmt.Errorf("unsupported entry format: %s", format)
	}
}

type jsonCodec struct{}

func (jsonCodec) Format() EntryFormat { return FormatJSON }

func (jsonCodec) Marshal(entry *Entry) ([]byte, error) {
	return json.Marshal(entry)
}

func (jsonCodec) Unmarshal(data []byte, entry *Entry) error {
	return json.Unmarshal(data, entry)
}

type cborCodec struct {
	enc cbor.EncMode
}

func (c cborCodec) Format() EntryFormat { return FormatCBOR }

func (c cborCodec) Marshal(entry *Entry) ([]byte, error) {
	return c.enc.Marshal(entry)
}

func (cborCodec) Unmarshal(data []byte, entry *Entry) error {
	return cbor.Unmarshal(data, entry)
}

// sniffFormat 根据首字节判断文件格式：JSON 以 '{' 开头，CBOR map 的主类型为 5。
func sniffFormat(data []byte) (EntryFormat, bool) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return "", false
	}
	if trimmed[0] == '{' {
		return FormatJSON, true
	}
	if trimmed[0]>>5 == 5 {
		return FormatCBOR, true
	}
	return "", false
}

// decodeEntry 自动识别格式并校验解码结果，写入格式切换后旧条目仍然可读。
func decodeEntry(data []byte) (*Entry, error) {
	format, ok := sniffFormat(data)
	if !ok {
		return nil, fmt.Errorf("%w: unrecognized encoding", errInvalidEntry)
	}
	codec, err := NewCodec(format)
	if err != nil {
		return nil, err
	}
	var entry Entry
	if err := codec.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidEntry, err)
	}
	if entry.StatusCode < 100 || entry.StatusCode > 999 {
		return nil, fmt.Errorf("%w: status code %d", errInvalidEntry, entry.StatusCode)
	}
	if entry.Headers == nil {
		entry.Headers = map[string]string{}
	}
	if entry.Body == nil {
		entry.Body = []byte{}
	}
	return &entry, nil
}
