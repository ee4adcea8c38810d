package cache

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestJSONCodecUsesStableFieldNames(t *testing.T) {
	codec, err := NewCodec(FormatJSON)
	if err != nil {
		t.Fatalf("codec error: %v", err)
	}
	data, err := codec.Marshal(&Entry{
		StatusCode: 200,
		Headers:    map[string]string{"Last-Modified": "x", "Content-Type": "text/plain"},
		Body:       []byte("hello"),
	})
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	want := `{"statusCode":200,"headers":{"Content-Type":"text/plain","Last-Modified":"x"},"body":"aGVsbG8="}`
	if string(data) != want {
		t.Fatalf("unexpected encoding:\n got %s\nwant %s", data, want)
	}
}

func TestCBOREntriesStayReadableAfterFormatSwitch(t *testing.T) {
	codec, err := NewCodec(FormatCBOR)
	if err != nil {
		t.Fatalf("codec error: %v", err)
	}
	cborStore, err := NewStore(t.TempDir(), codec)
	if err != nil {
		t.Fatalf("store error: %v", err)
	}
	path := filepath.Join(t.TempDir(), "ab", "cd")
	entry := &Entry{StatusCode: 203, Headers: map[string]string{"Content-Type": "application/json"}, Body: []byte(`{}`)}
	if err := cborStore.Write(context.Background(), path, entry); err != nil {
		t.Fatalf("write error: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read raw: %v", err)
	}
	if format, ok := sniffFormat(raw); !ok || format != FormatCBOR {
		t.Fatalf("expected cbor on disk, got %q", format)
	}

	jsonStore := newTestStore(t)
	got, err := jsonStore.Read(context.Background(), path)
	if err != nil {
		t.Fatalf("json-configured store should read cbor entries: %v", err)
	}
	if got.StatusCode != 203 || !bytes.Equal(got.Body, []byte(`{}`)) || got.Headers["Content-Type"] != "application/json" {
		t.Fatalf("entry mismatch: %+v", got)
	}
}

func TestDecodeEntryRejectsMalformedContent(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"plain text", []byte("hello")},
		{"truncated json", []byte(`{"statusCode":200,"body":"aGVs`)},
		{"missing status", []byte(`{"headers":{},"body":""}`)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := decodeEntry(tc.data); !errors.Is(err, errInvalidEntry) {
				t.Fatalf("expected errInvalidEntry, got %v", err)
			}
		})
	}
}

func TestParseEntryFormat(t *testing.T) {
	if f, err := ParseEntryFormat(""); err != nil || f != FormatJSON {
		t.Fatalf("empty format should default to json, got %q (%v)", f, err)
	}
	if f, err := ParseEntryFormat(" CBOR "); err != nil || f != FormatCBOR {
		t.Fatalf("expected cbor, got %q (%v)", f, err)
	}
	if _, err := ParseEntryFormat("xml"); err == nil {
		t.Fatalf("unknown format should fail")
	}
}
