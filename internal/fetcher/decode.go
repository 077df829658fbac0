package fetcher

import (
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DecodeReader strips a leading byte-order mark and decodes UTF-16 payloads
// (Excel "Unicode text" exports) to UTF-8. Input without a BOM is read as UTF-8.
func DecodeReader(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

// DecodeBytes is the buffer form of DecodeReader.
func DecodeBytes(b []byte) ([]byte, error) {
	out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), b)
	return out, err
}
