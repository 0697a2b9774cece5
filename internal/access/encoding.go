package access

import (
	"encoding/base64"
	"unicode/utf8"

	"github.com/saintfish/chardet"

	"github.com/sheenhq/workspace-gateway/internal/shared/types"
)

// encodeContent chooses the transport encoding for file content. Valid
// UTF-8 text passes through; binary content or text in another charset is
// base64-encoded with a best-effort charset guess attached.
func encodeContent(data []byte, binary bool) (content string, enc types.Encoding, charset string) {
	if !binary && utf8.Valid(data) {
		return string(data), types.EncodingUTF8, ""
	}

	if !binary {
		// Text that failed UTF-8 validation; guess what it actually is.
		if result, err := chardet.NewTextDetector().DetectBest(data); err == nil {
			charset = result.Charset
		}
	}
	return base64.StdEncoding.EncodeToString(data), types.EncodingBase64, charset
}

// sniffBinary applies the null-byte heuristic to in-memory content, for
// artifact files where no probe ran.
func sniffBinary(data []byte) bool {
	limit := len(data)
	if limit > 1024 {
		limit = 1024
	}
	for _, b := range data[:limit] {
		if b == 0 {
			return true
		}
	}
	return false
}
