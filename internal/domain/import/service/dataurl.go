package service

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"

	"github.com/vincent-petithory/dataurl"
)

// pdfMagic starts every PDF file.
var pdfMagic = []byte("%PDF")

// upload is a decoded data URL.
type upload struct {
	MediaType string
	Data      []byte
}

func (u upload) isImage() bool {
	return strings.HasPrefix(u.MediaType, "image/")
}

func (u upload) isPDF() bool {
	return u.MediaType == "application/pdf" || bytes.HasPrefix(u.Data, pdfMagic)
}

// decodeDataURL decodes an RFC 2397 data URL. maxBytes bounds the decoded
// size; zero means no limit.
func decodeDataURL(raw string, maxBytes int64) (upload, error) {
	raw = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)

	// Base64 inflates by 4/3, so anything longer cannot fit once decoded.
	if _, payload, ok := strings.Cut(raw, ","); ok && maxBytes > 0 && int64(len(payload)) > maxBytes*4/3+4 {
		return upload{}, ErrTooLarge
	}

	du, err := dataurl.DecodeString(raw)
	if err != nil {
		return upload{}, fmt.Errorf("invalid data URL: %w", err)
	}
	if maxBytes > 0 && int64(len(du.Data)) > maxBytes {
		return upload{}, ErrTooLarge
	}
	return upload{
		MediaType: strings.ToLower(du.ContentType()),
		Data:      du.Data,
	}, nil
}
