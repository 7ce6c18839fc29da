// Package extractor turns uploaded intake documents into plain text.
package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/medical-intake/internal/core/domain"
)

const maxExtractedBytes = 1 << 20

type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

// Extract supports text/plain and application/pdf. Unknown types are rejected as
// invalid input.
func (e *Extractor) Extract(_ context.Context, mimeType string, data []byte) (string, error) {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(mimeType))
	}

	switch {
	case mediaType == "application/pdf" || (mediaType == "application/octet-stream" && bytes.HasPrefix(data, []byte("%PDF-"))):
		return extractPDF(data)
	case strings.HasPrefix(mediaType, "text/") || mediaType == "":
		return extractPlainText(data)
	default:
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text", fmt.Errorf("unsupported content type %q", mimeType))
	}
}

func extractPlainText(raw []byte) (string, error) {
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(raw) {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text", fmt.Errorf("text is not valid utf-8"))
	}
	return strings.TrimSpace(string(raw)), nil
}

func extractPDF(data []byte) (text string, err error) {
	// The pdf reader panics on some malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = domain.WrapError(domain.ErrInvalidInput, "extract pdf", fmt.Errorf("malformed pdf: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract pdf", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract pdf", err)
	}
	raw, err := io.ReadAll(io.LimitReader(plain, maxExtractedBytes))
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return strings.Join(strings.Fields(string(raw)), " "), nil
}
