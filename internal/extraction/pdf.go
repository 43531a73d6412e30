package extraction

import (
	"bytes"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/ridgelinehq/docpipe/internal/core/domain"
)

// enrichFromPDF is a best-effort local pass over the raw bytes: it
// fixes up the page count when the provider did not report one and
// supplies the embedded text layer when the provider came back empty
// (born-digital PDFs often carry perfect text the OCR path misses).
func enrichFromPDF(result *domain.OCRResult, data []byte) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return
	}

	if result.Metadata.PageCount == 0 {
		result.Metadata.PageCount = reader.NumPage()
	}

	if strings.TrimSpace(result.Text) != "" {
		return
	}
	text, err := nativePDFText(reader)
	if err != nil || strings.TrimSpace(text) == "" {
		return
	}
	result.Text = text
	if result.Confidence < defaultConfidence {
		result.Confidence = defaultConfidence
	}
}

func nativePDFText(reader *pdf.Reader) (string, error) {
	r, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if _, err := io.Copy(&sb, r); err != nil {
		return "", err
	}
	return sb.String(), nil
}
