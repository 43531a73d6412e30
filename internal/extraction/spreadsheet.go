package extraction

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ridgelinehq/docpipe/internal/core/domain"
)

// extractSpreadsheet handles workbook uploads locally: cell values are
// already machine-readable, so no provider round trip is needed and
// the recognition carries full confidence per cell.
func extractSpreadsheet(data []byte) (*domain.RawRecognition, error) {
	book, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer book.Close()

	var sb strings.Builder
	var confidences []float64

	sheets := book.GetSheetList()
	for _, sheet := range sheets {
		rows, err := book.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		for _, row := range rows {
			line := strings.TrimRight(strings.Join(row, "\t"), "\t")
			if strings.TrimSpace(line) == "" {
				continue
			}
			sb.WriteString(line)
			sb.WriteByte('\n')
			for range row {
				confidences = append(confidences, 1.0)
			}
		}
	}

	return &domain.RawRecognition{
		Text:             sb.String(),
		TokenConfidences: confidences,
		PageCount:        len(sheets),
		Provider:         "spreadsheet",
	}, nil
}
