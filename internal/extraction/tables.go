package extraction

import (
	"regexp"
	"strings"

	"github.com/ridgelinehq/docpipe/internal/core/domain"
)

const tableConfidence = 0.7

var columnSplit = regexp.MustCompile(`\t|\s{2,}`)

// detectTables scans the raw text for consecutive lines exhibiting a
// consistent multi-column whitespace-delimited structure. Rows sharing
// the most common column count form the table; the first such row is
// treated as the header.
func detectTables(text string) []domain.DetectedTable {
	var tables []domain.DetectedTable
	var run [][]string

	flush := func() {
		if t, ok := buildTable(run); ok {
			tables = append(tables, t)
		}
		run = nil
	}

	for _, line := range strings.Split(text, "\n") {
		cols := splitColumns(line)
		if len(cols) >= 2 {
			run = append(run, cols)
			continue
		}
		flush()
	}
	flush()
	return tables
}

func splitColumns(line string) []string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil
	}
	parts := columnSplit.Split(trimmed, -1)
	cols := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			cols = append(cols, p)
		}
	}
	return cols
}

func buildTable(run [][]string) (domain.DetectedTable, bool) {
	if len(run) < 2 {
		return domain.DetectedTable{}, false
	}

	modal := modalColumnCount(run)
	if modal < 2 {
		return domain.DetectedTable{}, false
	}

	var rows [][]string
	for _, cols := range run {
		if len(cols) == modal {
			rows = append(rows, cols)
		}
	}
	if len(rows) < 2 {
		return domain.DetectedTable{}, false
	}

	return domain.DetectedTable{
		Headers:    rows[0],
		Rows:       rows[1:],
		Confidence: tableConfidence,
	}, true
}

func modalColumnCount(run [][]string) int {
	counts := make(map[int]int)
	for _, cols := range run {
		counts[len(cols)]++
	}
	best, bestN := 0, 0
	for width, n := range counts {
		if n > bestN || (n == bestN && width > best) {
			best, bestN = width, n
		}
	}
	return best
}
