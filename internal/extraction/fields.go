package extraction

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ridgelinehq/docpipe/internal/core/domain"
)

const fieldConfidence = 0.85

type fieldPattern struct {
	name    string
	kind    string
	re      *regexp.Regexp
	group   int
	maxHits int
}

// The fixed battery of form-field patterns run over the full text.
// Every match emits one field guess at confidence 0.85.
var fieldPatterns = []fieldPattern{
	{name: "ssn", kind: "tax_id", re: regexp.MustCompile(`\b(\d{3}-\d{2}-\d{4})\b`), group: 1, maxHits: 3},
	{name: "ein", kind: "tax_id", re: regexp.MustCompile(`\b(\d{2}-\d{7})\b`), group: 1, maxHits: 3},
	{name: "date", kind: "date", re: regexp.MustCompile(`\b((0?[1-9]|1[0-2])/(0?[1-9]|[12]\d|3[01])/(19|20)\d{2}|(19|20)\d{2}-(0[1-9]|1[0-2])-(0[1-9]|[12]\d|3[01]))\b`), group: 1, maxHits: 5},
	{name: "amount", kind: "currency", re: regexp.MustCompile(`\$\s?(\d{1,3}(?:,\d{3})*(?:\.\d{2})?|\d+\.\d{2})`), group: 1, maxHits: 10},
	{name: "name", kind: "text", re: regexp.MustCompile(`(?im)^\s*(?:employee|employer|payer|recipient|name)\s*[:\-]\s*(\S[^\n]*?)\s*$`), group: 1, maxHits: 5},
}

// detectFormFields yields zero guesses for plain prose with no tax
// ids, dates or amounts.
func detectFormFields(text string) []domain.DetectedField {
	var fields []domain.DetectedField
	for _, p := range fieldPatterns {
		matches := p.re.FindAllStringSubmatch(text, p.maxHits)
		for i, m := range matches {
			value := strings.TrimSpace(m[p.group])
			if value == "" {
				continue
			}
			name := p.name
			if i > 0 {
				name = p.name + "_" + strconv.Itoa(i+1)
			}
			fields = append(fields, domain.DetectedField{
				Name:       name,
				Value:      value,
				Type:       p.kind,
				Confidence: fieldConfidence,
			})
		}
	}
	return fields
}
