package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ridgelinehq/docpipe/internal/core/domain"
)

// Extraction replies are validated against a loose per-type schema
// before unmarshalling: wrong-typed values are a degrade signal, not a
// reason to abort.
const extractionSchemaTemplate = `{
  "type": "object",
  "properties": {
    "employee_name": {"type": "string"},
    "employee_ssn": {"type": "string"},
    "employer_name": {"type": "string"},
    "employer_ein": {"type": "string"},
    "payer_name": {"type": "string"},
    "payer_tin": {"type": "string"},
    "wages": {"type": "number"},
    "federal_withheld": {"type": "number"},
    "state_withheld": {"type": "number"},
    "social_security_wages": {"type": "number"},
    "medicare_wages": {"type": "number"},
    "nonemployee_compensation": {"type": "number"},
    "interest_income": {"type": "number"},
    "merchant_name": {"type": "string"},
    "category": {"type": "string"},
    "description": {"type": "string"},
    "total_amount": {"type": "number"},
    "tax_amount": {"type": "number"},
    "deduction_type": {"type": "string"},
    "deduction_amount": {"type": "number"},
    "document_date": {"type": "string"}
  }
}`

var extractionSchema = jsonschema.MustCompileString("extraction.json", extractionSchemaTemplate)

// parseExtraction validates and decodes an LLM extraction reply.
func parseExtraction(reply string) (domain.ExtractedData, error) {
	raw := extractJSONObject(reply)

	var generic any
	if err := json.Unmarshal([]byte(raw), &generic); err != nil {
		return domain.ExtractedData{}, fmt.Errorf("decode extraction reply: %w", err)
	}
	if err := extractionSchema.Validate(generic); err != nil {
		return domain.ExtractedData{}, fmt.Errorf("extraction reply failed schema validation: %w", err)
	}

	var data domain.ExtractedData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return domain.ExtractedData{}, fmt.Errorf("unmarshal extraction reply: %w", err)
	}
	return data, nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
