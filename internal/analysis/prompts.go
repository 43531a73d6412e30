package analysis

import (
	"fmt"
	"strings"

	"github.com/ridgelinehq/docpipe/internal/core/domain"
)

const maxPromptText = 6000

func buildTypePrompt(text string) string {
	labels := make([]string, 0, len(domain.KnownDocumentTypes())+1)
	for _, t := range domain.KnownDocumentTypes() {
		labels = append(labels, string(t))
	}
	labels = append(labels, string(domain.DocTypeUnknown))

	return fmt.Sprintf(`Identify the tax document type.
Answer with exactly one of: %s.
No punctuation, no explanation.

Document:
%s`, strings.Join(labels, ", "), clip(text))
}

// Each known type gets a bespoke schema description; unrecognized
// types get a generic best-effort prompt.
func buildExtractionPrompt(docType domain.DocumentType, text string) string {
	var schema string
	switch docType {
	case domain.DocTypeW2:
		schema = `{
  "employee_name": string, "employee_ssn": string ("XXX-XX-XXXX"),
  "employer_name": string, "employer_ein": string ("XX-XXXXXXX"),
  "wages": number, "federal_withheld": number, "state_withheld": number,
  "social_security_wages": number, "medicare_wages": number
}`
	case domain.DocType1099NEC:
		schema = `{
  "payer_name": string, "payer_tin": string ("XX-XXXXXXX"),
  "nonemployee_compensation": number, "federal_withheld": number
}`
	case domain.DocType1099INT:
		schema = `{
  "payer_name": string, "interest_income": number, "federal_withheld": number
}`
	case domain.DocTypeReceipt:
		schema = `{
  "merchant_name": string, "total_amount": number, "tax_amount": number,
  "document_date": string ("YYYY-MM-DD"), "category": string, "description": string
}`
	case domain.DocTypeInvoice:
		schema = `{
  "merchant_name": string, "total_amount": number,
  "document_date": string ("YYYY-MM-DD"), "description": string
}`
	case domain.DocTypeBankStatement:
		schema = `{
  "document_date": string ("YYYY-MM-DD"), "description": string
}`
	default:
		schema = `{
  "document_date": string, "total_amount": number, "description": string
}`
	}

	return fmt.Sprintf(`Extract structured data from this tax document.
Return strict JSON matching this shape; omit keys you cannot find.
Do not guess values. No markdown, no extra keys.

%s

Document:
%s`, schema, clip(text))
}

func clip(text string) string {
	if len(text) > maxPromptText {
		return text[:maxPromptText]
	}
	return text
}
