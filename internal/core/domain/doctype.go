package domain

type DocumentType string

const (
	DocTypeW2            DocumentType = "w2"
	DocType1099NEC       DocumentType = "form_1099_nec"
	DocType1099INT       DocumentType = "form_1099_int"
	DocTypeReceipt       DocumentType = "receipt"
	DocTypeInvoice       DocumentType = "invoice"
	DocTypeBankStatement DocumentType = "bank_statement"
	DocTypeUnknown       DocumentType = "unknown"
)

// KnownDocumentTypes lists every type the classifier and analysis
// engine are allowed to emit, Unknown excluded.
func KnownDocumentTypes() []DocumentType {
	return []DocumentType{
		DocTypeW2,
		DocType1099NEC,
		DocType1099INT,
		DocTypeReceipt,
		DocTypeInvoice,
		DocTypeBankStatement,
	}
}

func ParseDocumentType(s string) DocumentType {
	for _, t := range KnownDocumentTypes() {
		if string(t) == s {
			return t
		}
	}
	return DocTypeUnknown
}

type AutoFillTier string

const (
	AutoFillFull    AutoFillTier = "full"
	AutoFillPartial AutoFillTier = "partial"
	AutoFillManual  AutoFillTier = "manual"
)

type TaxImportance string

const (
	ImportanceCritical TaxImportance = "critical"
	ImportanceHigh     TaxImportance = "high"
	ImportanceMedium   TaxImportance = "medium"
	ImportanceLow      TaxImportance = "low"
)

// Classification is derived from OCR text and consumed immediately by
// processing-priority decisions; it is not persisted on its own.
type Classification struct {
	Type              DocumentType  `json:"type"`
	Subtype           string        `json:"subtype,omitempty"`
	Confidence        float64       `json:"confidence"`
	AutoFillTier      AutoFillTier  `json:"autofill_tier"`
	RequiresReview    bool          `json:"requires_review"`
	TaxImportance     TaxImportance `json:"tax_importance"`
	EstimatedMinutes  int           `json:"estimated_minutes"`
	RelatedForms      []string      `json:"related_forms,omitempty"`
	ExtractableFields []string      `json:"extractable_fields,omitempty"`
	RiskFactors       []string      `json:"risk_factors,omitempty"`
}
