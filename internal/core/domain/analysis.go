package domain

// ExtractedData is the structured field bag the analysis engine fills
// from the LLM reply. Fields are grouped by the document families the
// pipeline understands; absent values stay nil. RawFields always echoes
// the OCR-detected form fields regardless of how extraction went.
type ExtractedData struct {
	// Identity
	EmployeeName *string `json:"employee_name,omitempty"`
	EmployeeSSN  *string `json:"employee_ssn,omitempty"`
	EmployerName *string `json:"employer_name,omitempty"`
	EmployerEIN  *string `json:"employer_ein,omitempty"`
	PayerName    *string `json:"payer_name,omitempty"`
	PayerTIN     *string `json:"payer_tin,omitempty"`

	// Income
	Wages              *float64 `json:"wages,omitempty"`
	FederalWithheld    *float64 `json:"federal_withheld,omitempty"`
	StateWithheld      *float64 `json:"state_withheld,omitempty"`
	SocialSecurityWage *float64 `json:"social_security_wages,omitempty"`
	MedicareWages      *float64 `json:"medicare_wages,omitempty"`
	NonemployeeComp    *float64 `json:"nonemployee_compensation,omitempty"`
	InterestIncome     *float64 `json:"interest_income,omitempty"`

	// Business / expense
	MerchantName *string  `json:"merchant_name,omitempty"`
	Category     *string  `json:"category,omitempty"`
	Description  *string  `json:"description,omitempty"`
	TotalAmount  *float64 `json:"total_amount,omitempty"`
	TaxAmount    *float64 `json:"tax_amount,omitempty"`

	// Deduction
	DeductionType   *string  `json:"deduction_type,omitempty"`
	DeductionAmount *float64 `json:"deduction_amount,omitempty"`

	DocumentDate *string `json:"document_date,omitempty"`

	RawFields map[string]string `json:"raw_fields,omitempty"`
}

type ValidationResult struct {
	Field      string  `json:"field"`
	Valid      bool    `json:"valid"`
	Message    string  `json:"message,omitempty"`
	Suggested  string  `json:"suggested,omitempty"`
	Confidence float64 `json:"confidence"`
}

type InsightCategory string

const (
	InsightDataQuality        InsightCategory = "data_quality"
	InsightTaxOptimization    InsightCategory = "tax_optimization"
	InsightMissingInformation InsightCategory = "missing_information"
	InsightCompliance         InsightCategory = "compliance"
)

type ImpactTier string

const (
	ImpactHigh   ImpactTier = "high"
	ImpactMedium ImpactTier = "medium"
	ImpactLow    ImpactTier = "low"
)

type Insight struct {
	Category       InsightCategory `json:"category"`
	Description    string          `json:"description"`
	Impact         ImpactTier      `json:"impact"`
	ActionRequired bool            `json:"action_required"`
}

// AnalysisResult is computed once per document per run from the OCR
// result. Degraded marks runs where one or more sub-steps fell back to
// a safe default instead of a genuine model-derived value.
type AnalysisResult struct {
	DocumentType    DocumentType       `json:"document_type"`
	Confidence      float64            `json:"confidence"`
	Data            ExtractedData      `json:"data"`
	Validations     []ValidationResult `json:"validations,omitempty"`
	Insights        []Insight          `json:"insights,omitempty"`
	Recommendations []string           `json:"recommendations,omitempty"`
	Degraded        bool               `json:"degraded"`
	DegradedSteps   []string           `json:"degraded_steps,omitempty"`
}
