package analysis

import (
	"fmt"
	"regexp"

	"github.com/ridgelinehq/docpipe/internal/core/domain"
)

const (
	idFormatConfidence = 0.95
	amountConfidence   = 0.9
)

var (
	ssnRe = regexp.MustCompile(`^\d{3}-\d{2}-\d{4}$`)
	einRe = regexp.MustCompile(`^\d{2}-\d{7}$`)
)

// validateFields runs the fixed format rules over whichever extracted
// fields are present: SSN and EIN shapes at confidence 0.95, named
// monetary fields (non-negative) at 0.9.
func validateFields(data domain.ExtractedData) []domain.ValidationResult {
	var results []domain.ValidationResult

	if data.EmployeeSSN != nil {
		results = append(results, validateID("employee_ssn", *data.EmployeeSSN, ssnRe, "expected format XXX-XX-XXXX"))
	}
	if data.EmployerEIN != nil {
		results = append(results, validateID("employer_ein", *data.EmployerEIN, einRe, "expected format XX-XXXXXXX"))
	}
	if data.PayerTIN != nil {
		results = append(results, validateID("payer_tin", *data.PayerTIN, einRe, "expected format XX-XXXXXXX"))
	}

	for field, value := range monetaryFields(data) {
		results = append(results, validateAmount(field, value))
	}
	return results
}

func validateID(field, value string, re *regexp.Regexp, hint string) domain.ValidationResult {
	if re.MatchString(value) {
		return domain.ValidationResult{Field: field, Valid: true, Confidence: idFormatConfidence}
	}
	return domain.ValidationResult{
		Field:      field,
		Valid:      false,
		Message:    fmt.Sprintf("%q does not match the required format; %s", value, hint),
		Confidence: idFormatConfidence,
	}
}

func validateAmount(field string, value float64) domain.ValidationResult {
	if value >= 0 {
		return domain.ValidationResult{Field: field, Valid: true, Confidence: amountConfidence}
	}
	return domain.ValidationResult{
		Field:      field,
		Valid:      false,
		Message:    fmt.Sprintf("monetary field must be non-negative, got %.2f", value),
		Suggested:  fmt.Sprintf("%.2f", -value),
		Confidence: amountConfidence,
	}
}

func monetaryFields(data domain.ExtractedData) map[string]float64 {
	out := make(map[string]float64)
	put := func(name string, v *float64) {
		if v != nil {
			out[name] = *v
		}
	}
	put("wages", data.Wages)
	put("federal_withheld", data.FederalWithheld)
	put("state_withheld", data.StateWithheld)
	put("social_security_wages", data.SocialSecurityWage)
	put("medicare_wages", data.MedicareWages)
	put("nonemployee_compensation", data.NonemployeeComp)
	put("interest_income", data.InterestIncome)
	put("total_amount", data.TotalAmount)
	put("tax_amount", data.TaxAmount)
	put("deduction_amount", data.DeductionAmount)
	return out
}
