package autofill

import (
	"fmt"
	"strings"

	"github.com/ridgelinehq/docpipe/internal/core/domain"
)

// fieldMapping translates one document-extracted field onto a target
// form field.
type fieldMapping struct {
	docField  string
	formField string
}

// Per-(form type, document type) mapping tables. A document field with
// no present value is skipped at fill time.
var formMappings = map[domain.FormType]map[domain.DocumentType][]fieldMapping{
	domain.Form1040: {
		domain.DocTypeW2: {
			{docField: "employee_name", formField: "taxpayer_name"},
			{docField: "employee_ssn", formField: "taxpayer_ssn"},
			{docField: "wages", formField: "wages_salaries_tips"},
			{docField: "federal_withheld", formField: "federal_income_tax_withheld"},
		},
	},
	domain.FormScheduleB: {
		domain.DocType1099INT: {
			{docField: "payer_name", formField: "interest_payer_name"},
			{docField: "interest_income", formField: "taxable_interest"},
		},
	},
	domain.FormScheduleC: {
		domain.DocType1099NEC: {
			{docField: "payer_name", formField: "payer_name"},
			{docField: "nonemployee_compensation", formField: "gross_receipts"},
		},
		domain.DocTypeReceipt: {
			{docField: "merchant_name", formField: "expense_vendor"},
			{docField: "total_amount", formField: "expense_amount"},
			{docField: "document_date", formField: "expense_date"},
			{docField: "category", formField: "expense_category"},
		},
		domain.DocTypeInvoice: {
			{docField: "merchant_name", formField: "expense_vendor"},
			{docField: "total_amount", formField: "expense_amount"},
			{docField: "document_date", formField: "expense_date"},
		},
	},
}

var businessCategoryKeywords = []string{
	"office", "supplies", "software", "travel", "equipment",
	"advertising", "professional", "business", "utilities", "fuel",
}

// targetFormTypes maps a document type to its candidate forms.
// Receipts and invoices only target the business-expense schedule when
// the extracted category looks business-related.
func targetFormTypes(docType domain.DocumentType, data domain.ExtractedData) []domain.FormType {
	switch docType {
	case domain.DocTypeW2:
		return []domain.FormType{domain.Form1040}
	case domain.DocType1099NEC:
		return []domain.FormType{domain.FormScheduleC}
	case domain.DocType1099INT:
		return []domain.FormType{domain.FormScheduleB}
	case domain.DocTypeReceipt:
		if isBusinessExpense(data) {
			return []domain.FormType{domain.FormScheduleC}
		}
		return nil
	case domain.DocTypeInvoice:
		return []domain.FormType{domain.FormScheduleC}
	default:
		return nil
	}
}

func isBusinessExpense(data domain.ExtractedData) bool {
	if data.Category == nil {
		return false
	}
	category := strings.ToLower(*data.Category)
	for _, kw := range businessCategoryKeywords {
		if strings.Contains(category, kw) {
			return true
		}
	}
	return false
}

// valueFor reads a mapped document field off the extracted-data bag,
// falling back to the raw OCR field map for unmapped names.
func valueFor(data domain.ExtractedData, docField string) (string, bool) {
	str := func(v *string) (string, bool) {
		if v == nil || strings.TrimSpace(*v) == "" {
			return "", false
		}
		return strings.TrimSpace(*v), true
	}
	num := func(v *float64) (string, bool) {
		if v == nil {
			return "", false
		}
		return fmt.Sprintf("%.2f", *v), true
	}

	switch docField {
	case "employee_name":
		return str(data.EmployeeName)
	case "employee_ssn":
		return str(data.EmployeeSSN)
	case "employer_name":
		return str(data.EmployerName)
	case "employer_ein":
		return str(data.EmployerEIN)
	case "payer_name":
		return str(data.PayerName)
	case "payer_tin":
		return str(data.PayerTIN)
	case "wages":
		return num(data.Wages)
	case "federal_withheld":
		return num(data.FederalWithheld)
	case "state_withheld":
		return num(data.StateWithheld)
	case "nonemployee_compensation":
		return num(data.NonemployeeComp)
	case "interest_income":
		return num(data.InterestIncome)
	case "merchant_name":
		return str(data.MerchantName)
	case "category":
		return str(data.Category)
	case "total_amount":
		return num(data.TotalAmount)
	case "document_date":
		return str(data.DocumentDate)
	default:
		if v, ok := data.RawFields[docField]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
		return "", false
	}
}
