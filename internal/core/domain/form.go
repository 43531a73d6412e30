package domain

import "time"

type FormType string

const (
	Form1040      FormType = "form_1040"
	FormScheduleB FormType = "schedule_b"
	FormScheduleC FormType = "schedule_c"
)

type FormStatus string

const (
	FormDraft      FormStatus = "draft"
	FormInProgress FormStatus = "in_progress"
	FormCompleted  FormStatus = "completed"
	FormFiled      FormStatus = "filed"
	FormAmended    FormStatus = "amended"
)

type FieldActor string

const (
	ActorAI          FieldActor = "ai"
	ActorUser        FieldActor = "user"
	ActorCalculation FieldActor = "calculation"
)

// FormField carries a single value plus its provenance. It is
// overwritten only through conflict resolution in the auto-fill
// resolver.
type FormField struct {
	Value            string     `json:"value"`
	Confidence       float64    `json:"confidence"`
	SourceDocument   string     `json:"source_document,omitempty"`
	SourceField      string     `json:"source_field,omitempty"`
	Calculated       bool       `json:"calculated"`
	RequiresReview   bool       `json:"requires_review"`
	ValidationStatus string     `json:"validation_status,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
	UpdatedBy        FieldActor `json:"updated_by"`
}

// TaxForm is the destination record a document's extracted fields are
// progressively merged into. At most one exists per (client, form
// type, tax year); it is fetched-or-created lazily on first
// contribution. Version backs the optimistic-concurrency check on
// merge.
type TaxForm struct {
	ID              string               `json:"id"`
	ClientID        string               `json:"client_id"`
	Type            FormType             `json:"type"`
	TaxYear         int                  `json:"tax_year"`
	Status          FormStatus           `json:"status"`
	Fields          map[string]FormField `json:"fields"`
	Confidence      float64              `json:"confidence"`
	RequiresReview  bool                 `json:"requires_review"`
	SourceDocuments []string             `json:"source_documents,omitempty"`
	Version         int64                `json:"version"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

type ConflictResolution string

const (
	KeepExisting ConflictResolution = "keep_existing"
	UseNew       ConflictResolution = "use_new"
	ManualReview ConflictResolution = "manual_review"
)

// FieldConflict records a disagreement between a stored form field and
// a newly extracted value. Conflicts are ephemeral: computed during a
// merge and embedded in the stage result, never persisted on their own.
type FieldConflict struct {
	Field              string             `json:"field"`
	ExistingValue      string             `json:"existing_value"`
	NewValue           string             `json:"new_value"`
	ExistingSource     string             `json:"existing_source,omitempty"`
	NewSource          string             `json:"new_source,omitempty"`
	ExistingConfidence float64            `json:"existing_confidence"`
	NewConfidence      float64            `json:"new_confidence"`
	Resolution         ConflictResolution `json:"resolution"`
	Reason             string             `json:"reason"`
}

// AutoFillResult aggregates the per-form merge outcomes for one
// document.
type AutoFillResult struct {
	FormTypes      []FormType      `json:"form_types,omitempty"`
	FieldsAdded    []string        `json:"fields_added,omitempty"`
	FieldsUpdated  []string        `json:"fields_updated,omitempty"`
	Conflicts      []FieldConflict `json:"conflicts,omitempty"`
	Confidence     float64         `json:"confidence"`
	RequiresReview bool            `json:"requires_review"`
	Summary        string          `json:"summary,omitempty"`
	Warnings       []string        `json:"warnings,omitempty"`
}
