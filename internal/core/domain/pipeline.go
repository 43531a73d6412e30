package domain

import "time"

type Stage string

const (
	StageOCR      Stage = "ocr"
	StageAnalysis Stage = "analysis"
	StageAutoFill Stage = "autofill"
)

type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "low"
	SeverityMedium   ErrorSeverity = "medium"
	SeverityHigh     ErrorSeverity = "high"
	SeverityCritical ErrorSeverity = "critical"
)

type ProcessingError struct {
	Stage     Stage         `json:"stage"`
	Message   string        `json:"message"`
	Severity  ErrorSeverity `json:"severity"`
	Timestamp time.Time     `json:"timestamp"`
}

type StageState string

const (
	StageCompleted StageState = "completed"
	StageSkipped   StageState = "skipped"
	StageFailed    StageState = "failed"
)

type StageResult struct {
	Stage      Stage         `json:"stage"`
	State      StageState    `json:"state"`
	Confidence float64       `json:"confidence"`
	Duration   time.Duration `json:"duration"`
	Detail     string        `json:"detail,omitempty"`
}

type OverallStatus string

const (
	OutcomeSuccess OverallStatus = "success"
	OutcomePartial OverallStatus = "partial"
	OutcomeFailed  OverallStatus = "failed"
)

// RunOptions control one pipeline run. Each stage is independently
// skippable; skipping OCR implies the downstream stages run without
// input and mark themselves skipped.
type RunOptions struct {
	ClientID     string `json:"client_id,omitempty"`
	TaxYear      int    `json:"tax_year,omitempty"`
	SkipOCR      bool   `json:"skip_ocr,omitempty"`
	SkipAnalysis bool   `json:"skip_analysis,omitempty"`
	SkipAutoFill bool   `json:"skip_autofill,omitempty"`
}

// ProcessingResult is the per-document outcome of one pipeline run.
// Batch callers receive one per document even when that document's run
// failed outright.
type ProcessingResult struct {
	DocumentID     string            `json:"document_id"`
	Status         OverallStatus     `json:"status"`
	Stages         []StageResult     `json:"stages"`
	Errors         []ProcessingError `json:"errors,omitempty"`
	Confidence     float64           `json:"confidence"`
	Classification *Classification   `json:"classification,omitempty"`
	Summary        string            `json:"summary"`
	StartedAt      time.Time         `json:"started_at"`
	FinishedAt     time.Time         `json:"finished_at"`
}

type BatchInput struct {
	DocumentID string `json:"document_id"`
	Data       []byte `json:"-"`
	MimeType   string `json:"mime_type"`
}

type RunPhase string

const (
	RunQueued    RunPhase = "queued"
	RunRunning   RunPhase = "running"
	RunCompleted RunPhase = "completed"
	RunFailed    RunPhase = "failed"
	RunCancelled RunPhase = "cancelled"
)

// RunState is the persisted tracking record for an in-flight or
// finished pipeline run, keyed by document id.
type RunState struct {
	DocumentID string    `json:"document_id"`
	Phase      RunPhase  `json:"phase"`
	Stage      Stage     `json:"stage,omitempty"`
	Progress   int       `json:"progress"`
	Message    string    `json:"message,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RunStatus is the caller-facing view of a run.
type RunStatus struct {
	Phase                RunPhase `json:"phase"`
	Message              string   `json:"message,omitempty"`
	Progress             int      `json:"progress"`
	EstimatedSecondsLeft *int     `json:"estimated_seconds_left,omitempty"`
}

// ProcessingLogEntry is an append-only record of one stage outcome.
type ProcessingLogEntry struct {
	DocumentID string        `json:"document_id"`
	Stage      Stage         `json:"stage"`
	Status     StageState    `json:"status"`
	Confidence float64       `json:"confidence"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}
