package domain

import "time"

type DocumentStatus string

const (
	StatusPending      DocumentStatus = "pending"
	StatusProcessing   DocumentStatus = "processing"
	StatusOCRCompleted DocumentStatus = "ocr_completed"
	StatusAnalyzing    DocumentStatus = "analyzing"
	StatusCompleted    DocumentStatus = "completed"
	StatusFailed       DocumentStatus = "failed"
)

// Document is an uploaded file moving through the intake pipeline.
// Only the pipeline orchestrator and its stage components mutate it
// after creation.
type Document struct {
	ID          string          `json:"id"`
	ClientID    string          `json:"client_id"`
	Filename    string          `json:"filename"`
	MimeType    string          `json:"mime_type"`
	StoragePath string          `json:"storage_path"`
	Status      DocumentStatus  `json:"status"`
	Message     string          `json:"message,omitempty"`
	OCR         *OCRResult      `json:"ocr_result,omitempty"`
	Analysis    *AnalysisResult `json:"analysis_result,omitempty"`
	AutoFill    *AutoFillResult `json:"autofill_result,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type TextBlock struct {
	Text       string      `json:"text"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"box"`
	Type       string      `json:"type,omitempty"`
}

type DetectedTable struct {
	Headers    []string   `json:"headers"`
	Rows       [][]string `json:"rows"`
	Confidence float64    `json:"confidence"`
}

// DetectedField is a best-effort form-field guess pulled out of the raw
// text by the extraction adapter's pattern battery.
type DetectedField struct {
	Name       string  `json:"name"`
	Value      string  `json:"value"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

type OCRMetadata struct {
	PageCount int           `json:"page_count"`
	Language  string        `json:"language,omitempty"`
	Duration  time.Duration `json:"duration"`
	Provider  string        `json:"provider"`
}

// OCRResult is produced once per document per pipeline run and is
// immutable after creation.
type OCRResult struct {
	Text       string          `json:"text"`
	Confidence float64         `json:"confidence"`
	Blocks     []TextBlock     `json:"blocks,omitempty"`
	Tables     []DetectedTable `json:"tables,omitempty"`
	Fields     []DetectedField `json:"fields,omitempty"`
	Metadata   OCRMetadata     `json:"metadata"`
}

// RawRecognition is the normalized shape of an OCR provider response
// before the extraction adapter derives blocks, tables and fields.
type RawRecognition struct {
	Text             string      `json:"text"`
	Blocks           []TextBlock `json:"blocks,omitempty"`
	TokenConfidences []float64   `json:"token_confidences,omitempty"`
	PageCount        int         `json:"page_count"`
	Language         string      `json:"language,omitempty"`
	Provider         string      `json:"provider"`
}
