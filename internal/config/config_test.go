package config

import (
	"testing"
	"time"
)

func TestLoadAppliesPipelineDefaults(t *testing.T) {
	t.Setenv("TAX_YEAR", "")
	t.Setenv("BATCH_GROUP_SIZE", "")
	t.Setenv("STAGE_TIMEOUT_SECONDS", "")
	t.Setenv("NATS_SUBJECT", "")

	cfg := Load()
	if cfg.TaxYear != 2025 {
		t.Fatalf("expected default tax year 2025, got %d", cfg.TaxYear)
	}
	if cfg.BatchGroupSize != 3 {
		t.Fatalf("expected default batch group size 3, got %d", cfg.BatchGroupSize)
	}
	if cfg.StageTimeout != 120*time.Second {
		t.Fatalf("expected default stage timeout 120s, got %v", cfg.StageTimeout)
	}
	if cfg.NATSSubject != "documents.intake" {
		t.Fatalf("expected default subject documents.intake, got %q", cfg.NATSSubject)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("BATCH_GROUP_SIZE", "5")
	t.Setenv("OCR_RATE_RPS", "2.5")
	t.Setenv("API_RATE_LIMIT_RPS", "50")
	t.Setenv("MAX_UPLOAD_BYTES", "1048576")

	cfg := Load()
	if cfg.BatchGroupSize != 5 {
		t.Fatalf("expected batch group size 5, got %d", cfg.BatchGroupSize)
	}
	if cfg.OCRRateRPS != 2.5 {
		t.Fatalf("expected ocr rate 2.5, got %v", cfg.OCRRateRPS)
	}
	if cfg.APIRateLimitRPS != 50 {
		t.Fatalf("expected api rate 50, got %v", cfg.APIRateLimitRPS)
	}
	if cfg.MaxUploadBytes != 1048576 {
		t.Fatalf("expected max upload 1048576, got %d", cfg.MaxUploadBytes)
	}
}

func TestLoadFallsBackOnMalformedNumbers(t *testing.T) {
	t.Setenv("BATCH_GROUP_SIZE", "many")
	t.Setenv("OCR_RATE_RPS", "fast")

	cfg := Load()
	if cfg.BatchGroupSize != 3 {
		t.Fatalf("malformed int must fall back to default, got %d", cfg.BatchGroupSize)
	}
	if cfg.OCRRateRPS != 5 {
		t.Fatalf("malformed float must fall back to default, got %v", cfg.OCRRateRPS)
	}
}
