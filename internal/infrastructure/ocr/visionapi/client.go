package visionapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ridgelinehq/docpipe/internal/core/domain"
	"github.com/ridgelinehq/docpipe/internal/infrastructure/resilience"
)

// Client talks to the external recognition service and implements
// ports.OCRProvider. The form endpoint is a separately licensed
// feature; without its key RecognizeForm reports
// ErrStructuredOCRUnavailable so callers fall back to the general
// path.
type Client struct {
	baseURL    string
	apiKey     string
	formAPIKey string
	httpClient *http.Client
	executor   *resilience.Executor
	limiter    *rate.Limiter
}

func New(baseURL, apiKey, formAPIKey string, executor *resilience.Executor, rps float64, burst int) *Client {
	var limiter *rate.Limiter
	if rps > 0 {
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		formAPIKey: formAPIKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		executor:   executor,
		limiter:    limiter,
	}
}

func (c *Client) RecognizeText(ctx context.Context, data []byte, mimeType string) (*domain.RawRecognition, error) {
	return c.recognize(ctx, "/v1/text:recognize", "recognize_text", c.apiKey, data, mimeType, "visionapi")
}

func (c *Client) RecognizeForm(ctx context.Context, data []byte, mimeType string) (*domain.RawRecognition, error) {
	if c.formAPIKey == "" {
		return nil, domain.ErrStructuredOCRUnavailable
	}
	return c.recognize(ctx, "/v1/forms:analyze", "recognize_form", c.formAPIKey, data, mimeType, "visionapi-form")
}

type recognizeRequest struct {
	Content  string `json:"content"`
	MimeType string `json:"mime_type"`
}

type recognizeResponse struct {
	Text             string      `json:"text"`
	Language         string      `json:"language"`
	Pages            int         `json:"pages"`
	TokenConfidences []float64   `json:"token_confidences"`
	Blocks           []blockJSON `json:"blocks"`
}

type blockJSON struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Type       string  `json:"type"`
	Box        struct {
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	} `json:"box"`
}

func (c *Client) recognize(ctx context.Context, path, operation, key string, data []byte, mimeType, provider string) (*domain.RawRecognition, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	request := recognizeRequest{
		Content:  base64.StdEncoding.EncodeToString(data),
		MimeType: mimeType,
	}

	var response recognizeResponse
	err := c.execute(ctx, operation, func(ctx context.Context) error {
		return c.postJSON(ctx, path, operation, key, request, &response)
	})
	if err != nil {
		return nil, wrapTemporaryIfNeeded(operation, err)
	}

	blocks := make([]domain.TextBlock, 0, len(response.Blocks))
	for _, b := range response.Blocks {
		blocks = append(blocks, domain.TextBlock{
			Text:       b.Text,
			Confidence: b.Confidence,
			Type:       b.Type,
			Box: domain.BoundingBox{
				X:      b.Box.X,
				Y:      b.Box.Y,
				Width:  b.Box.Width,
				Height: b.Box.Height,
			},
		})
	}
	return &domain.RawRecognition{
		Text:             response.Text,
		Blocks:           blocks,
		TokenConfidences: response.TokenConfidences,
		PageCount:        response.Pages,
		Language:         response.Language,
		Provider:         provider,
	}, nil
}

func (c *Client) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	if c.executor == nil {
		return fn(ctx)
	}
	return c.executor.Execute(ctx, "visionapi_"+operation, fn, classifyError)
}

func (c *Client) postJSON(ctx context.Context, path, operation, key string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("visionapi %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		responseBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &HTTPStatusError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(responseBody)),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}
