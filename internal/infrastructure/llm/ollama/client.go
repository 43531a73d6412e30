package ollama

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ridgelinehq/docpipe/internal/core/ports"
	"github.com/ridgelinehq/docpipe/internal/infrastructure/resilience"
)

// Client talks to an Ollama-compatible generate endpoint and
// implements ports.CompletionClient.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, model string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

func (c *Client) Complete(ctx context.Context, prompt string, opts ports.CompletionOptions) (string, error) {
	reqBody := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
		"options": map[string]any{
			"temperature": opts.Temperature,
		},
	}
	if opts.MaxTokens > 0 {
		reqBody["options"].(map[string]any)["num_predict"] = opts.MaxTokens
	}
	if opts.JSONMode {
		reqBody["format"] = "json"
	}

	var response struct {
		Response string `json:"response"`
	}
	err := c.execute(ctx, "generate", func(ctx context.Context) error {
		return c.postJSON(ctx, "/api/generate", reqBody, &response, "generate")
	})
	if err != nil {
		return "", wrapTemporaryIfNeeded("llm completion", err)
	}
	return strings.TrimSpace(response.Response), nil
}

func (c *Client) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	if c.executor == nil {
		return fn(ctx)
	}
	return c.executor.Execute(ctx, "ollama_"+operation, fn, classifyOllamaError)
}
