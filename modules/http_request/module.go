// Package http_request provides the 'http_request' action for pipelines
// that need to pull data from an HTTP endpoint before generating files.
// Transport-level retries are handled by the retrying client; application
// retries stay with the engine's step retry budget.
package http_request

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/mitchellh/mapstructure"

	"github.com/forgepipe/forgepipe/internal/ctxlog"
	"github.com/forgepipe/forgepipe/internal/invoker"
	"github.com/forgepipe/forgepipe/internal/model"
	"github.com/forgepipe/forgepipe/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the parameters for the http_request action.
type Input struct {
	URL     string            `mapstructure:"url"`
	Method  string            `mapstructure:"method"`
	Body    string            `mapstructure:"body"`
	Headers map[string]string `mapstructure:"headers"`
}

// Run is the handler for the 'http_request' action. Non-2xx responses are
// business failures; only transport problems surface as errors.
func Run(ctx context.Context, ictx invoker.Context, params map[string]any) (*model.ActionResult, error) {
	var input Input
	if err := mapstructure.Decode(params, &input); err != nil {
		return nil, fmt.Errorf("decoding http_request parameters: %w", err)
	}
	if input.URL == "" {
		return &model.ActionResult{Success: false, Message: "http_request requires a 'url' parameter"}, nil
	}
	if input.Method == "" {
		input.Method = "GET"
	}

	logger := ctxlog.FromContext(ctx)
	logger.Info("Making HTTP request.", "method", input.Method, "url", input.URL)

	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = 2

	var body io.Reader
	if input.Body != "" {
		body = strings.NewReader(input.Body)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, input.Method, input.URL, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	for k, v := range input.Headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	logger.Info("Received HTTP response.", "status", resp.Status)

	res := &model.ActionResult{
		Success: resp.StatusCode >= 200 && resp.StatusCode < 300,
		Metadata: map[string]any{
			"status_code": resp.StatusCode,
			"body":        string(respBody),
		},
	}
	if !res.Success {
		res.Message = fmt.Sprintf("unexpected status %s from %s", resp.Status, input.URL)
	}
	return res, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAction("http_request", Run)
}
