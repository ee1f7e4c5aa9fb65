package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/memoir/internal/domain"
)

// transportError wraps a send/read failure. Cancellation of the request
// context is reported as such so callers can tell it from a network fault.
func transportError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrTransport, op, ctxErr)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrTransport, op, err)
}

// parseAPIError maps go-openai errors onto the domain taxonomy:
// HTTP/API failures become ErrTransport, undecodable bodies become ErrParse.
func parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return fmt.Errorf("%w: chat completion status %d: %s",
			domain.ErrTransport, reqErr.HTTPStatusCode, detail)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: chat completion status %d: %s",
			domain.ErrTransport, apiErr.HTTPStatusCode, apiErr.Message)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return fmt.Errorf("%w: decode completion response: %w", domain.ErrParse, err)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: chat completion: %w", domain.ErrTransport, err)
	}

	return fmt.Errorf("%w: chat completion request failed: %w", domain.ErrTransport, err)
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
