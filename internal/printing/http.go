package printing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/issuance-engine/internal/domain"
)

const defaultRenderTimeout = 15 * time.Second

// HTTPRenderer submits render requests to an HTTP rendering service.
type HTTPRenderer struct {
	client   *resty.Client
	endpoint string
}

func NewHTTPRenderer(endpoint string) (*HTTPRenderer, error) {
	client := resty.New()
	client.SetTimeout(defaultRenderTimeout)
	client.SetRetryCount(0)

	return NewHTTPRendererWithClient(endpoint, client)
}

func NewHTTPRendererWithClient(endpoint string, client *resty.Client) (*HTTPRenderer, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("renderer endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid renderer endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultRenderTimeout)
	}
	client.SetRetryCount(0)

	return &HTTPRenderer{
		client:   client,
		endpoint: trimmedEndpoint,
	}, nil
}

func (r *HTTPRenderer) Render(ctx context.Context, request RenderRequest) (*RenderResponse, error) {
	if r == nil || r.client == nil {
		return nil, fmt.Errorf("renderer is not initialized")
	}
	if !request.Kind.IsValid() {
		return nil, fmt.Errorf("%w: invalid document kind %q", domain.ErrValidation, request.Kind)
	}
	if strings.TrimSpace(request.ApplicationNo) == "" {
		return nil, fmt.Errorf("%w: application number is required", domain.ErrValidation)
	}

	response, err := r.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(request).
		Post(r.endpoint)
	if err != nil {
		return nil, &RenderError{
			Message:   "renderer request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return nil, &RenderError{
			Message:   "renderer returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &RenderResponse{
			StatusCode: statusCode,
			Location:   renderLocation(response),
			RequestID:  renderRequestID(response),
		}, nil
	}

	return nil, &RenderError{
		StatusCode: statusCode,
		Message:    renderErrorMessage(statusCode, responseBody),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func renderErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("renderer returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}

func renderLocation(response *resty.Response) string {
	if response == nil {
		return ""
	}
	return strings.TrimSpace(response.Header().Get("Location"))
}

func renderRequestID(response *resty.Response) string {
	if response == nil {
		return ""
	}

	for _, key := range []string{"X-Request-ID", "X-Request-Id", "X-Correlation-ID", "X-Correlation-Id"} {
		if value := strings.TrimSpace(response.Header().Get(key)); value != "" {
			return value
		}
	}

	return ""
}
