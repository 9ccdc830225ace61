package bus

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/lawallet/card-server/internal/nostr"
)

// HTTPOutbox is the one concrete [Outbox] this module ships: it POSTs a
// signed event to the federation's event-ingestion endpoint over resty.
// The relay pool behind that endpoint — its connection management,
// retries, and reconnection — is opaque transport outside this module's
// scope; HTTPOutbox only owns the single POST.
type HTTPOutbox struct {
	resty *resty.Client
}

// NewHTTPOutbox constructs an HTTPOutbox against baseURL
// (LAWALLET_API_BASE_URL).
func NewHTTPOutbox(baseURL string, timeout time.Duration) (*HTTPOutbox, error) {
	normalized, err := normalizeBaseURL(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid outbox base url: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &HTTPOutbox{
		resty: resty.New().
			SetBaseURL(normalized).
			SetTimeout(timeout),
	}, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty address")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("address must include host and scheme")
	}

	return strings.TrimRight(u.String(), "/"), nil
}

// Publish implements [Outbox]. A non-2xx response or transport failure is
// returned to the caller; Publish makes one attempt and does not retry. An
// emission failure after a successful payment-request consume is logged
// by the caller and does not roll back the already-committed Payment rows.
func (o *HTTPOutbox) Publish(ctx context.Context, event *nostr.Event) error {
	resp, err := o.resty.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(event).
		Post("/events")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		body := strings.TrimSpace(string(resp.Body()))
		if body == "" {
			body = http.StatusText(resp.StatusCode())
		}
		return fmt.Errorf("%w: http %d: %s", ErrPublishFailed, resp.StatusCode(), body)
	}

	return nil
}
