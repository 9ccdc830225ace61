// Package identityprovider is a resty-based client to the external
// identity provider HTTP API the Lifecycle Orchestrator consults,
// best-effort, during admin-reset-claim.
package identityprovider

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// requestTimeout bounds the identity provider call; failure here is
// non-fatal, so a short timeout keeps a slow provider from stalling the
// admin-reset-claim saga.
const requestTimeout = 5 * time.Second

// Client calls the external identity provider's transfer-of-identity
// endpoint. Failures are always non-fatal to the caller's saga; see
// [Client.TransferIdentity].
type Client struct {
	resty *resty.Client
}

// New constructs a Client against baseURL (IDENTITY_PROVIDER_API_BASE).
func New(baseURL string) (*Client, error) {
	normalized, err := normalizeBaseURL(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid identity provider base url: %w", err)
	}

	return &Client{
		resty: resty.New().
			SetBaseURL(normalized).
			SetTimeout(requestTimeout),
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

// transferRequest is the body of the identity-transfer call.
type transferRequest struct {
	OldPubKey string `json:"oldPubKey"`
	NewPubKey string `json:"newPubKey"`
}

// transferResponse is the decoded response body.
type transferResponse struct {
	Name string `json:"name"`
}

// TransferIdentity notifies the identity provider that a physical card's
// underlying identity has moved from oldPubKey to newPubKey, as part of
// this admin-reset-claim's best-effort third saga step. Returns the
// provider's reported display name on success.
func (c *Client) TransferIdentity(ctx context.Context, oldPubKey, newPubKey string) (string, error) {
	var out transferResponse

	resp, err := c.resty.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(transferRequest{OldPubKey: oldPubKey, NewPubKey: newPubKey}).
		SetResult(&out).
		Post("/identity/transfer")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	if err := mapHTTPError(resp); err != nil {
		return "", err
	}

	return out.Name, nil
}
