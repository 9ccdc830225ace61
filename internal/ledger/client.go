// Package ledger is a resty-based client to the federation's ledger
// service, queried by the Withdrawal Dispatcher for the balance check it
// requires before authorizing a withdraw. The ledger's own
// event-bus-backed implementation is out of scope for this client; it
// only speaks the federation's read-side HTTP query over
// LAWALLET_API_BASE_URL, the same base URL the scan/pay callbacks are
// built from.
package ledger

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const requestTimeout = 5 * time.Second

// Client queries a holder's confirmed balance per token.
type Client struct {
	resty *resty.Client
}

// New constructs a Client against baseURL (LAWALLET_API_BASE_URL).
func New(baseURL string) (*Client, error) {
	normalized, err := normalizeBaseURL(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ledger base url: %w", err)
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

type balanceResponse struct {
	Balance int64 `json:"balance"`
}

// Balance returns holderPubKey's current confirmed balance of token, in
// the token's base unit (millisatoshi for BTC).
func (c *Client) Balance(ctx context.Context, holderPubKey, token string) (int64, error) {
	var out balanceResponse

	resp, err := c.resty.R().
		SetContext(ctx).
		SetResult(&out).
		SetQueryParam("token", token).
		Get("/balance/" + holderPubKey)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	if err := mapHTTPError(resp); err != nil {
		return 0, err
	}

	return out.Balance, nil
}
