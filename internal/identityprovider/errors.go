package identityprovider

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
)

var (
	// ErrRequestFailed wraps a transport-level failure (timeout, DNS,
	// connection refused) reaching the identity provider.
	ErrRequestFailed = errors.New("identity provider request failed")
	// ErrUnexpectedStatus wraps a non-2xx HTTP response from the identity
	// provider.
	ErrUnexpectedStatus = errors.New("identity provider returned an unexpected status")
)

func mapHTTPError(resp *resty.Response) error {
	if resp.StatusCode() >= http.StatusOK && resp.StatusCode() < http.StatusMultipleChoices {
		return nil
	}

	body := strings.TrimSpace(string(resp.Body()))
	if body == "" {
		body = http.StatusText(resp.StatusCode())
	}

	return fmt.Errorf("%w: http %d: %s", ErrUnexpectedStatus, resp.StatusCode(), body)
}
