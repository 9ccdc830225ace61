package ledger

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
)

var (
	// ErrRequestFailed wraps a transport-level failure reaching the ledger
	// service.
	ErrRequestFailed = errors.New("ledger request failed")
	// ErrUnexpectedStatus wraps a non-2xx HTTP response from the ledger
	// service.
	ErrUnexpectedStatus = errors.New("ledger returned an unexpected status")
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
