package bus

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/lawallet/card-server/internal/logger"
	"github.com/lawallet/card-server/internal/nostr"
)

// defaultPollInterval is how often an [HTTPSubscriber] re-queries the
// federation's event feed absent a caller-supplied interval.
const defaultPollInterval = 5 * time.Second

// HTTPSubscriber is the one concrete [Subscriber] this module ships: it
// polls the federation's event-query endpoint over resty, the same client
// library HTTPOutbox and the ledger/identity-provider clients use, rather
// than holding open a websocket to the relay pool. The relay pool itself —
// its connection management and delivery guarantees — remains opaque
// transport outside this module's scope; HTTPSubscriber only owns
// translating a [Filter] into repeated GET requests.
type HTTPSubscriber struct {
	resty        *resty.Client
	pollInterval time.Duration
	logger       *logger.Logger
}

// NewHTTPSubscriber constructs an HTTPSubscriber against baseURL
// (LAWALLET_API_BASE_URL), polling every interval (defaultPollInterval if
// zero).
func NewHTTPSubscriber(baseURL string, interval time.Duration, log *logger.Logger) (*HTTPSubscriber, error) {
	normalized, err := normalizeBaseURL(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid subscriber base url: %w", err)
	}
	if interval <= 0 {
		interval = defaultPollInterval
	}

	return &HTTPSubscriber{
		resty: resty.New().
			SetBaseURL(normalized).
			SetTimeout(10 * time.Second),
		pollInterval: interval,
		logger:       log,
	}, nil
}

// polledSubscription is the [Subscription] an HTTPSubscriber hands back:
// a single background goroutine re-polling on a ticker until Close.
type polledSubscription struct {
	events chan *nostr.Event
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (s *polledSubscription) Events() <-chan *nostr.Event { return s.events }

func (s *polledSubscription) Close() {
	s.cancel()
	s.wg.Wait()
}

// Subscribe implements [Subscriber]. Delivery is at-least-once and
// unordered across poll cycles are best-effort ordered by created_at; the
// Inbound Subscription Loop's watermark advance is what makes replay safe.
func (s *HTTPSubscriber) Subscribe(ctx context.Context, filter Filter) (Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &polledSubscription{
		events: make(chan *nostr.Event, 64),
		cancel: cancel,
	}

	sub.wg.Add(1)
	go func() {
		defer sub.wg.Done()
		defer close(sub.events)
		s.poll(subCtx, filter, sub.events)
	}()

	return sub, nil
}

func (s *HTTPSubscriber) poll(ctx context.Context, filter Filter, out chan<- *nostr.Event) {
	since := filter.Since

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		events, err := s.fetch(ctx, filter, since)
		if err != nil {
			s.logger.Err(err).Str("func", "HTTPSubscriber.poll").Msg("poll failed; retrying next interval")
		}

		for _, event := range events {
			select {
			case out <- event:
				if event.CreatedAt > since {
					since = event.CreatedAt
				}
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *HTTPSubscriber) fetch(ctx context.Context, filter Filter, since int64) ([]*nostr.Event, error) {
	var out []*nostr.Event

	req := s.resty.R().
		SetContext(ctx).
		SetResult(&out).
		SetQueryParam("since", strconv.FormatInt(since, 10))

	if len(filter.Kinds) > 0 {
		req.SetQueryParam("kinds", joinInts(filter.Kinds))
	}
	if len(filter.PTags) > 0 {
		req.SetQueryParam("p", strings.Join(filter.PTags, ","))
	}
	if len(filter.TTags) > 0 {
		req.SetQueryParam("t", strings.Join(filter.TTags, ","))
	}

	resp, err := req.Get("/events")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: http %d", ErrSubscribeFailed, resp.StatusCode())
	}

	return out, nil
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}
