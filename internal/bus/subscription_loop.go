package bus

import (
	"context"
	"sync"
	"time"

	"github.com/lawallet/card-server/internal/logger"
	"github.com/lawallet/card-server/internal/nostr"
)

// replayTolerance absorbs clock skew and out-of-order delivery: twice the
// max event age the signed-event preflight accepts.
const replayTolerance = 2 * nostr.MaxEventAgeSeconds

// Handler dispatches one validated inbound event to its topic logic,
// e.g. "card-config-change" events go to the Config Channel's inbound
// apply.
type Handler interface {
	Handle(ctx context.Context, event *nostr.Event) error
}

// SubscriptionLoop is a long-lived consumer of config-change events,
// replaying from a persisted high-watermark across restarts. It wraps a
// cancellable background goroutine behind Start/Stop, driven by the
// subscription's event channel rather than a ticker.
type SubscriptionLoop struct {
	subscriber Subscriber
	handler    Handler
	watermarks Watermarks
	logger     *logger.Logger

	subscriptionName string
	kinds            []int
	moduleP          string
	topic            string

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Watermarks persists the subscription's replay position.
type Watermarks interface {
	Watermark(ctx context.Context, subscription string) (int64, error)
	AdvanceWatermark(ctx context.Context, subscription string, createdAt int64) error
}

// New constructs a SubscriptionLoop for a single (kinds, moduleP, topic)
// filter, idle until Start is called.
func New(subscriber Subscriber, handler Handler, watermarks Watermarks, log *logger.Logger, subscriptionName, moduleP, topic string, kinds []int) *SubscriptionLoop {
	return &SubscriptionLoop{
		subscriber:       subscriber,
		handler:          handler,
		watermarks:       watermarks,
		logger:           log,
		subscriptionName: subscriptionName,
		kinds:            kinds,
		moduleP:          moduleP,
		topic:            topic,
	}
}

// Start launches the background consumer goroutine. Stops any previously
// running loop first; exits when ctx is cancelled or Stop is called.
func (l *SubscriptionLoop) Start(ctx context.Context) {
	l.Stop()

	l.mu.Lock()
	loopCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.wg.Add(1)
	l.mu.Unlock()

	go func() {
		defer l.wg.Done()
		l.run(loopCtx)
	}()
}

// Stop cancels the background goroutine and blocks until it exits. Safe to
// call when the loop is not running.
func (l *SubscriptionLoop) Stop() {
	l.mu.Lock()
	cancel := l.cancel
	l.cancel = nil
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	l.wg.Wait()
}

func (l *SubscriptionLoop) run(ctx context.Context) {
	since, err := l.watermarks.Watermark(ctx, l.subscriptionName)
	if err != nil {
		l.logger.Err(err).Str("func", "SubscriptionLoop.run").Msg("failed to load watermark; starting from zero")
	}
	if since > replayTolerance {
		since -= replayTolerance
	} else {
		since = 0
	}

	sub, err := l.subscriber.Subscribe(ctx, Filter{
		Kinds: l.kinds,
		PTags: []string{l.moduleP},
		TTags: []string{l.topic},
		Since: since,
	})
	if err != nil {
		l.logger.Err(err).Str("func", "SubscriptionLoop.run").Msg("failed to open subscription")
		return
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			l.handleOne(ctx, event)
		}
	}
}

// handleOne dispatches a single delivery and advances the watermark.
// Handlers MUST be idempotent: a crash between Handle succeeding and
// the watermark advancing replays the same event on restart.
func (l *SubscriptionLoop) handleOne(ctx context.Context, event *nostr.Event) {
	log := logger.FromContext(ctx)

	if err := l.handler.Handle(ctx, event); err != nil {
		log.Err(err).Str("func", "SubscriptionLoop.handleOne").Str("event_id", event.ID).Msg("handler failed")
		return
	}

	if err := l.watermarks.AdvanceWatermark(ctx, l.subscriptionName, event.CreatedAt); err != nil {
		log.Err(err).Str("func", "SubscriptionLoop.handleOne").Str("event_id", event.ID).Msg("failed to advance watermark")
	}
}

// now is overridable in tests.
var now = func() int64 { return time.Now().Unix() }
