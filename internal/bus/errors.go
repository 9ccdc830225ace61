package bus

import "errors"

// ErrPublishFailed wraps a transport-level or non-2xx failure publishing an
// event through [HTTPOutbox].
var ErrPublishFailed = errors.New("failed to publish event")

// ErrSubscribeFailed wraps a transport-level or non-2xx failure polling
// events through [HTTPSubscriber].
var ErrSubscribeFailed = errors.New("failed to poll events")
