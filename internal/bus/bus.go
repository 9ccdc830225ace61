// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package bus declares this module's view of the signed-event transport:
// an opaque outbox that accepts an event and later delivers an
// at-least-once notification, and a subscription source the Inbound
// Subscription Loop reads from. Neither the relay pool, its retries,
// nor its reconnection logic are implemented here — those live entirely
// outside this module's scope.
package bus

import (
	"context"

	"github.com/lawallet/card-server/internal/nostr"
)

// Outbox publishes signed events onto the event bus. The outbox is
// shared across callers and safe for concurrent publish.
type Outbox interface {
	Publish(ctx context.Context, event *nostr.Event) error
}

// Filter is a subscription filter: kinds, tag matches, and a since
// timestamp.
type Filter struct {
	Kinds []int
	// PTags restricts delivery to events whose "p" tag list includes one of
	// these pubkeys.
	PTags []string
	// TTags restricts delivery to events whose "t" tag list includes one of
	// these topics.
	TTags []string
	Since int64
}

// Subscription delivers events matching a [Filter] until its context is
// canceled or Events is drained and closed.
type Subscription interface {
	Events() <-chan *nostr.Event
	Close()
}

// Subscriber opens long-lived subscriptions against the event bus.
type Subscriber interface {
	Subscribe(ctx context.Context, filter Filter) (Subscription, error)
}
