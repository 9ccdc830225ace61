// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import "errors"

// ErrMissingActionTag is returned when POST /card's request event carries
// no "t" tag to dispatch Activate vs Transfer by.
var ErrMissingActionTag = errors.New("request event is missing its \"t\" tag")

// ErrUnknownActionTag is returned when POST /card's request event's "t"
// tag names neither the activation nor the transfer-acceptance topic.
var ErrUnknownActionTag = errors.New("request event names an unsupported \"t\" tag")
