// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package models holds the entities of the card domain and the
// wire-level request/response shapes exchanged over the HTTP surface.
package models

// Design is a card "theme": a named, reusable bundle of display metadata
// applied to a Card at activation time.
type Design struct {
	UUID        string `json:"uuid"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// DesignRef identifies a Design either by its unique Name or by its UUID.
// Exactly one of the two should be set.
type DesignRef struct {
	Name string `json:"name,omitempty"`
	UUID string `json:"uuid,omitempty"`
}
