package models

import "time"

// PaymentStatus is the terminal state of a confirmed deduction.
type PaymentStatus string

const (
	PaymentStatusConfirmed PaymentStatus = "CONFIRMED"
)

// Payment is a confirmed deduction against a Limit, recorded the moment a
// PaymentRequest is consumed.
type Payment struct {
	UUID              string
	CardUUID          string
	Token             string
	Amount            int64
	Status            PaymentStatus
	PaymentRequestUUID string
	CreatedAt         time.Time
}

// PaymentRequest is a single-use scan token ("k1" once short-UUID encoded).
// Response is the pre-rendered scan reply, minus its k1 field, computed at
// issue time and replayed verbatim at pay time.
type PaymentRequest struct {
	UUID      string
	CardUUID  string
	Response  []byte
	CreatedAt time.Time

	// Consumed reports whether any Payment already references this
	// request's UUID. Populated by the store on read; never persisted
	// directly.
	Consumed bool
}

// ResetToken is a transient admin-issued reset nonce bound to exactly one
// holder at a time.
type ResetToken struct {
	HolderPubKey string
	Token        string
	CreatedAt    time.Time
}
