package utils

import "github.com/google/uuid"

// UUIDGenerator issues v4 UUIDs for every entity the Registry mints an
// identifier for (Card, Limit, PaymentRequest, Payment) and for the
// Lifecycle Orchestrator's reset-token nonces.
type UUIDGenerator struct {
}

func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

func (g *UUIDGenerator) Generate() string {
	return uuid.NewString()
}
