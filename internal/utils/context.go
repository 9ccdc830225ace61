// Package utils provides general-purpose helper utilities used across
// different parts of the application. Includes tools for working with
// context, type-safe keys, HTTP response writing, UUID/suuid codecs, and
// other common operations.
package utils

import (
	"context"
)

// contextKey is a private type for context keys.
// Using a dedicated type instead of a plain string prevents key collisions
// with other packages that may use string-based keys in the context.
type contextKey string

// String returns the string representation of the context key.
// Implements the fmt.Stringer interface.
func (c contextKey) String() string {
	return string(c)
}

// HolderPubKeyCtxKey is the key used to store the verified holder pubkey
// extracted from an inbound signed event's preflight check.
//
// Example of writing a value to the context:
//
//	ctx := context.WithValue(ctx, utils.HolderPubKeyCtxKey, "a1b2...")
var HolderPubKeyCtxKey = contextKey("holderPubKey")

// GetHolderPubKeyFromContext retrieves the holder pubkey from the context.
//
// Returns the pubkey and an ok flag:
//   - ok == true  — value is found and has the correct string type
//   - ok == false — value is missing or has an unexpected type
func GetHolderPubKeyFromContext(ctx context.Context) (string, bool) {
	pubKey, ok := ctx.Value(HolderPubKeyCtxKey).(string)
	return pubKey, ok
}
