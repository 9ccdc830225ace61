package models

// Limit is a per-card spending rule: at most Amount (in Token's base unit)
// may be spent within any trailing window of Delta seconds.
type Limit struct {
	UUID        string
	CardUUID    string
	Name        string
	Description string
	Token       string
	// Amount is a non-negative integer in the token's base unit
	// (millisatoshi for BTC). Represented as int64: this domain
	// (Lightning millisatoshi amounts) fits comfortably under 2^63.
	Amount int64
	// Delta is the sliding window width, in seconds.
	Delta int64
}
