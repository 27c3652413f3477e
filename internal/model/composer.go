package model

import "time"

// ComposerConfig holds the values stamped on every outbound turn.
// Populated from config at startup, shared read-only across conversations.
type ComposerConfig struct {
	UserID       string         // e.g., "user_02"
	OrderPrefix  string         // e.g., "A030-"
	Currency     string         // e.g., "USDC"
	Chain        string         // e.g., "ethereum"
	Timezone     string         // IANA name, e.g., "UTC"
	Location     *time.Location // Resolved Timezone; nil means load on demand
	ExpiryWindow time.Duration  // Payment expiry relative to the first turn
	SignInfo     SignInfo
}
