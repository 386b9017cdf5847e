package core

import "time"

// TokenResult is the outcome of a token issuance call.
type TokenResult struct {
	TokenString string
	TokenType   string
	Class       string
	Service     string
	ExpiresAt   time.Time
}

// Subject is the identity a token is minted for.
type Subject struct {
	ID   string
	Name string
}
