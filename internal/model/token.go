package model

import "time"

// TokenType is the scheme returned with every token pair.
const TokenType = "Bearer"

// TokenCodec signs and verifies access tokens.
type TokenCodec interface {
	Generate(subject string, claims map[string]any, ttl time.Duration) (string, error)
	Validate(token, expectedSubject string) (bool, error)
	ExtractSubject(token string) (string, error)
}

// TokenPair is issued on login and on refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    time.Duration
}
