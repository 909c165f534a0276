// Package sdk provides the SavageTech vendor API client.
package sdk

import (
	"context"
)

// Token is the access token pair the vendor widget consumes.
// A new Token always replaces the previous one in full.
type Token struct {
	JWT    string `json:"jwt"`
	Pubsub string `json:"pubsub"`
}

// IsZero reports whether the token carries no JWT.
func (t Token) IsZero() bool {
	return t.JWT == ""
}

// TokenRequest identifies whose token to fetch.
type TokenRequest struct {
	UserID   string
	Currency string
}

// TokenClient fetches widget access tokens from the vendor.
// Both calls may block on network I/O and are safe to call from multiple goroutines.
type TokenClient interface {
	// FetchInitial obtains the first token for a widget session.
	FetchInitial(ctx context.Context, req TokenRequest) (Token, error)

	// FetchRefresh obtains a replacement token ahead of expiry.
	FetchRefresh(ctx context.Context, req TokenRequest) (Token, error)
}

// Verify Client implements TokenClient at compile time.
var _ TokenClient = (*Client)(nil)

// FetchInitial implements TokenClient.
func (c *Client) FetchInitial(ctx context.Context, req TokenRequest) (Token, error) {
	return c.AccessToken(ctx, req.UserID, req.Currency)
}

// FetchRefresh implements TokenClient. The vendor issues refreshed tokens from
// the same endpoint as initial ones.
func (c *Client) FetchRefresh(ctx context.Context, req TokenRequest) (Token, error) {
	return c.AccessToken(ctx, req.UserID, req.Currency)
}
