// Package widget builds the browser-side initialization for the vendor widget.
package widget

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lucifergaming/savagetech/internal/sdk"
)

// Credentials are handed to window.Savage.init.
type Credentials struct {
	VendorID string `json:"vendorId"`
	JWT      string `json:"jwt"`
	Pubsub   string `json:"pubsub"`
}

type initConfig struct {
	Credentials Credentials    `json:"credentials"`
	Config      map[string]any `json:"config,omitempty"`
}

// InitCode renders the JavaScript statement that boots the widget.
// The config key is omitted when cfg is empty.
func InitCode(vendorID string, tok sdk.Token, cfg map[string]any) (string, error) {
	payload, err := json.Marshal(initConfig{
		Credentials: Credentials{VendorID: vendorID, JWT: tok.JWT, Pubsub: tok.Pubsub},
		Config:      cfg,
	})
	if err != nil {
		return "", fmt.Errorf("encoding widget config: %w", err)
	}
	return "window.Savage.init(" + string(payload) + ");", nil
}

// InitResult is a rendered init snippet plus the token it embeds.
type InitResult struct {
	InitCode string    `json:"init_code"`
	Token    sdk.Token `json:"token"`
}

// Generate fetches a token for userID and renders the init snippet.
func Generate(ctx context.Context, client sdk.TokenClient, vendorID, userID string, cfg map[string]any, currency string) (*InitResult, error) {
	if userID == "" {
		return nil, sdk.ErrMissingUserID
	}
	tok, err := client.FetchInitial(ctx, sdk.TokenRequest{UserID: userID, Currency: currency})
	if err != nil {
		return nil, err
	}
	code, err := InitCode(vendorID, tok, cfg)
	if err != nil {
		return nil, err
	}
	return &InitResult{InitCode: code, Token: tok}, nil
}

// TokenCredentials is the credentials block of init and refresh responses.
type TokenCredentials struct {
	JWT    string `json:"jwt"`
	Pubsub string `json:"pubsub"`
}

// InitPayload is returned to the browser when a widget is first mounted.
type InitPayload struct {
	InitCode             string           `json:"init_code"`
	RefreshBeforeMinutes float64          `json:"refresh_before_minutes"`
	JWT                  string           `json:"jwt"`
	Credentials          TokenCredentials `json:"credentials"`
}

// NewInitPayload builds an InitPayload from a Generate result.
func NewInitPayload(res *InitResult, refreshBeforeMinutes float64) InitPayload {
	return InitPayload{
		InitCode:             res.InitCode,
		RefreshBeforeMinutes: refreshBeforeMinutes,
		JWT:                  res.Token.JWT,
		Credentials:          TokenCredentials{JWT: res.Token.JWT, Pubsub: res.Token.Pubsub},
	}
}

// RefreshPayload is returned to the browser when its token nears expiry.
type RefreshPayload struct {
	JWT                  string           `json:"jwt"`
	Credentials          TokenCredentials `json:"credentials"`
	RefreshBeforeMinutes float64          `json:"refresh_before_minutes"`
}

// NewRefreshPayload builds a RefreshPayload for tok.
func NewRefreshPayload(tok sdk.Token, refreshBeforeMinutes float64) RefreshPayload {
	return RefreshPayload{
		JWT:                  tok.JWT,
		Credentials:          TokenCredentials{JWT: tok.JWT, Pubsub: tok.Pubsub},
		RefreshBeforeMinutes: refreshBeforeMinutes,
	}
}
