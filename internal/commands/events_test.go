package commands

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucifergaming/savagetech/internal/output"
	"github.com/lucifergaming/savagetech/internal/sdk"
)

func TestDepositCommand(t *testing.T) {
	vendor := newFakeVendor(t)
	app, out := newCommandApp(t, vendor.srv.URL, true)

	require.NoError(t, runCommand(context.Background(), app, NewDepositCmd(), "alice", "1234.5"))

	calls := vendor.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, sdk.EndpointDepositMade, calls[0].Path)
	assert.Equal(t, "alice", calls[0].Body["userId"])
	assert.Equal(t, 1234.5, calls[0].Body["amount"])
	assert.Equal(t, "usd", calls[0].Body["currency"])

	envs := decodeEnvelopes(t, out.Bytes())
	require.Len(t, envs, 1)
	assert.Equal(t, true, envs[0]["ok"])
	assert.Equal(t, map[string]any{"received": true}, envs[0]["data"])
	assert.Equal(t, "Deposit of 1,234.50 USD recorded for alice", envs[0]["summary"])
}

func TestDepositCommandInvalidAmount(t *testing.T) {
	vendor := newFakeVendor(t)
	app, _ := newCommandApp(t, vendor.srv.URL, true)

	err := runCommand(context.Background(), app, NewDepositCmd(), "alice", "lots")
	outErr := output.AsError(err)
	assert.Equal(t, output.CodeUsage, outErr.Code)
	assert.Contains(t, outErr.Message, "amount must be a number")
	assert.Empty(t, vendor.calls())
}

func TestBetCommand(t *testing.T) {
	vendor := newFakeVendor(t)
	app, out := newCommandApp(t, vendor.srv.URL, true)

	require.NoError(t, runCommand(context.Background(), app, NewBetCmd(), "carol", "25", "1.85"))

	calls := vendor.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, sdk.EndpointBetPlaced, calls[0].Path)
	assert.Equal(t, 25.0, calls[0].Body["amount"])
	assert.Equal(t, 1.85, calls[0].Body["odds"])

	envs := decodeEnvelopes(t, out.Bytes())
	assert.Equal(t, "Bet of 25.00 USD at 1.85 recorded for carol", envs[0]["summary"])
}

func TestBetCommandInvalidOdds(t *testing.T) {
	vendor := newFakeVendor(t)
	app, _ := newCommandApp(t, vendor.srv.URL, true)

	err := runCommand(context.Background(), app, NewBetCmd(), "carol", "25", "evens")
	assert.Contains(t, output.AsError(err).Message, "odds must be a number")
	assert.Empty(t, vendor.calls())
}

func TestBetCommandVendorRejects(t *testing.T) {
	vendor := newFakeVendor(t)
	vendor.fail(http.StatusUnprocessableEntity, "unknown currency")
	app, _ := newCommandApp(t, vendor.srv.URL, true)

	err := runCommand(context.Background(), app, NewBetCmd(), "carol", "25", "2")
	outErr := output.AsError(err)
	assert.Equal(t, output.CodeUpstream, outErr.Code)
	assert.Equal(t, "BetPlaced: unknown currency", outErr.Message)
	assert.Equal(t, http.StatusUnprocessableEntity, outErr.HTTPStatus)
}

func TestCurrenciesSetCommand(t *testing.T) {
	vendor := newFakeVendor(t)
	app, out := newCommandApp(t, vendor.srv.URL, true)
	path := writeFile(t, "currencies.yaml", `currencies:
  usd: {symbol: "$", fullName: US Dollar, shortName: USD, conversionToUSD: 1, roundedTo: 2}
`)

	require.NoError(t, runCommand(context.Background(), app, NewCurrenciesCmd(), "set", "--file", path))

	calls := vendor.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, sdk.EndpointCurrencies, calls[0].Path)
	sent := calls[0].Body["currencies"].(map[string]any)
	usd := sent["usd"].(map[string]any)
	assert.Equal(t, "US Dollar", usd["fullName"])
	assert.Equal(t, float64(2), usd["roundedTo"])

	envs := decodeEnvelopes(t, out.Bytes())
	assert.Equal(t, "Uploaded 1 currencies", envs[0]["summary"])
}

func TestCurrenciesShowDoesNotCallVendor(t *testing.T) {
	vendor := newFakeVendor(t)
	app, out := newCommandApp(t, vendor.srv.URL, false)
	path := writeFile(t, "c.json", `{"eur": {"symbol": "€", "conversionToUSD": 1.08, "roundedTo": 2}}`)

	require.NoError(t, runCommand(context.Background(), app, NewCurrenciesCmd(), "show", "-f", path))
	assert.Empty(t, vendor.calls())

	envs := decodeEnvelopes(t, out.Bytes())
	rows := envs[0]["data"].([]any)
	require.Len(t, rows, 1)
	assert.Equal(t, "eur", rows[0].(map[string]any)["code"])
}

func TestCurrenciesSetRequiresFile(t *testing.T) {
	vendor := newFakeVendor(t)
	app, _ := newCommandApp(t, vendor.srv.URL, true)

	err := runCommand(context.Background(), app, NewCurrenciesCmd(), "set")
	require.Error(t, err)
	assert.Empty(t, vendor.calls())
}
