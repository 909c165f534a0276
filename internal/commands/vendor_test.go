package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/lucifergaming/savagetech/internal/appctx"
	"github.com/lucifergaming/savagetech/internal/config"
	"github.com/lucifergaming/savagetech/internal/sdk"
)

// vendorRequest is one call received by fakeVendor.
type vendorRequest struct {
	Path   string
	Header http.Header
	Body   map[string]any
}

// fakeVendor stands in for the SavageTech vendor API.
type fakeVendor struct {
	t *testing.T

	mu       sync.Mutex
	requests []vendorRequest
	tokenTTL time.Duration
	ttls     []time.Duration
	status   int
	message  string

	srv *httptest.Server
}

func newFakeVendor(t *testing.T) *fakeVendor {
	t.Helper()
	v := &fakeVendor{t: t, tokenTTL: time.Hour}
	v.srv = httptest.NewServer(http.HandlerFunc(v.handle))
	t.Cleanup(v.srv.Close)
	return v
}

func (v *fakeVendor) handle(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	v.mu.Lock()
	v.requests = append(v.requests, vendorRequest{Path: r.URL.Path, Header: r.Header.Clone(), Body: body})
	n := len(v.requests)
	status, message, ttl := v.status, v.message, v.tokenTTL
	if len(v.ttls) > 0 && r.URL.Path == sdk.EndpointAccessTokens {
		ttl, v.ttls = v.ttls[0], v.ttls[1:]
	}
	v.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{"message": message})
		return
	}

	if r.URL.Path == sdk.EndpointAccessTokens {
		_ = json.NewEncoder(w).Encode(sdk.Token{
			JWT:    testJWT(v.t, ttl),
			Pubsub: "pubsub-" + string(rune('0'+n)),
		})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"received": true})
}

func (v *fakeVendor) fail(status int, message string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.status = status
	v.message = message
}

func (v *fakeVendor) setTTL(d time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tokenTTL = d
}

// queueTTLs sets the lifetimes of the next tokens issued, in order. Once the
// queue drains, setTTL's value applies again.
func (v *fakeVendor) queueTTLs(ds ...time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ttls = append(v.ttls, ds...)
}

func (v *fakeVendor) calls() []vendorRequest {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]vendorRequest(nil), v.requests...)
}

func testJWT(t *testing.T, ttl time.Duration) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "player",
		"exp": time.Now().Add(ttl).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

// lockedBuffer is a bytes.Buffer safe to read while a command writes.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *lockedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

// newCommandApp returns a JSON-mode app pointed at apiURL. Credentials come
// from the environment layer unless withCreds is false.
func newCommandApp(t *testing.T, apiURL string, withCreds bool) (*appctx.App, *lockedBuffer) {
	t.Helper()
	t.Setenv("SAVAGETECH_NO_KEYRING", "1")
	t.Setenv("SAVAGETECH_DEBUG", "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	cfg := config.Default()
	cfg.APIURL = apiURL
	if withCreds {
		cfg.VendorID = "vendor-1"
		cfg.VendorSecret = "s3cret"
	}

	app := appctx.NewApp(cfg)
	out := &lockedBuffer{}
	app.Stdout = out
	app.Stderr = io.Discard
	app.Flags.JSON = true
	app.ApplyFlags()
	return app, out
}

func runCommand(ctx context.Context, app *appctx.App, cmd *cobra.Command, args ...string) error {
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return cmd.ExecuteContext(appctx.WithApp(ctx, app))
}

// decodeEnvelopes splits a stream of JSON documents.
func decodeEnvelopes(t *testing.T, data []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var m map[string]any
		require.NoError(t, dec.Decode(&m))
		out = append(out, m)
	}
	return out
}
