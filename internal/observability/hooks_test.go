package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/lucifergaming/savagetech/internal/sdk"
)

var (
	testInfo   = sdk.RequestInfo{Operation: "AccessToken", Method: "POST", URL: "https://func.rc.savagebet.gg/accesstokens"}
	testResult = sdk.RequestResult{StatusCode: 200, Duration: 45 * time.Millisecond}
)

func TestCLIHooks_SetLevel(t *testing.T) {
	h := NewCLIHooks(0, nil, nil)
	assert.Equal(t, 0, h.Level())

	h.SetLevel(2)
	assert.Equal(t, 2, h.Level())
}

func TestCLIHooks_Level0_Silent(t *testing.T) {
	var buf bytes.Buffer
	collector := NewSessionCollector()
	h := NewCLIHooks(0, collector, NewTraceWriterTo(&buf))

	ctx := h.OnRequestStart(context.Background(), testInfo)
	h.OnRequestEnd(ctx, testInfo, testResult)
	h.OnRefresh("user-1", nil)
	h.OnScheduled("user-1", time.Now())

	assert.Equal(t, 0, buf.Len(), "expected no output at level 0")

	summary := collector.Summary()
	assert.Equal(t, 1, summary.TotalRequests)
	assert.Equal(t, 1, summary.Refreshes)
}

func TestCLIHooks_Level1_RefreshesOnly(t *testing.T) {
	var buf bytes.Buffer
	h := NewCLIHooks(1, nil, NewTraceWriterTo(&buf))

	ctx := h.OnRequestStart(context.Background(), testInfo)
	h.OnRequestEnd(ctx, testInfo, testResult)
	assert.Equal(t, 0, buf.Len(), "requests are not traced at level 1")

	h.OnRefresh("user-1", nil)
	assert.Contains(t, buf.String(), "Token refreshed for user-1")
}

func TestCLIHooks_Level2_Requests(t *testing.T) {
	var buf bytes.Buffer
	h := NewCLIHooks(2, nil, NewTraceWriterTo(&buf))

	ctx := h.OnRequestStart(context.Background(), testInfo)
	h.OnRequestEnd(ctx, testInfo, testResult)

	out := buf.String()
	assert.Contains(t, out, "-> POST https://func.rc.savagebet.gg/accesstokens (AccessToken)")
	assert.Contains(t, out, "<- 200 (45ms)")
}

func TestCLIHooks_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	h := NewCLIHooks(0, nil, nil)
	h.SetMetrics(m)

	h.OnRequestEnd(context.Background(), testInfo, testResult)
	h.OnRequestEnd(context.Background(), testInfo, sdk.RequestResult{Err: errors.New("dial tcp: refused")})
	h.OnRefresh("u", errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.VendorRequests.WithLabelValues("AccessToken", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VendorRequests.WithLabelValues("AccessToken", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokenRefreshes.WithLabelValues("failure")))
}
