package observability

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lucifergaming/savagetech/internal/sdk"
)

const redacted = "[REDACTED]"

// Query parameters that never reach the trace verbatim.
var sensitiveParams = map[string]bool{
	"jwt":           true,
	"pubsub":        true,
	"token":         true,
	"access_token":  true,
	"vendor_secret": true,
	"secret":        true,
	"api_key":       true,
	"password":      true,
}

// TraceWriter prints one line per event, prefixed with the seconds elapsed
// since it was created (or last reset):
//
//	[0.234s]   -> POST https://func.rc.savagebet.gg/accesstokens (AccessToken)
//	[0.279s]   <- 200 (45ms)
type TraceWriter struct {
	mu        sync.Mutex
	writer    io.Writer
	startTime time.Time
}

// NewTraceWriter traces to stderr.
func NewTraceWriter() *TraceWriter {
	return NewTraceWriterTo(os.Stderr)
}

func NewTraceWriterTo(w io.Writer) *TraceWriter {
	return &TraceWriter{writer: w, startTime: time.Now()}
}

func (t *TraceWriter) line(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.writer, "[%.3fs] %s\n", time.Since(t.startTime).Seconds(), fmt.Sprintf(format, args...))
}

func (t *TraceWriter) WriteRequestStart(info sdk.RequestInfo) {
	t.line("  -> %s %s (%s)", info.Method, scrubURL(info.URL), info.Operation)
}

func (t *TraceWriter) WriteRequestEnd(_ sdk.RequestInfo, result sdk.RequestResult) {
	if result.Err != nil {
		t.line("  <- ERROR: %v", result.Err)
		return
	}
	t.line("  <- %d (%dms)", result.StatusCode, result.Duration.Milliseconds())
}

func (t *TraceWriter) WriteRefresh(userID string, err error) {
	if err != nil {
		t.line("Token refresh for %s failed: %v", userID, err)
		return
	}
	t.line("Token refreshed for %s", userID)
}

func (t *TraceWriter) WriteScheduled(userID string, at time.Time) {
	t.line("Next refresh for %s at %s", userID, at.Format(time.RFC3339))
}

// Reset restarts the elapsed clock.
func (t *TraceWriter) Reset() {
	t.mu.Lock()
	t.startTime = time.Now()
	t.mu.Unlock()
}

// scrubURL masks sensitive query values. URLs without any are returned
// untouched so parameter order survives.
func scrubURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "[unparseable URL]"
	}
	q := u.Query()
	hit := false
	for key := range q {
		if sensitiveParams[strings.ToLower(key)] {
			q.Set(key, redacted)
			hit = true
		}
	}
	if !hit {
		return rawURL
	}
	u.RawQuery = q.Encode()
	return u.String()
}
