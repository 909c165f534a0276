package refresh

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lucifergaming/savagetech/internal/sdk"
)

var (
	// ErrRefreshInProgress is returned by Refresh when another refresh has not finished.
	ErrRefreshInProgress = errors.New("token refresh already in progress")

	// ErrExpiresWithinMargin reports a refreshed token that is already inside
	// the refresh margin. The token is kept but no further refresh is scheduled.
	ErrExpiresWithinMargin = errors.New("refreshed token expires within the refresh margin")

	// ErrSessionClosed is returned after Close.
	ErrSessionClosed = errors.New("refresh session closed")
)

// Credentials is what the widget needs after a rotation.
type Credentials struct {
	JWT    string `json:"jwt"`
	Pubsub string `json:"pubsub"`
}

// CredentialsNotifier receives rotated credentials.
type CredentialsNotifier interface {
	NotifyNewCredentials(ctx context.Context, creds Credentials)
}

// NotifierFunc adapts a function to CredentialsNotifier.
type NotifierFunc func(ctx context.Context, creds Credentials)

func (f NotifierFunc) NotifyNewCredentials(ctx context.Context, creds Credentials) {
	f(ctx, creds)
}

// Session keeps one user's widget token fresh.
type Session struct {
	client    sdk.TokenClient
	req       sdk.TokenRequest
	margin    time.Duration
	scheduler *Scheduler
	notifier  CredentialsNotifier
	onError   func(error)
	logger    *slog.Logger

	inflight atomic.Bool

	mu     sync.Mutex
	token  sdk.Token
	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithMargin sets how long before expiry to refresh.
func WithMargin(d time.Duration) SessionOption {
	return func(s *Session) {
		s.margin = d
	}
}

// WithNotifier sets the receiver of rotated credentials.
func WithNotifier(n CredentialsNotifier) SessionOption {
	return func(s *Session) {
		s.notifier = n
	}
}

// WithErrorHandler sets the callback for failed timer-driven refreshes.
func WithErrorHandler(fn func(error)) SessionOption {
	return func(s *Session) {
		s.onError = fn
	}
}

// WithScheduler supplies the Scheduler, typically one with an injected clock.
func WithScheduler(sched *Scheduler) SessionOption {
	return func(s *Session) {
		if sched != nil {
			s.scheduler = sched
		}
	}
}

// WithSessionLogger sets the session logger.
func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSession creates a Session for req. Nothing happens until Start.
func NewSession(client sdk.TokenClient, req sdk.TokenRequest, opts ...SessionOption) *Session {
	s := &Session{
		client: client,
		req:    req,
		margin: DefaultMargin,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.scheduler == nil {
		s.scheduler = NewScheduler(WithLogger(s.logger))
	}
	return s
}

// Start fetches the initial token and arms the refresh timer.
//
// ctx bounds the initial fetch only. Later refreshes run under a context
// detached from ctx's cancellation and ended by Close.
func (s *Session) Start(ctx context.Context) (sdk.Token, error) {
	if s.req.UserID == "" {
		return sdk.Token{}, sdk.ErrMissingUserID
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return sdk.Token{}, ErrSessionClosed
	}
	if s.cancel == nil {
		s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	}
	s.mu.Unlock()

	tok, err := s.client.FetchInitial(ctx, s.req)
	if err != nil {
		s.scheduler.Cancel()
		return sdk.Token{}, err
	}

	s.mu.Lock()
	s.token = tok
	s.mu.Unlock()

	res := s.scheduler.Arm(tok, s.margin, s.fire)
	s.logger.Debug("refresh session started", "user", s.req.UserID, "arm", res.String())

	current, _ := s.Token()
	return current, nil
}

// Refresh fetches a replacement token now, outside the timer. Errors are
// returned to the caller rather than sent to the error handler.
func (s *Session) Refresh(ctx context.Context) error {
	return s.refresh(ctx)
}

// Token returns the latest good token.
func (s *Session) Token() (sdk.Token, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, !s.token.IsZero()
}

// NextRefresh reports when the pending refresh will run.
func (s *Session) NextRefresh() (time.Time, bool) {
	return s.scheduler.NextFire()
}

// Close cancels the pending refresh and any refresh in flight.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	cancel := s.cancel
	s.mu.Unlock()

	s.scheduler.Cancel()
	if cancel != nil {
		cancel()
	}
}

func (s *Session) fire() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	err := s.refresh(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrRefreshInProgress), errors.Is(err, ErrSessionClosed):
		s.logger.Debug("token refresh skipped", "reason", err)
	default:
		s.logger.Warn("token refresh failed", "user", s.req.UserID, "error", err)
		if s.onError != nil {
			s.onError(err)
		}
	}
}

func (s *Session) refresh(ctx context.Context) error {
	if !s.inflight.CompareAndSwap(false, true) {
		return ErrRefreshInProgress
	}
	defer s.inflight.Store(false)

	if s.isClosed() {
		return ErrSessionClosed
	}

	tok, err := s.client.FetchRefresh(ctx, s.req)
	if err != nil {
		// A failed fetch ends the chain, whether a timer or a caller asked.
		s.scheduler.Cancel()
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.token = tok
	s.mu.Unlock()

	// A token already inside the margin fires straight back into fire, which
	// sees this refresh in flight and stops there.
	res := s.scheduler.Arm(tok, s.margin, s.fire)

	if s.notifier != nil {
		s.notifier.NotifyNewCredentials(ctx, Credentials{JWT: tok.JWT, Pubsub: tok.Pubsub})
	}

	if res == ArmFiredImmediately {
		return ErrExpiresWithinMargin
	}
	return nil
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
