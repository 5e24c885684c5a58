package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/collabflow/collabflow-cli/db"
	"github.com/rs/zerolog/log"
)

var (
	// ErrSessionExpired is reported to the redirector when the session has to be dropped.
	ErrSessionExpired = errors.New("session expired, please log in again")
	// ErrNoRefresher is returned when an auth failure happens before a refresher was attached.
	ErrNoRefresher = errors.New("no token refresher configured")
)

// DefaultRefreshTimeout bounds a single refresh call, and with it how long queued requests wait.
const DefaultRefreshTimeout = 15 * time.Second

// State of the refresh state machine.
type State int

const (
	StateIdle State = iota
	StateRefreshing
)

func (s State) String() string {
	if s == StateRefreshing {
		return "REFRESHING"
	}
	return "IDLE"
}

type refreshResult struct {
	token string
	err   error
}

// waiter is a request suspended until the in-flight refresh settles.
// done is buffered so settling never blocks on a caller that gave up.
type waiter struct {
	done chan refreshResult
}

// Session owns the access token, the refresh credential and the refresh
// coordination state. At most one refresh runs at a time; requests failing
// with an auth error while it runs are queued and settled in arrival order.
type Session struct {
	storer         TokenStorer
	redirector     LoginRedirector
	refreshTimeout time.Duration

	mu          sync.Mutex
	refresher   TokenRefresher
	loaded      bool
	token       string
	refreshCred string
	username    string
	refreshing  bool
	pending     []*waiter
	refreshes   int
}

// Option configures a Session.
type Option func(*Session)

func WithRefresher(r TokenRefresher) Option {
	return func(s *Session) { s.refresher = r }
}

func WithRedirector(r LoginRedirector) Option {
	return func(s *Session) { s.redirector = r }
}

func WithRefreshTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.refreshTimeout = d
		}
	}
}

// NewSession creates a session backed by storer. A nil storer keeps the session in memory.
func NewSession(storer TokenStorer, opts ...Option) *Session {
	if storer == nil {
		storer = NewMemoryStore()
	}
	s := &Session{
		storer:         storer,
		refreshTimeout: DefaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetRefresher attaches the refresher if none was configured yet.
// The HTTP client registers itself here since it issues the refresh call.
func (s *Session) SetRefresher(r TokenRefresher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refresher == nil {
		s.refresher = r
	}
}

// loadLocked reads the stored session once. Callers hold s.mu.
func (s *Session) loadLocked() {
	if s.loaded {
		return
	}
	s.loaded = true
	rec, err := s.storer.GetTokenRecord()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load stored session")
		return
	}
	if rec != nil {
		s.token = rec.AccessToken
		s.refreshCred = rec.RefreshToken
		s.username = rec.Username
	}
}

// persistLocked writes the current session through the storer. Callers hold s.mu.
func (s *Session) persistLocked() {
	err := s.storer.UpsertTokenRecord(&db.Token{
		AccessToken:  s.token,
		RefreshToken: s.refreshCred,
		Username:     s.username,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to persist session")
	}
}

// AccessToken returns the current access token, or "" when there is none.
func (s *Session) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked()
	return s.token
}

// RefreshCredential returns the refresh cookie value issued by the server.
func (s *Session) RefreshCredential() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked()
	return s.refreshCred
}

// Username returns the name the session was opened with.
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked()
	return s.username
}

// SetRefreshCredential stores a rotated refresh cookie.
func (s *Session) SetRefreshCredential(value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked()
	if value == s.refreshCred {
		return
	}
	s.refreshCred = value
	s.persistLocked()
}

// SetTokens opens a session after a successful login.
// An empty refresh credential keeps the one already stored.
func (s *Session) SetTokens(accessToken, refreshCredential, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked()
	s.token = accessToken
	if refreshCredential != "" {
		s.refreshCred = refreshCredential
	}
	if username != "" {
		s.username = username
	}
	s.persistLocked()
}

// AttachToken sets the bearer credential on req when a token is present.
func (s *Session) AttachToken(req *http.Request) {
	if token := s.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// State reports whether a refresh is in flight.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refreshing {
		return StateRefreshing
	}
	return StateIdle
}

// Pending returns the number of requests waiting on the in-flight refresh.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Refreshes returns how many refresh calls this session has issued.
func (s *Session) Refreshes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshes
}

// HandleAuthFailure is called by a request that was rejected with an auth error.
// If no refresh is running, the caller becomes the one issuing it; otherwise it
// waits for the running one. Either way it gets the new token or the refresh error.
// A waiter whose ctx ends first returns ctx.Err() and is skipped on settlement.
func (s *Session) HandleAuthFailure(ctx context.Context) (string, error) {
	s.mu.Lock()
	s.loadLocked()
	if s.refreshing {
		w := &waiter{done: make(chan refreshResult, 1)}
		s.pending = append(s.pending, w)
		queued := len(s.pending)
		s.mu.Unlock()

		log.Debug().Int("queued", queued).Msg("Refresh in flight, waiting for it to settle")
		select {
		case res := <-w.done:
			return res.token, res.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	s.refreshing = true
	s.refreshes++
	refresher := s.refresher
	s.mu.Unlock()

	log.Info().Msg("Access token rejected, refreshing...")
	token, err := s.refresh(ctx, refresher)
	s.onRefreshSettled(token, err)
	if err != nil {
		return "", err
	}
	return token, nil
}

// refresh runs the refresh call detached from the caller's cancellation, so a
// caller giving up does not fail everyone queued behind it. The timeout still bounds it.
func (s *Session) refresh(ctx context.Context, refresher TokenRefresher) (string, error) {
	if refresher == nil {
		return "", ErrNoRefresher
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.refreshTimeout)
	defer cancel()

	token, err := refresher.PerformTokenRefresh(rctx)
	if err != nil {
		return "", fmt.Errorf("token refresh failed: %w", err)
	}
	if token == "" {
		return "", errors.New("token refresh returned an empty access token")
	}
	return token, nil
}

// onRefreshSettled publishes the outcome of a refresh. The queue is swapped out
// and the flag reset in the same critical section, so a request failing after
// this point starts a fresh cycle instead of joining a queue nobody drains.
// On failure the stored session is dropped in that section too, before any
// waiter can observe the error and log in again.
func (s *Session) onRefreshSettled(token string, err error) {
	s.mu.Lock()
	if err == nil {
		s.token = token
		s.persistLocked()
	} else {
		s.expireLocked()
	}
	pending := s.pending
	s.pending = nil
	s.refreshing = false
	s.mu.Unlock()

	for _, w := range pending {
		w.done <- refreshResult{token: token, err: err}
	}

	if err != nil {
		log.Warn().Err(err).Int("rejected", len(pending)).Msg("Token refresh failed, dropping session")
		s.redirect(err)
		return
	}
	log.Info().Int("resumed", len(pending)).Msg("Token refreshed successfully")
}

// expireLocked forgets the session in memory and in the store. Callers hold s.mu.
func (s *Session) expireLocked() {
	s.loaded = true
	s.token = ""
	s.refreshCred = ""
	s.username = ""
	if err := s.storer.ClearTokenRecord(); err != nil {
		log.Warn().Err(err).Msg("Failed to clear stored session")
	}
}

// Clear drops the session without redirecting, as on an explicit logout.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked()
}

func (s *Session) redirect(reason error) {
	if s.redirector == nil {
		return
	}
	if reason == nil {
		reason = ErrSessionExpired
	} else if !errors.Is(reason, ErrSessionExpired) {
		reason = fmt.Errorf("%w: %w", ErrSessionExpired, reason)
	}
	s.redirector.RedirectToLogin(reason)
}
