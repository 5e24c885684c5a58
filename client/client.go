package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/collabflow/collabflow-cli/auth"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL           = "http://localhost:9090/api"
	DefaultTimeout           = 30 * time.Second
	DefaultRefreshCookieName = "refreshToken"

	refreshPath = "/auth/refresh"
)

// Request describes one API call. The client fills in the base URL,
// credentials and JSON encoding.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   any

	// SkipAuthRecovery passes 401 responses straight to the caller, as for login.
	SkipAuthRecovery bool

	retried        bool   // already replayed once after a refresh
	refresh        bool   // this is the refresh call itself
	sendCredential bool   // attach the refresh cookie
	bearer         string // token to use instead of the session's
}

// Client issues requests against the CollabFlow API. It attaches the session's
// access token to every request and recovers transparently from expired tokens.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	session       *auth.Session
	limiter       *rate.Limiter
	refreshCookie string
	userAgent     string
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRateLimit caps outgoing requests per second. Zero disables the limit.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) { c.limiter = newRequestLimiter(perSecond) }
}

func WithRefreshCookieName(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.refreshCookie = name
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New creates a client for baseURL and registers it as the session's refresher.
func New(baseURL string, session *auth.Session, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if session == nil {
		session = auth.NewSession(nil)
	}
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		httpClient:    &http.Client{Timeout: DefaultTimeout},
		session:       session,
		refreshCookie: DefaultRefreshCookieName,
		userAgent:     "collabflow-cli",
	}
	for _, opt := range opts {
		opt(c)
	}
	session.SetRefresher(c)
	return c
}

// Session returns the session the client authenticates with.
func (c *Client) Session() *auth.Session { return c.session }

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// Do sends req and decodes a successful JSON response into out (when non-nil).
//
// A 401 on an ordinary request triggers one coordinated token refresh, after
// which the request is replayed once with the new token. A 401 on the refresh
// call itself, or on a replay, is returned to the caller. Every other status is
// returned as an *APIError.
func (c *Client) Do(ctx context.Context, req *Request, out any) error {
	status, body, err := c.sendRequest(ctx, req)
	if err != nil {
		return err
	}
	if status >= 200 && status < 300 {
		return decodeBody(body, out)
	}

	apiErr := newAPIError(req, status, body)
	if status != http.StatusUnauthorized || req.SkipAuthRecovery {
		return apiErr
	}
	if req.refresh {
		return fmt.Errorf("%w: %w", ErrRefreshRejected, apiErr)
	}
	if req.retried {
		log.Debug().Str("path", req.Path).Msg("Request rejected again after refresh")
		return apiErr
	}

	req.retried = true
	token, err := c.session.HandleAuthFailure(ctx)
	if err != nil {
		return err
	}
	req.bearer = token
	log.Debug().Str("method", req.Method).Str("path", req.Path).Msg("Replaying request with refreshed token")
	return c.Do(ctx, req, out)
}

// PerformTokenRefresh issues the refresh call. It implements auth.TokenRefresher
// and is only invoked by the session, which guarantees a single call in flight.
func (c *Client) PerformTokenRefresh(ctx context.Context) (string, error) {
	if c.session.RefreshCredential() == "" {
		return "", ErrNoRefreshCredential
	}
	var res AuthResponse
	err := c.Do(ctx, &Request{
		Method:         http.MethodPost,
		Path:           refreshPath,
		refresh:        true,
		sendCredential: true,
	}, &res)
	if err != nil {
		return "", err
	}
	if res.RefreshToken != "" {
		c.session.SetRefreshCredential(res.RefreshToken)
	}
	return res.AccessToken, nil
}

// Refresh forces a token refresh through the session, joining one already in
// flight. A failure drops the session.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	token, err := c.session.HandleAuthFailure(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", fmt.Errorf("failed to refresh session: %w", err)
	}
	return token, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// captureRefreshCookie keeps the refresh cookie rotated by login, refresh and logout.
func (c *Client) captureRefreshCookie(resp *http.Response) {
	for _, ck := range resp.Cookies() {
		if ck.Name != c.refreshCookie {
			continue
		}
		if ck.Value == "" || ck.MaxAge < 0 {
			c.session.SetRefreshCredential("")
			continue
		}
		c.session.SetRefreshCredential(ck.Value)
	}
}
