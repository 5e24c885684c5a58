package client_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/collabflow/collabflow-cli/auth"
	"github.com/collabflow/collabflow-cli/client"
	"github.com/collabflow/collabflow-cli/db"
	"github.com/stretchr/testify/require"
)

// testAPI is a fake backend: it accepts one access token at a time and
// rotates it on a successful refresh.
type testAPI struct {
	*httptest.Server

	mu           sync.Mutex
	validToken   string
	refreshValue string
	issueToken   string
	refreshCode  int
	seen         []seenRequest

	// refreshGate, when set before the first request, holds the refresh
	// handler until it is closed.
	refreshGate chan struct{}
	refreshHits atomic.Int32
}

type seenRequest struct {
	Method string
	Path   string
	Query  string
	Bearer string
	Body   string
}

func newTestAPI(t *testing.T, routes func(api *testAPI, mux *http.ServeMux)) *testAPI {
	t.Helper()
	api := &testAPI{
		validToken:   "T2",
		refreshValue: "R1",
		issueToken:   "T2",
		refreshCode:  http.StatusOK,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/refresh", api.handleRefresh)
	if routes != nil {
		routes(api, mux)
	}
	api.Server = httptest.NewServer(mux)
	t.Cleanup(api.Close)
	return api
}

func (a *testAPI) handleRefresh(w http.ResponseWriter, r *http.Request) {
	a.refreshHits.Add(1)
	if a.refreshGate != nil {
		<-a.refreshGate
	}
	ck, err := r.Cookie(client.DefaultRefreshCookieName)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.refreshCode != http.StatusOK || err != nil || ck.Value != a.refreshValue {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("Missing refresh token"))
		return
	}
	a.validToken = a.issueToken
	a.refreshValue = "R2"
	http.SetCookie(w, &http.Cookie{Name: client.DefaultRefreshCookieName, Value: "R2", Path: "/", HttpOnly: true})
	writeJSON(w, http.StatusOK, client.AuthResponse{AccessToken: a.issueToken, TokenType: "Bearer"})
}

func (a *testAPI) setRefreshCode(code int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refreshCode = code
}

// protected records the request and answers 401 unless it carries the valid token.
func (a *testAPI) protected(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.record(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (a *testAPI) record(r *http.Request) bool {
	body, _ := io.ReadAll(r.Body)
	bearer := r.Header.Get("Authorization")
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seen = append(a.seen, seenRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Bearer: bearer,
		Body:   string(body),
	})
	return bearer == "Bearer "+a.validToken
}

func (a *testAPI) requests() []seenRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]seenRequest(nil), a.seen...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type redirectCounter struct {
	count  atomic.Int32
	mu     sync.Mutex
	reason error
}

func (r *redirectCounter) RedirectToLogin(reason error) {
	r.count.Add(1)
	r.mu.Lock()
	r.reason = reason
	r.mu.Unlock()
}

// newTestClient returns a client whose session holds accessToken and the
// refresh cookie the fake backend expects.
func newTestClient(t *testing.T, api *testAPI, accessToken string) (*client.Client, *auth.MemoryStore, *redirectCounter) {
	t.Helper()
	store := auth.NewMemoryStore()
	if accessToken != "" {
		require.NoError(t, store.UpsertTokenRecord(&db.Token{AccessToken: accessToken, RefreshToken: "R1", Username: "alice"}))
	}
	redirects := &redirectCounter{}
	session := auth.NewSession(store, auth.WithRedirector(redirects))
	return client.New(api.URL, session), store, redirects
}
