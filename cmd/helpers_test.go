package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/collabflow/collabflow-cli/client"
	"github.com/rs/zerolog"
)

const (
	teamA = "11111111-1111-1111-1111-111111111111"
	teamB = "22222222-2222-2222-2222-222222222222"
	userB = "bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

// fakeBackend is a minimal CollabFlow API. Protected routes accept only validToken.
type fakeBackend struct {
	*httptest.Server

	mu          sync.Mutex
	loginToken  string
	validToken  string
	refreshCode int
	paths       []string

	refreshHits atomic.Int32
	mux         *http.ServeMux
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{loginToken: "T-good", validToken: "T-good", refreshCode: http.StatusOK, mux: http.NewServeMux()}

	b.mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var in client.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in.UsernameOrEmail != "alice" || in.Password != "secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid username or password"})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "refreshToken", Value: "R1", Path: "/", HttpOnly: true})
		b.mu.Lock()
		token := b.loginToken
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, client.AuthResponse{AccessToken: token, TokenType: "Bearer"})
	})
	b.mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		b.refreshHits.Add(1)
		b.mu.Lock()
		code := b.refreshCode
		b.mu.Unlock()
		if ck, err := r.Cookie("refreshToken"); err != nil || ck.Value != "R1" || code != http.StatusOK {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("Missing refresh token"))
			return
		}
		writeJSON(w, http.StatusOK, client.AuthResponse{AccessToken: "T-good"})
	})
	b.mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "refreshToken", Value: "", Path: "/", MaxAge: -1})
		w.WriteHeader(http.StatusNoContent)
	})

	b.Server = httptest.NewServer(b.mux)
	t.Cleanup(b.Close)
	return b
}

// handle registers a protected route.
func (b *fakeBackend) handle(pattern string, h http.HandlerFunc) {
	b.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.paths = append(b.paths, r.Method+" "+r.URL.RequestURI())
		ok := r.Header.Get("Authorization") == "Bearer "+b.validToken
		b.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		h(w, r)
	})
}

func (b *fakeBackend) seen() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.paths...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// useBackend points the CLI at b with a fresh database under a temp dir.
func useBackend(t *testing.T, b *fakeBackend) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("COLLABFLOW_HOME", dir)
	t.Setenv("COLLABFLOW_API_URL", b.URL)
	t.Setenv("COLLABFLOW_DB_PATH", filepath.Join(dir, "collabflow.db"))
	t.Cleanup(func() {
		closeDatabase()
		env = nil
	})
}

// runCLI executes the root command with args and returns everything it printed.
func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	rootCmd := createRootCmd()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func login(t *testing.T) {
	t.Helper()
	if out, err := runCLI(t, "", "login", "-u", "alice", "-p", "secret"); err != nil {
		t.Fatalf("login failed: %v\n%s", err, out)
	}
}
