package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"svgforge-go/internal/agents"
	"svgforge-go/internal/auth"
	"svgforge-go/internal/config"
	"svgforge-go/internal/pool"
	"svgforge-go/internal/quota"
	"svgforge-go/internal/upstream/gemini"
	"svgforge-go/internal/userkeys"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
)

// fakeGenerator answers the router with "create" and every other call with
// a fixed SVG. It records the API keys it was called with.
type fakeGenerator struct {
	keys []string
}

func (g *fakeGenerator) Generate(_ context.Context, apiKey string, req gemini.Request) (string, error) {
	g.keys = append(g.keys, apiKey)
	if strings.Contains(req.SystemPrompt, "routing agent") {
		return "create", nil
	}
	return "<svg><rect/></svg>", nil
}

type testEnv struct {
	engine *gin.Engine
	gen    *fakeGenerator
	token  string
}

func newTestEnv(t *testing.T, dailyLimit int, adminKey string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	// Fake Google endpoints for the OAuth flow.
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "fake-access", "token_type": "Bearer", "expires_in": 3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(auth.UserInfo{Email: "tester@example.com", Name: "Tester"})
	})
	google := httptest.NewServer(mux)
	t.Cleanup(google.Close)

	authManager := auth.NewManager("cid", "csecret", google.URL+"/cb", time.Hour,
		auth.WithOAuthEndpoint(oauth2.Endpoint{AuthURL: google.URL + "/auth", TokenURL: google.URL + "/token"}),
		auth.WithUserInfoEndpoint(google.URL+"/userinfo"),
		auth.WithHTTPClient(google.Client()),
	)

	hash := ""
	if adminKey != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(adminKey), bcrypt.MinCost)
		require.NoError(t, err)
		hash = string(h)
	}

	cfg := config.Defaults()
	cfg.Security.ManagementKeyHash = hash
	cfg.RateLimit.Enabled = false

	gen := &fakeGenerator{}
	deps := Dependencies{
		Pool: pool.New([]pool.Spec{
			{Secret: "pooled-secret-one", MaxConcurrent: 3, MaxStartsPerMinute: 100},
		}, pool.Options{Recheck: 5 * time.Millisecond}),
		Quota:        quota.NewMemoryLedger(dailyLimit),
		Keys:         userkeys.NewMemoryStore(),
		Auth:         authManager,
		Orchestrator: agents.NewOrchestrator(gen),
	}
	env := &testEnv{engine: BuildEngine(cfg, deps), gen: gen}
	env.token = env.signIn(t)
	return env
}

// signIn walks the login redirect and callback to obtain a session token.
func (e *testEnv) signIn(t *testing.T) string {
	t.Helper()

	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, httptest.NewRequest("GET", "/auth/login", nil))
	require.Equal(t, http.StatusFound, w.Code)

	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	w = httptest.NewRecorder()
	e.engine.ServeHTTP(w, httptest.NewRequest("GET", "/auth/callback?state="+state+"&code=fake-code", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (e *testEnv) do(method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func TestGenerateRequiresSession(t *testing.T) {
	env := newTestEnv(t, 3, "")
	w := env.do("POST", "/v1/generate", "", `{"userPrompt":"a card","mode":"create"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGenerateCreateFlow(t *testing.T) {
	env := newTestEnv(t, 3, "")
	w := env.do("POST", "/v1/generate", env.token, `{"userPrompt":"a card","mode":"create"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool   `json:"success"`
		SVG     string `json:"svg"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, "<svg><rect/></svg>", resp.SVG)
	require.Contains(t, env.gen.keys, "pooled-secret-one")
}

func TestGenerateQuotaExhaustion(t *testing.T) {
	env := newTestEnv(t, 2, "")

	for i := 0; i < 2; i++ {
		w := env.do("POST", "/v1/generate", env.token, `{"userPrompt":"a card","mode":"create"}`)
		require.Equal(t, http.StatusOK, w.Code)
		require.Contains(t, w.Body.String(), `"success":true`)
	}

	w := env.do("POST", "/v1/generate", env.token, `{"userPrompt":"a card","mode":"create"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"success":false`)
	require.Contains(t, w.Body.String(), "limit reached")
}

func TestGenerateWithOwnKeyBypassesQuota(t *testing.T) {
	env := newTestEnv(t, 1, "")

	w := env.do("PUT", "/v1/keys", env.token, `{"apiKey":"AIzaSy-private"}`)
	require.Equal(t, http.StatusOK, w.Code)

	// Well past the trial limit, every call should still succeed.
	for i := 0; i < 3; i++ {
		w := env.do("POST", "/v1/generate", env.token, `{"userPrompt":"a card","mode":"create"}`)
		require.Equal(t, http.StatusOK, w.Code)
		require.Contains(t, w.Body.String(), `"success":true`)
	}
	require.Contains(t, env.gen.keys, "AIzaSy-private")
	require.NotContains(t, env.gen.keys, "pooled-secret-one")
}

func TestKeysLifecycle(t *testing.T) {
	env := newTestEnv(t, 3, "")

	w := env.do("GET", "/v1/keys", env.token, "")
	require.Contains(t, w.Body.String(), `"registered":false`)

	env.do("PUT", "/v1/keys", env.token, `{"apiKey":"k"}`)
	w = env.do("GET", "/v1/keys", env.token, "")
	require.Contains(t, w.Body.String(), `"registered":true`)

	env.do("DELETE", "/v1/keys", env.token, "")
	w = env.do("GET", "/v1/keys", env.token, "")
	require.Contains(t, w.Body.String(), `"registered":false`)
}

func TestAuthMeReportsQuota(t *testing.T) {
	env := newTestEnv(t, 3, "")
	w := env.do("GET", "/auth/me", env.token, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "tester@example.com")
	require.Contains(t, w.Body.String(), `"limit":3`)
}

func TestLogoutInvalidatesSession(t *testing.T) {
	env := newTestEnv(t, 3, "")

	w := env.do("POST", "/auth/logout", env.token, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do("GET", "/auth/me", env.token, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminGuard(t *testing.T) {
	env := newTestEnv(t, 3, "open-sesame")

	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, httptest.NewRequest("GET", "/admin/pool", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest("GET", "/admin/pool", nil)
	req.Header.Set("X-Admin-Key", "open-sesame")
	w = httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "pooled-credential-1")
}

func TestAdminDisabledWithoutHash(t *testing.T) {
	env := newTestEnv(t, 3, "")
	req := httptest.NewRequest("GET", "/admin/pool", nil)
	req.Header.Set("X-Admin-Key", "anything")
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, 3, "")
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"pool_size":1`)
}
