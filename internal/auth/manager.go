// Package auth implements Google sign-in and the session tokens the rest
// of the API surface trusts. Sessions are opaque random tokens held in
// memory with a fixed TTL; a background sweep evicts expired ones.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	DefaultUserInfoEndpoint = "https://www.googleapis.com/oauth2/v2/userinfo"

	defaultSessionTTL = 24 * time.Hour
	sweepInterval     = 10 * time.Minute
)

var DefaultScopes = []string{
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
}

// UserInfo is the subset of the Google userinfo response we keep.
type UserInfo struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// Session is an authenticated browser session.
type Session struct {
	Token     string    `json:"token"`
	User      UserInfo  `json:"user"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ManagerOption customizes Manager creation.
type ManagerOption func(*Manager)

// Manager handles the OAuth flow and the session table.
type Manager struct {
	oauthConfig *oauth2.Config
	sessionTTL  time.Duration

	sessionMu sync.RWMutex
	sessions  map[string]*Session

	// pending CSRF states issued by LoginURL, consumed by Exchange
	stateMu sync.Mutex
	states  map[string]time.Time

	httpClient       *http.Client
	userInfoEndpoint string
	now              func() time.Time
}

// NewManager creates an auth manager for the given OAuth client.
func NewManager(clientID, clientSecret, redirectURL string, sessionTTL time.Duration, opts ...ManagerOption) *Manager {
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
	}
	m := &Manager{
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       append([]string(nil), DefaultScopes...),
			Endpoint:     google.Endpoint,
		},
		sessionTTL:       sessionTTL,
		sessions:         make(map[string]*Session),
		states:           make(map[string]time.Time),
		httpClient:       &http.Client{Timeout: 30 * time.Second},
		userInfoEndpoint: DefaultUserInfoEndpoint,
		now:              time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// WithHTTPClient overrides the HTTP client used for outbound calls.
func WithHTTPClient(client *http.Client) ManagerOption {
	return func(m *Manager) {
		if client != nil {
			m.httpClient = client
		}
	}
}

// WithUserInfoEndpoint overrides the Google userinfo endpoint. Tests use it.
func WithUserInfoEndpoint(url string) ManagerOption {
	return func(m *Manager) {
		if url != "" {
			m.userInfoEndpoint = url
		}
	}
}

// WithOAuthEndpoint overrides the OAuth endpoints. Tests use it.
func WithOAuthEndpoint(endpoint oauth2.Endpoint) ManagerOption {
	return func(m *Manager) { m.oauthConfig.Endpoint = endpoint }
}

// LoginURL issues a CSRF state and returns the Google consent URL.
func (m *Manager) LoginURL() (string, error) {
	state, err := randomToken()
	if err != nil {
		return "", err
	}
	m.stateMu.Lock()
	m.states[state] = m.now().Add(10 * time.Minute)
	m.stateMu.Unlock()

	return m.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

// Exchange finishes the OAuth flow: validates the state, swaps the code for
// a Google token, fetches the user profile, and mints a session.
func (m *Manager) Exchange(ctx context.Context, state, code string) (*Session, error) {
	if !m.consumeState(state) {
		return nil, fmt.Errorf("invalid or expired oauth state")
	}

	tok, err := m.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	user, err := m.fetchUserInfo(ctx, tok.AccessToken)
	if err != nil {
		return nil, err
	}
	if user.Email == "" {
		return nil, fmt.Errorf("userinfo response missing email")
	}

	session, err := m.mintSession(user)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user":       user.Email,
		"expires_at": session.ExpiresAt.Format(time.RFC3339),
	}).Info("Session created")
	return session, nil
}

// Validate returns the session for a token, or false when missing/expired.
func (m *Manager) Validate(token string) (*Session, bool) {
	m.sessionMu.RLock()
	s, ok := m.sessions[token]
	m.sessionMu.RUnlock()
	if !ok {
		return nil, false
	}
	if m.now().After(s.ExpiresAt) {
		m.Revoke(token)
		return nil, false
	}
	return s, true
}

// Revoke removes a session.
func (m *Manager) Revoke(token string) {
	m.sessionMu.Lock()
	delete(m.sessions, token)
	m.sessionMu.Unlock()
}

// StartSweeper evicts expired sessions until ctx is done.
func (m *Manager) StartSweeper(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sweep()
			}
		}
	}()
}

func (m *Manager) sweep() {
	now := m.now()
	m.sessionMu.Lock()
	removed := 0
	for token, s := range m.sessions {
		if now.After(s.ExpiresAt) {
			delete(m.sessions, token)
			removed++
		}
	}
	m.sessionMu.Unlock()
	if removed > 0 {
		log.WithField("removed", removed).Debug("Swept expired sessions")
	}

	m.stateMu.Lock()
	for state, exp := range m.states {
		if now.After(exp) {
			delete(m.states, state)
		}
	}
	m.stateMu.Unlock()
}

func (m *Manager) consumeState(state string) bool {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	exp, ok := m.states[state]
	if !ok {
		return false
	}
	delete(m.states, state)
	return m.now().Before(exp)
}

func (m *Manager) mintSession(user UserInfo) (*Session, error) {
	token, err := randomToken()
	if err != nil {
		return nil, err
	}
	s := &Session{
		Token:     token,
		User:      user,
		ExpiresAt: m.now().Add(m.sessionTTL),
	}
	m.sessionMu.Lock()
	m.sessions[token] = s
	m.sessionMu.Unlock()
	return s, nil
}

func (m *Manager) fetchUserInfo(ctx context.Context, accessToken string) (UserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.userInfoEndpoint, nil)
	if err != nil {
		return UserInfo{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return UserInfo{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return UserInfo{}, fmt.Errorf("userinfo returned status %d", resp.StatusCode)
	}

	var user UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return UserInfo{}, fmt.Errorf("decode userinfo: %w", err)
	}
	return user, nil
}

func randomToken() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b[:]), nil
}
