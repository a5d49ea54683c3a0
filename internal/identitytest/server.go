// Package identitytest provides an in-process fake of the Guardline
// identity API for tests. It mirrors the backend's wire behavior closely
// enough for the session core: JSON shapes, status codes, error details,
// the X-Requires-2FA header, TOTP second factors, and refresh-token
// rotation/revocation.
package identitytest

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"

	"github.com/guardline/guardline-cli/internal/client/models"
	"github.com/guardline/guardline-cli/internal/common"
)

const maxFailedLogins = 5

// Server is a configurable fake identity API. Seed accounts with
// AddAccount, mount Handler on an httptest.Server, and point the client at
// it.
type Server struct {
	mu        sync.Mutex
	secret    []byte
	accessTTL time.Duration
	accounts  map[string]*account
	refresh   map[string]*refreshRecord
	router    *chi.Mux

	loginCalls   atomic.Int64
	refreshCalls atomic.Int64
	logoutCalls  atomic.Int64
	meCalls      atomic.Int64

	// LoginDelay makes the login handler sleep before answering; used by
	// concurrency tests.
	LoginDelay time.Duration
	// RefreshDelay does the same for the refresh handler.
	RefreshDelay time.Duration
}

type account struct {
	user           models.User
	passwordHash   []byte
	totpSecret     string
	failedAttempts int
}

type refreshRecord struct {
	userID  string
	revoked bool
}

func New() *Server {
	secret, err := common.MakeRandHexString(32)
	if err != nil {
		panic(err)
	}
	s := &Server{
		secret:    []byte(secret),
		accessTTL: 15 * time.Minute,
		accounts:  make(map[string]*account),
		refresh:   make(map[string]*refreshRecord),
	}

	r := chi.NewRouter()
	r.Post("/api/auth/login", s.handleLogin)
	r.Post("/api/auth/refresh", s.handleRefresh)
	r.Post("/api/auth/logout", s.handleLogout)
	r.Get("/api/auth/me", s.handleMe)
	s.router = r
	return s
}

// Handler returns the HTTP handler to mount on a test server.
func (s *Server) Handler() http.Handler { return s.router }

// SetAccessTTL overrides the access-token lifetime (default 15 minutes).
// Negative values issue already-expired tokens.
func (s *Server) SetAccessTTL(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessTTL = d
}

// AccountOption tweaks a seeded account.
type AccountOption func(*account)

// WithTOTPSecret enrolls the account in two-factor auth with the given
// base32 TOTP secret.
func WithTOTPSecret(secret string) AccountOption {
	return func(a *account) { a.totpSecret = secret }
}

// WithStatus sets the account status (default active).
func WithStatus(status models.UserStatus) AccountOption {
	return func(a *account) { a.user.Status = status }
}

// WithRoles sets the account roles.
func WithRoles(roles ...string) AccountOption {
	return func(a *account) { a.user.Roles = roles }
}

// WithUnverifiedEmail marks the account's email as unverified, which blocks
// login just like the real backend.
func WithUnverifiedEmail() AccountOption {
	return func(a *account) { a.user.EmailVerified = false }
}

// AddAccount seeds an account and returns its user record.
func (s *Server) AddAccount(email, password string, opts ...AccountOption) models.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}

	id, err := common.MakeRandHexString(8)
	if err != nil {
		panic(err)
	}

	acc := &account{
		user: models.User{
			ID:            id,
			Email:         strings.ToLower(email),
			EmailVerified: true,
			Status:        models.StatusActive,
			TrustScore:    50,
			Roles:         []string{"reporter"},
			CreatedAt:     time.Now().UTC(),
		},
		passwordHash: hash,
	}
	for _, opt := range opts {
		opt(acc)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[acc.user.Email] = acc
	return acc.user
}

// RevokeAllRefreshTokens simulates a server-side revocation (password
// change, logout-all).
func (s *Server) RevokeAllRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.refresh {
		rec.revoked = true
	}
}

// Call counters, for serialization/singleflight assertions.
func (s *Server) LoginCalls() int64   { return s.loginCalls.Load() }
func (s *Server) RefreshCalls() int64 { return s.refreshCalls.Load() }
func (s *Server) LogoutCalls() int64  { return s.logoutCalls.Load() }
func (s *Server) MeCalls() int64      { return s.meCalls.Load() }

type loginRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	RememberMe    bool   `json:"remember_me"`
	TwoFactorCode string `json:"two_factor_code"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int64       `json:"expires_in"`
	User         models.User `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.loginCalls.Add(1)
	if s.LoginDelay > 0 {
		time.Sleep(s.LoginDelay)
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[strings.ToLower(strings.TrimSpace(req.Email))]
	if !ok {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	if acc.failedAttempts >= maxFailedLogins {
		writeError(w, http.StatusLocked, "Account temporarily locked due to multiple failed login attempts. Please try again later.")
		return
	}

	if bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(req.Password)) != nil {
		acc.failedAttempts++
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	acc.failedAttempts = 0

	if acc.user.Status != models.StatusActive {
		writeError(w, http.StatusForbidden, "Account is inactive or suspended")
		return
	}
	if !acc.user.EmailVerified {
		writeError(w, http.StatusForbidden, "Please verify your email address before logging in")
		return
	}

	if acc.totpSecret != "" {
		if req.TwoFactorCode == "" {
			w.Header().Set(common.RequiresTwoFactorHeaderName, "true")
			writeError(w, http.StatusForbidden, "Two-factor authentication code required")
			return
		}
		if !totp.Validate(req.TwoFactorCode, acc.totpSecret) {
			writeError(w, http.StatusUnauthorized, "Invalid two-factor authentication code")
			return
		}
	}

	now := time.Now().UTC()
	acc.user.LastLoginAt = &now
	s.issueTokens(w, acc.user)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.refreshCalls.Add(1)
	if s.RefreshDelay > 0 {
		time.Sleep(s.RefreshDelay)
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.refresh[req.RefreshToken]
	if !ok || rec.revoked {
		writeError(w, http.StatusUnauthorized, "Refresh token expired or revoked")
		return
	}

	acc := s.findByID(rec.userID)
	if acc == nil || acc.user.Status != models.StatusActive {
		writeError(w, http.StatusUnauthorized, "User not found or inactive")
		return
	}

	// Rotation: the presented token is single-use.
	delete(s.refresh, req.RefreshToken)
	s.issueTokens(w, acc.user)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.logoutCalls.Add(1)

	if _, err := s.subjectFromRequest(r); err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.refresh[req.RefreshToken]; ok {
		rec.revoked = true
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.meCalls.Add(1)

	subject, err := s.subjectFromRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.findByID(subject)
	if acc == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, acc.user)
}

// issueTokens writes a token response for user. Caller holds s.mu.
func (s *Server) issueTokens(w http.ResponseWriter, user models.User) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   user.ID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.accessTTL)),
	})
	access, err := token.SignedString(s.secret)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token signing failed")
		return
	}

	refresh, err := common.MakeRandHexString(32)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token generation failed")
		return
	}
	s.refresh[refresh] = &refreshRecord{userID: user.ID}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.accessTTL / time.Second),
		User:         user,
	})
}

func (s *Server) subjectFromRequest(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	tokenString, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || tokenString == "" {
		return "", jwt.ErrTokenMalformed
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", jwt.ErrTokenInvalidClaims
	}
	return claims.Subject, nil
}

// findByID looks an account up by user id. Caller holds s.mu.
func (s *Server) findByID(id string) *account {
	for _, acc := range s.accounts {
		if acc.user.ID == id {
			return acc
		}
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
