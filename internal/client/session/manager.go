package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"github.com/guardline/guardline-cli/internal/client/api"
	"github.com/guardline/guardline-cli/internal/client/models"
	"github.com/guardline/guardline-cli/internal/client/tokens"
	"github.com/guardline/guardline-cli/internal/common"
	"github.com/guardline/guardline-cli/internal/logging"
)

// expiryLeeway is how much remaining lifetime a stored access token must
// have for hydration to present it instead of going through a refresh.
const expiryLeeway = 30 * time.Second

// Manager is the authentication state machine and the sole mutator of the
// session state. Operations are serialized: one mutating operation runs at
// a time, network call included, so no caller ever observes a torn
// combination of fields.
type Manager struct {
	api      api.Client
	store    tokens.Store
	logger   logging.Logger
	validate *validator.Validate

	// ops serializes mutating operations. Login and VerifyTwoFactor use
	// TryLock so a second attempt fails fast while one is in flight;
	// Refresh, Logout and Hydrate queue behind the pending operation.
	ops sync.Mutex

	mu      sync.RWMutex
	state   State
	tokens  models.TokenPair
	pending *models.Credentials
	gen     uint64

	refreshGroup singleflight.Group

	subMu   sync.Mutex
	subs    map[int]func(State)
	nextSub int

	timerMu      sync.Mutex
	refreshTimer *time.Timer
}

// NewManager constructs a Manager over the given API client and token store.
func NewManager(apiClient api.Client, store tokens.Store, logger logging.Logger) *Manager {
	return &Manager{
		api:      apiClient,
		store:    store,
		logger:   logger,
		validate: validator.New(),
		subs:     make(map[int]func(State)),
	}
}

// CurrentState returns a snapshot of the session. Never cached by callers
// that gate on it; re-read on every decision.
func (m *Manager) CurrentState() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Generation returns the current session generation. It moves forward every
// time an operation settles into a new authentication epoch.
func (m *Manager) Generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gen
}

// Subscribe registers fn to receive a snapshot after every settled
// operation. Snapshots are delivered after the operation's lock is
// released, so callbacks may call back into the Manager. The returned
// function cancels the subscription.
func (m *Manager) Subscribe(fn func(State)) func() {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		delete(m.subs, id)
	}
}

// Login authenticates with the identity API.
//
// Outcomes:
//   - nil: authenticated; tokens and user committed and persisted.
//   - common.ErrTwoFactorRequired: the password was accepted and the
//     submitted credentials are parked in a volatile pending slot; complete
//     with VerifyTwoFactor. Not a failure.
//   - common.ErrOperationInFlight: another operation holds the manager.
//   - any other sentinel: rejected; state unchanged.
func (m *Manager) Login(ctx context.Context, creds models.Credentials) error {
	if err := m.validate.Struct(creds); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidCredentials, err)
	}

	if !m.ops.TryLock() {
		return common.ErrOperationInFlight
	}
	defer m.notify()
	defer m.ops.Unlock()

	return m.doLogin(ctx, creds)
}

func (m *Manager) doLogin(ctx context.Context, creds models.Credentials) error {
	gen := m.beginOp()
	defer m.endOp()

	// A fresh attempt supersedes any previous pending second factor.
	m.mu.Lock()
	m.dropPendingLocked()
	m.mu.Unlock()

	res, err := m.api.Login(ctx, creds)
	if ctx.Err() != nil {
		// The consumer went away mid-flight. A late result must not
		// overwrite whatever state the next operation establishes.
		return ctx.Err()
	}

	switch {
	case err == nil:
		if m.commitAuth(gen, res) {
			m.persist(ctx)
			m.logger.Info(ctx, "login succeeded", "email", creds.Email)
		}
		return nil

	case errors.Is(err, common.ErrTwoFactorRequired):
		m.mu.Lock()
		if m.gen == gen {
			clone := creds.Clone()
			clone.TwoFactorCode = ""
			m.pending = &clone
			m.tokens = models.TokenPair{}
			m.state = State{RequiresTwoFactor: true, IsLoading: m.state.IsLoading}
		}
		m.mu.Unlock()
		m.logger.Info(ctx, "login pending second factor", "email", creds.Email)
		return common.ErrTwoFactorRequired

	default:
		m.logger.Warn(ctx, "login rejected", "email", creds.Email, "error", err)
		return err
	}
}

// VerifyTwoFactor completes a login that is waiting for a second factor by
// resubmitting the pending credentials together with the code.
//
// Calling it without a pending second factor is a caller bug and returns
// common.ErrInvalidState. A rejected code leaves the pending slot untouched
// so the caller can retry; the manager never retries on its own.
func (m *Manager) VerifyTwoFactor(ctx context.Context, code string) error {
	if code == "" {
		return common.ErrInvalidTwoFactorCode
	}

	if !m.ops.TryLock() {
		return common.ErrOperationInFlight
	}
	defer m.notify()
	defer m.ops.Unlock()

	return m.doVerifyTwoFactor(ctx, code)
}

func (m *Manager) doVerifyTwoFactor(ctx context.Context, code string) error {
	m.mu.RLock()
	var creds models.Credentials
	pendingSet := m.pending != nil
	if pendingSet {
		creds = m.pending.Clone()
	}
	m.mu.RUnlock()
	if !pendingSet {
		return common.ErrInvalidState
	}

	gen := m.beginOp()
	defer m.endOp()

	creds.TwoFactorCode = code
	res, err := m.api.Login(ctx, creds)
	creds.Wipe()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		m.logger.Warn(ctx, "second factor rejected", "email", creds.Email, "error", err)
		return err
	}

	if m.commitAuth(gen, res) {
		m.persist(ctx)
		m.logger.Info(ctx, "second factor accepted", "email", creds.Email)
	}
	return nil
}

// Refresh exchanges the refresh token for a fresh pair. Safe to call
// speculatively: concurrent callers are collapsed into a single upstream
// exchange and share its outcome.
//
// A rejected refresh token is a hard failure: the session and the token
// store are cleared and common.ErrSessionExpired is returned — the user has
// to authenticate again. Transport failures leave the session untouched.
func (m *Manager) Refresh(ctx context.Context) error {
	_, err, _ := m.refreshGroup.Do("refresh", func() (any, error) {
		m.ops.Lock()
		defer m.notify()
		defer m.ops.Unlock()
		return nil, m.doRefresh(ctx)
	})
	return err
}

func (m *Manager) doRefresh(ctx context.Context) error {
	gen := m.beginOp()
	defer m.endOp()

	m.mu.RLock()
	refreshToken := m.state.RefreshToken
	m.mu.RUnlock()
	if refreshToken == "" {
		return common.ErrSessionExpired
	}

	res, err := m.api.Refresh(ctx, refreshToken)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		if errors.Is(err, common.ErrSessionExpired) {
			m.expire(ctx, gen)
		}
		return err
	}

	if m.commitAuth(gen, res) {
		m.persist(ctx)
	}
	return nil
}

// Logout notifies the identity API best-effort and always clears the
// session and the token store. Idempotent: a second call on an already
// empty session re-establishes the same post-condition and succeeds.
func (m *Manager) Logout(ctx context.Context) error {
	m.ops.Lock()
	defer m.notify()
	defer m.ops.Unlock()

	return m.doLogout(ctx)
}

func (m *Manager) doLogout(ctx context.Context) error {
	_ = m.beginOp()
	defer m.endOp()

	m.mu.RLock()
	accessToken := m.state.AccessToken
	refreshToken := m.state.RefreshToken
	m.mu.RUnlock()

	if accessToken != "" || refreshToken != "" {
		if err := m.api.Logout(ctx, accessToken, refreshToken); err != nil {
			m.logger.Warn(ctx, "logout notification failed", "error", err)
		}
	}

	m.mu.Lock()
	m.resetLocked()
	m.mu.Unlock()

	if err := m.store.Clear(ctx); err != nil {
		m.logger.Warn(ctx, "token store clear failed", "error", err)
	}
	m.logger.Info(ctx, "logged out")
	return nil
}

// Hydrate restores the session from the token store at process start. An
// empty or stale store is not an error: the client simply starts
// unauthenticated. Transport failures are returned so the caller can decide
// whether to retry later.
func (m *Manager) Hydrate(ctx context.Context) error {
	m.ops.Lock()
	defer m.notify()
	defer m.ops.Unlock()

	return m.doHydrate(ctx)
}

func (m *Manager) doHydrate(ctx context.Context) error {
	gen := m.beginOp()
	defer m.endOp()

	pair, err := m.store.Load(ctx)
	if err != nil {
		return err
	}
	if pair == nil {
		return nil
	}

	// Present the stored access token if it still has life in it.
	if pair.AccessToken != "" {
		if exp, ok := tokenExpiry(pair.AccessToken); ok && time.Until(exp) > expiryLeeway {
			user, err := m.api.Me(ctx, pair.AccessToken)
			switch {
			case err == nil:
				if m.commitAuth(gen, &api.AuthResult{Tokens: *pair, User: user}) {
					m.logger.Info(ctx, "session restored", "email", user.Email)
				}
				return nil
			case errors.Is(err, common.ErrSessionExpired):
				// Token rejected server-side; fall through to the
				// refresh exchange.
			default:
				return err
			}
		}
	}

	if pair.RefreshToken == "" {
		m.clearStore(ctx)
		return nil
	}

	res, err := m.api.Refresh(ctx, pair.RefreshToken)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		if errors.Is(err, common.ErrSessionExpired) {
			// Stale pair. Start unauthenticated with a clean store.
			m.clearStore(ctx)
			return nil
		}
		return err
	}

	if m.commitAuth(gen, res) {
		m.persist(ctx)
		if res.User != nil {
			m.logger.Info(ctx, "session restored via refresh", "email", res.User.Email)
		}
	}
	return nil
}

// ScheduleRefresh arms a single-shot refresh ahead of the access token
// expiry. It reports whether a timer was armed. The fired call goes through
// the serialized Refresh path and is discarded when the session generation
// has moved in the meantime (logout, new login). No recurring poller: each
// refresh that should be followed by another needs a new call.
func (m *Manager) ScheduleRefresh(ctx context.Context, leeway time.Duration) bool {
	m.mu.RLock()
	authenticated := m.state.IsAuthenticated
	accessToken := m.state.AccessToken
	fallback := m.tokens.ExpiresAt()
	gen := m.gen
	m.mu.RUnlock()

	if !authenticated {
		return false
	}

	exp, ok := tokenExpiry(accessToken)
	if !ok {
		exp = fallback
	}
	if exp.IsZero() {
		return false
	}

	delay := time.Until(exp) - leeway
	if delay < 0 {
		delay = 0
	}

	m.timerMu.Lock()
	defer m.timerMu.Unlock()
	if m.refreshTimer != nil {
		m.refreshTimer.Stop()
	}
	m.refreshTimer = time.AfterFunc(delay, func() {
		m.mu.RLock()
		stale := m.gen != gen
		m.mu.RUnlock()
		if stale {
			return
		}
		if err := m.Refresh(ctx); err != nil {
			m.logger.Warn(ctx, "scheduled refresh failed", "error", err)
		}
	})
	return true
}

// Close stops any armed refresh timer. It does not touch the session state.
func (m *Manager) Close() {
	m.timerMu.Lock()
	defer m.timerMu.Unlock()
	if m.refreshTimer != nil {
		m.refreshTimer.Stop()
		m.refreshTimer = nil
	}
}

// beginOp flips the loading flag and captures the generation the operation
// runs against.
func (m *Manager) beginOp() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.IsLoading = true
	return m.gen
}

// endOp clears the loading flag. Runs on every exit path via defer, so the
// flag can never leak past a settled operation.
func (m *Manager) endOp() {
	m.mu.Lock()
	m.state.IsLoading = false
	m.mu.Unlock()
}

// commitAuth installs an authenticated state. The result is discarded when
// another operation settled since gen was captured. Reports whether the
// commit happened.
func (m *Manager) commitAuth(gen uint64, res *api.AuthResult) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return false
	}

	m.dropPendingLocked()
	user := res.User
	if user == nil {
		user = m.state.User
	}
	m.tokens = res.Tokens
	m.state = State{
		User:            user,
		AccessToken:     res.Tokens.AccessToken,
		RefreshToken:    res.Tokens.RefreshToken,
		IsAuthenticated: true,
		IsLoading:       m.state.IsLoading,
	}
	m.gen++
	return true
}

// expire clears the session after a rejected refresh token.
func (m *Manager) expire(ctx context.Context, gen uint64) {
	m.mu.Lock()
	if m.gen == gen {
		m.resetLocked()
	}
	m.mu.Unlock()
	m.clearStore(ctx)
	m.logger.Warn(ctx, "session expired, re-authentication required")
}

// resetLocked clears every session field and opens a new generation.
// Caller holds m.mu.
func (m *Manager) resetLocked() {
	m.dropPendingLocked()
	m.tokens = models.TokenPair{}
	m.state = State{IsLoading: m.state.IsLoading}
	m.gen++
}

// dropPendingLocked wipes and discards the pending credentials.
// Caller holds m.mu.
func (m *Manager) dropPendingLocked() {
	if m.pending != nil {
		m.pending.Wipe()
		m.pending = nil
	}
	m.state.RequiresTwoFactor = false
}

func (m *Manager) persist(ctx context.Context) {
	m.mu.RLock()
	pair := m.tokens
	m.mu.RUnlock()
	if err := m.store.Save(ctx, pair); err != nil {
		m.logger.Warn(ctx, "token store save failed", "error", err)
	}
}

func (m *Manager) clearStore(ctx context.Context) {
	if err := m.store.Clear(ctx); err != nil {
		m.logger.Warn(ctx, "token store clear failed", "error", err)
	}
}

// notify runs after the operation mutex is released (defers run LIFO), so
// subscribers see settled state and may safely invoke manager operations.
func (m *Manager) notify() {
	st := m.CurrentState()
	m.subMu.Lock()
	fns := make([]func(State), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subMu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}
