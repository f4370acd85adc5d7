package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"k8s.io/utils/clock"

	"deskauth/internal/backend"
	"deskauth/internal/config"
	"deskauth/internal/credstore"
	"deskauth/internal/idp"
	"deskauth/pkg/auth"
	"deskauth/pkg/logging"
)

// User-facing messages.
const (
	msgInvalidCredentials = "Invalid username or password."
	msgServerUnavailable  = "The server could not be reached. Please try again later."
	msgInvalidMFACode     = "The verification code must be exactly 6 digits."
	msgMFARejected        = "The verification code is incorrect."
	msgMFAAbandoned       = "Too many incorrect verification codes. Please log in again."
	msgSessionExpired     = "Your session has expired. Please log in again."
	msgNotAuthenticated   = "You are not logged in."
	msgBusy               = "Another sign-in is already in progress."
	msgLoginCancelled     = "Sign-in was cancelled by a logout."
)

// Backend is the subset of the ITSM backend the Manager uses.
type Backend interface {
	Login(ctx context.Context, username, password string) (*backend.LoginResponse, error)
	VerifyMFA(ctx context.Context, code, mfaToken string) (*backend.TokenResponse, error)
	Me(ctx context.Context, token string) (*auth.User, error)
	Logout(ctx context.Context, token string) error
	Sessions(ctx context.Context, token string) ([]auth.Session, error)
	RevokeSession(ctx context.Context, token, sessionID string) error
	Refresh(ctx context.Context, token, refreshToken string) (*backend.TokenResponse, error)
	UpdateProfile(ctx context.Context, token string, update backend.ProfileUpdate) (*auth.User, error)
	ChangePassword(ctx context.Context, token, oldPassword, newPassword string) error
}

// IdentityProvider is the external directory used for silent renewal and
// interactive sign-in.
type IdentityProvider interface {
	AcquireTokenSilent(ctx context.Context) (*idp.Token, error)
	SignIn(ctx context.Context, prompt func(*oauth2.DeviceAuthResponse)) (*idp.Token, error)
}

// Options wires a Manager.
type Options struct {
	Backend Backend
	Store   credstore.Store
	// IdP may be nil; renewal then always fails once the token expires.
	IdP IdentityProvider
	// Attempts defaults to an in-memory store.
	Attempts AttemptStore
	// Clock defaults to the real clock.
	Clock   clock.WithTicker
	Session config.SessionConfig
	// DefaultRole and DefaultPermissions are given to users built from
	// identity provider claims.
	DefaultRole        string
	DefaultPermissions []string
}

// Manager owns the session state machine. It is the single source of truth
// for who is signed in; observers read it through Snapshot or Subscribe.
type Manager struct {
	backend  Backend
	store    credstore.Store
	idp      IdentityProvider
	clock    clock.WithTicker
	cfg      config.SessionConfig
	defRole  string
	defPerms []string
	tracer   trace.Tracer

	mu          sync.Mutex
	state       State
	user        *auth.User
	creds       credstore.Credentials
	mfaToken    string
	mfaFailures int
	errMsg      string
	errKind     auth.Kind
	sessions    []auth.Session
	attempts    *lockoutTracker
	scheduler   *renewalScheduler
	inFlight    bool
	// quiesce counts teardowns in progress. Restore and Resync stand
	// back while it is non-zero so they cannot resurrect a session whose
	// stored credentials are about to be cleared.
	quiesce int
	// epoch changes on every logout so in-flight logins can detect that
	// they were overtaken.
	epoch       uint64
	subscribers map[int]chan Snapshot
	nextSubID   int
}

// NewManager creates a Manager in the Anonymous state. Call Restore to
// rehydrate a persisted session.
func NewManager(opts Options) (*Manager, error) {
	if opts.Backend == nil {
		return nil, errors.New("backend is required")
	}
	if opts.Store == nil {
		return nil, errors.New("credential store is required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Attempts == nil {
		opts.Attempts = &MemoryAttemptStore{}
	}

	cfg := opts.Session
	defaults := config.GetDefaultConfig().Session
	if cfg.LockoutThreshold <= 0 {
		cfg.LockoutThreshold = defaults.LockoutThreshold
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = defaults.LockoutDuration
	}
	if cfg.RenewalInterval <= 0 {
		cfg.RenewalInterval = defaults.RenewalInterval
	}
	if cfg.DefaultTokenLifetime <= 0 {
		cfg.DefaultTokenLifetime = defaults.DefaultTokenLifetime
	}

	m := &Manager{
		backend:     opts.Backend,
		store:       opts.Store,
		idp:         opts.IdP,
		clock:       opts.Clock,
		cfg:         cfg,
		defRole:     opts.DefaultRole,
		defPerms:    append([]string(nil), opts.DefaultPermissions...),
		tracer:      otel.Tracer("deskauth/session"),
		subscribers: map[int]chan Snapshot{},
	}
	m.attempts = newLockoutTracker(opts.Attempts, opts.Clock, cfg.WarningThreshold, cfg.LockoutThreshold, cfg.LockoutDuration)
	if m.attempts.lock().Locked {
		m.state = StateLockedOut
	}
	return m, nil
}

// Snapshot returns a consistent copy of the observable state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// IsAuthenticated reports whether a user is signed in.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user != nil
}

// CurrentUser returns a copy of the signed-in user, or nil.
func (m *Manager) CurrentUser() *auth.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user.Clone()
}

// HasPermission reports whether the signed-in user holds permission.
func (m *Manager) HasPermission(permission string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return auth.Evaluate(m.user, permission)
}

// HasAnyPermission reports whether the user holds at least one permission.
func (m *Manager) HasAnyPermission(permissions ...string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return auth.EvaluateAny(m.user, permissions...)
}

// HasAllPermissions reports whether the user holds every permission.
func (m *Manager) HasAllPermissions(permissions ...string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return auth.EvaluateAll(m.user, permissions...)
}

// Login authenticates with username and password.
//
// While the account is locked the call fails locally with AccountLocked.
// Otherwise existing credentials are cleared before the backend is asked.
// A direct token completes the login; a second-factor demand moves to
// MfaPending and persists nothing. Rejected credentials count toward the
// lockout; network and server failures do not.
func (m *Manager) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	ctx, span := m.tracer.Start(ctx, "session.Login")
	defer span.End()

	m.mu.Lock()
	if m.inFlight {
		m.mu.Unlock()
		return nil, auth.NewError(auth.KindBusy, msgBusy, nil)
	}
	if lock := m.attempts.lock(); lock.Locked {
		msg := lockedMessage(lock, m.clock.Now())
		m.state = StateLockedOut
		m.setErrorLocked(auth.KindAccountLocked, msg)
		m.publishLocked()
		m.mu.Unlock()
		span.SetStatus(codes.Error, "locked")
		return &LoginResult{Outcome: OutcomeLocked, Message: msg, Lock: lock}, lockedError(lock, msg)
	}
	m.inFlight = true
	epoch := m.epoch
	prev := m.resetLocked(StateAuthenticating)
	m.publishLocked()
	m.mu.Unlock()

	defer m.endFlight()
	prev.stop()

	if err := m.store.Clear(ctx); err != nil {
		logging.Warn("Session", "Failed to clear previous credentials: %v", err)
	}

	resp, err := m.backend.Login(ctx, username, password)
	if err != nil {
		span.RecordError(err)
		return m.loginFailed(epoch, username, err)
	}

	if resp.MFARequired {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.epoch != epoch {
			return nil, auth.NewError(auth.KindNotAuthenticated, msgLoginCancelled, nil)
		}
		m.state = StateMFAPending
		m.mfaToken = resp.MFAToken
		m.mfaFailures = 0
		m.publishLocked()
		logging.Audit("login_mfa_required", "user", username)
		return &LoginResult{Outcome: OutcomeMFARequired, Message: "A verification code is required."}, nil
	}

	user, err := m.completeAuthentication(ctx, epoch, resp.AccessToken, resp.RefreshToken, resp.ExpiresIn)
	if err != nil {
		span.RecordError(err)
		return &LoginResult{Outcome: OutcomeFailed, Message: err.Error()}, err
	}

	span.SetAttributes(attribute.String("deskauth.user_id", user.ID))
	logging.Audit("login_succeeded", "user", username)
	return &LoginResult{Outcome: OutcomeAuthenticated, Message: "Signed in.", User: user}, nil
}

// loginFailed records a rejected login. A login overtaken by Logout still
// counts toward the lockout but leaves the state of the signed-out Manager
// alone.
func (m *Manager) loginFailed(epoch uint64, username string, err error) (*LoginResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	overtaken := m.epoch != epoch

	if backend.IsNetworkOrServer(err) {
		if !overtaken {
			m.state = StateError
			m.setErrorLocked(auth.KindNetworkOrServer, msgServerUnavailable)
			m.publishLocked()
		}
		logging.Warn("Session", "Login failed on network or server error: %v", err)
		return &LoginResult{Outcome: OutcomeFailed, Message: msgServerUnavailable, RemainingAttempts: m.attempts.remaining()},
			auth.NewError(auth.KindNetworkOrServer, msgServerUnavailable, err)
	}

	msg := serverMessage(err, msgInvalidCredentials)

	lock := m.attempts.recordFailure()
	logging.Audit("login_failed", "user", username, "failures", m.attempts.failures())

	if lock.Locked {
		lockMsg := lockedMessage(lock, m.clock.Now())
		m.state = StateLockedOut
		m.setErrorLocked(auth.KindAccountLocked, lockMsg)
		m.publishLocked()
		return &LoginResult{Outcome: OutcomeLocked, Message: lockMsg, Lock: lock}, lockedError(lock, lockMsg)
	}

	result := &LoginResult{
		Outcome:           OutcomeFailed,
		Message:           msg,
		RemainingAttempts: m.attempts.remaining(),
	}
	if m.attempts.warn() {
		result.Warning = true
		result.Message = fmt.Sprintf("%s %d attempt(s) remaining before the account is locked.", msg, result.RemainingAttempts)
	}
	if !overtaken {
		m.state = StateError
		m.setErrorLocked(auth.KindInvalidCredentials, result.Message)
	}
	m.publishLocked()
	return result, auth.NewError(auth.KindInvalidCredentials, result.Message, err)
}

// VerifyMFA submits the second-factor code of a pending challenge. The code
// must be exactly six ASCII digits; anything else is rejected without a
// network call.
func (m *Manager) VerifyMFA(ctx context.Context, code string) (*MFAResult, error) {
	ctx, span := m.tracer.Start(ctx, "session.VerifyMFA")
	defer span.End()

	m.mu.Lock()
	if m.inFlight {
		m.mu.Unlock()
		return nil, auth.NewError(auth.KindBusy, msgBusy, nil)
	}
	if m.state != StateMFAPending {
		m.mu.Unlock()
		return nil, auth.NewError(auth.KindInvalidState, "No verification is pending.", nil)
	}
	if !validMFACode(code) {
		m.setErrorLocked(auth.KindMfaInvalid, msgInvalidMFACode)
		m.publishLocked()
		remaining := m.mfaRemainingLocked()
		m.mu.Unlock()
		return &MFAResult{Message: msgInvalidMFACode, RemainingAttempts: remaining},
			auth.NewError(auth.KindMfaInvalid, msgInvalidMFACode, nil)
	}
	m.inFlight = true
	epoch := m.epoch
	mfaToken := m.mfaToken
	m.state = StateAuthenticating
	m.setErrorLocked(auth.KindUnknown, "")
	m.publishLocked()
	m.mu.Unlock()

	defer m.endFlight()

	resp, err := m.backend.VerifyMFA(ctx, code, mfaToken)
	if err != nil {
		span.RecordError(err)
		return m.mfaFailed(epoch, err)
	}

	user, err := m.completeAuthentication(ctx, epoch, resp.Access(), resp.RefreshToken, resp.ExpiresIn)
	if err != nil {
		span.RecordError(err)
		return &MFAResult{Message: err.Error()}, err
	}

	logging.Audit("mfa_verified", "user_id", user.ID)
	return &MFAResult{Verified: true, Message: "Signed in.", User: user}, nil
}

func (m *Manager) mfaFailed(epoch uint64, err error) (*MFAResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.epoch != epoch {
		return nil, auth.NewError(auth.KindNotAuthenticated, msgLoginCancelled, err)
	}

	if backend.IsNetworkOrServer(err) {
		m.state = StateMFAPending
		m.setErrorLocked(auth.KindNetworkOrServer, msgServerUnavailable)
		m.publishLocked()
		return &MFAResult{Message: msgServerUnavailable, RemainingAttempts: m.mfaRemainingLocked()},
			auth.NewError(auth.KindNetworkOrServer, msgServerUnavailable, err)
	}

	m.mfaFailures++
	logging.Audit("mfa_failed", "failures", m.mfaFailures)

	if m.cfg.MFA.CountTowardLockout {
		if lock := m.attempts.recordFailure(); lock.Locked {
			msg := lockedMessage(lock, m.clock.Now())
			m.clearMFALocked()
			m.state = StateLockedOut
			m.setErrorLocked(auth.KindAccountLocked, msg)
			m.publishLocked()
			return &MFAResult{Message: msg, Abandoned: true}, lockedError(lock, msg)
		}
	}

	if limit := m.cfg.MFA.MaxAttempts; limit > 0 && m.mfaFailures >= limit {
		m.clearMFALocked()
		m.state = StateAnonymous
		m.setErrorLocked(auth.KindMfaInvalid, msgMFAAbandoned)
		m.publishLocked()
		logging.Audit("mfa_abandoned")
		return &MFAResult{Message: msgMFAAbandoned, Abandoned: true},
			auth.NewError(auth.KindMfaInvalid, msgMFAAbandoned, err)
	}

	msg := serverMessage(err, msgMFARejected)
	m.state = StateMFAPending
	m.setErrorLocked(auth.KindMfaInvalid, msg)
	m.publishLocked()
	return &MFAResult{Message: msg, RemainingAttempts: m.mfaRemainingLocked()},
		auth.NewError(auth.KindMfaInvalid, msg, err)
}

// completeAuthentication fetches the profile for token, persists
// credentials and profile together, and enters Authenticated. Nothing is
// persisted when the profile cannot be fetched.
func (m *Manager) completeAuthentication(ctx context.Context, epoch uint64, token, refreshToken string, expiresIn int64) (*auth.User, error) {
	user, err := m.backend.Me(ctx, token)
	if err != nil {
		return nil, m.authFailedAfterToken(epoch, "Signed in, but the user profile could not be loaded.", err)
	}

	creds := credstore.Credentials{
		AccessToken:  credstore.NewSecret(token),
		RefreshToken: credstore.NewSecret(refreshToken),
		Expiry:       m.deriveExpiry(token, expiresIn),
	}

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return nil, auth.NewError(auth.KindNotAuthenticated, msgLoginCancelled, nil)
	}
	m.mu.Unlock()

	if err := m.store.Save(ctx, credstore.Record{Credentials: creds, User: user}); err != nil {
		return nil, m.authFailedAfterToken(epoch, "Signed in, but the credentials could not be saved.", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		// A logout overtook us between Save and here.
		m.settleOvertakenWriteLocked()
		return nil, auth.NewError(auth.KindNotAuthenticated, msgLoginCancelled, nil)
	}
	m.enterAuthenticatedLocked(user, creds)
	return user.Clone(), nil
}

// confirmWrite checks after a store write that the session of epoch is
// still the current one. When a logout got in between, the store is put
// back to what the current session expects and NotAuthenticated returned.
func (m *Manager) confirmWrite(epoch uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch == epoch {
		return nil
	}
	m.settleOvertakenWriteLocked()
	return auth.NewError(auth.KindNotAuthenticated, msgNotAuthenticated, nil)
}

// settleOvertakenWriteLocked undoes a store write that landed after a
// logout: the store is cleared, or rewritten for the session that has
// since been established.
// REQUIRES: m.mu held.
func (m *Manager) settleOvertakenWriteLocked() {
	ctx := context.Background()
	var err error
	if m.user == nil {
		err = m.store.Clear(ctx)
	} else {
		err = m.store.Save(ctx, credstore.Record{Credentials: m.creds, User: m.user})
	}
	if err != nil {
		logging.Warn("Session", "Failed to restore credentials after an overtaken write: %v", err)
	}
}

func (m *Manager) authFailedAfterToken(epoch uint64, msg string, cause error) error {
	kind := auth.KindUnknown
	if backend.IsNetworkOrServer(cause) {
		kind = auth.KindNetworkOrServer
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		return auth.NewError(auth.KindNotAuthenticated, msgLoginCancelled, cause)
	}
	m.clearMFALocked()
	m.state = StateError
	m.setErrorLocked(kind, msg)
	m.publishLocked()
	logging.Error("Session", cause, "Authentication could not be completed")
	return auth.NewError(kind, msg, cause)
}

// enterAuthenticatedLocked installs user and creds and starts renewal.
// REQUIRES: m.mu held, no scheduler running.
func (m *Manager) enterAuthenticatedLocked(user *auth.User, creds credstore.Credentials) {
	m.attempts.reset()
	m.clearMFALocked()
	m.user = user
	m.creds = creds
	m.state = StateAuthenticated
	m.setErrorLocked(auth.KindUnknown, "")
	m.scheduler = startRenewalScheduler(m.clock, m.cfg.RenewalInterval, m.renewTick)
	m.publishLocked()
}

// deriveExpiry prefers the server's expires_in, then the JWT exp claim,
// then the configured default lifetime.
func (m *Manager) deriveExpiry(token string, expiresIn int64) time.Time {
	now := m.clock.Now()
	if expiresIn > 0 {
		return now.Add(time.Duration(expiresIn) * time.Second)
	}
	if exp, ok := idp.TokenExpiry(token); ok {
		return exp
	}
	return now.Add(m.cfg.DefaultTokenLifetime)
}

// Logout ends the session. The renewal scheduler is stopped before anything
// is cleared, the backend is notified best-effort and local credentials are
// removed. Calling Logout repeatedly is safe.
func (m *Manager) Logout(ctx context.Context) error {
	ctx, span := m.tracer.Start(ctx, "session.Logout")
	defer span.End()

	m.mu.Lock()
	m.quiesce++
	sched := m.detachSchedulerLocked()
	m.mu.Unlock()
	defer m.endQuiesce()
	sched.stop()

	m.mu.Lock()
	token := m.creds.AccessToken
	wasAuthenticated := m.user != nil
	m.resetLocked(StateAnonymous)
	if m.attempts.lock().Locked {
		m.state = StateLockedOut
	}
	m.epoch++
	m.publishLocked()
	m.mu.Unlock()

	if !token.IsEmpty() {
		if err := m.backend.Logout(ctx, token.Value()); err != nil {
			logging.Warn("Session", "Logout notification failed: %v", err)
		}
	}

	if err := m.store.Clear(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("clear credentials: %w", err)
	}
	if wasAuthenticated {
		logging.Audit("logout")
	}
	return nil
}

// Restore rehydrates a persisted session. Valid credentials with a stored
// profile authenticate immediately without a network call. Expired
// credentials are renewed silently through the identity provider, and
// cleared when that fails.
func (m *Manager) Restore(ctx context.Context) error {
	ctx, span := m.tracer.Start(ctx, "session.Restore")
	defer span.End()

	m.mu.Lock()
	if m.inFlight || m.user != nil || m.quiesce > 0 {
		m.mu.Unlock()
		return nil
	}
	m.inFlight = true
	epoch := m.epoch
	m.mu.Unlock()
	defer m.endFlight()

	rec, err := m.store.Load(ctx)
	switch {
	case errors.Is(err, credstore.ErrNotFound):
		return nil
	case errors.Is(err, credstore.ErrCorrupt):
		logging.Warn("Session", "Discarding unreadable stored credentials: %v", err)
		return m.store.Clear(ctx)
	case err != nil:
		return fmt.Errorf("load credentials: %w", err)
	}

	if !rec.Complete() {
		logging.Info("Session", "Stored credentials are incomplete, clearing")
		return m.store.Clear(ctx)
	}

	creds := rec.Credentials
	if creds.Expired(m.clock.Now()) {
		tok, err := m.renewSilently(ctx)
		if err != nil {
			logging.Info("Session", "Stored session expired and could not be renewed: %v", err)
			m.mu.Lock()
			if m.epoch == epoch {
				m.setErrorLocked(auth.KindTokenRenewalFailed, msgSessionExpired)
				m.publishLocked()
			}
			m.mu.Unlock()
			return m.store.Clear(ctx)
		}
		creds.AccessToken = tok.AccessToken
		creds.Expiry = tok.ExpiresAt
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch || m.user != nil {
		return nil
	}
	m.enterAuthenticatedLocked(rec.User, creds)
	logging.Info("Session", "Restored session for %s", rec.User.Email)
	return nil
}

func (m *Manager) renewSilently(ctx context.Context) (*idp.Token, error) {
	if m.idp == nil {
		return nil, errors.New("no identity provider configured")
	}
	return m.idp.AcquireTokenSilent(ctx)
}

// renewTick runs on every scheduler tick. It renews once the in-memory
// expiry has passed; a failed renewal ends the session.
func (m *Manager) renewTick(ctx context.Context, sched *renewalScheduler) bool {
	m.mu.Lock()
	if m.scheduler != sched || m.user == nil {
		m.mu.Unlock()
		return false
	}
	expiry := m.creds.Expiry
	if expiry.IsZero() || m.clock.Now().Before(expiry) {
		m.mu.Unlock()
		return true
	}
	m.mu.Unlock()

	ctx, span := m.tracer.Start(ctx, "session.Renew")
	defer span.End()

	tok, err := m.renewSilently(ctx)
	if ctx.Err() != nil {
		return false
	}

	m.mu.Lock()
	if m.scheduler != sched {
		m.mu.Unlock()
		return false
	}

	if err == nil {
		m.creds.AccessToken = tok.AccessToken
		m.creds.Expiry = tok.ExpiresAt
		m.publishLocked()
		m.mu.Unlock()
		logging.Info("Session", "Access token renewed, next expiry %s", tok.ExpiresAt.Format(time.RFC3339))
		return true
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, "renewal failed")

	// Detach ourselves; the goroutine exits when we return false.
	m.scheduler = nil
	m.quiesce++
	defer m.endQuiesce()
	token := m.creds.AccessToken
	m.resetLocked(StateAnonymous)
	m.epoch++
	m.setErrorLocked(auth.KindTokenRenewalFailed, msgSessionExpired)
	m.publishLocked()
	m.mu.Unlock()

	logging.Warn("Session", "Token renewal failed, ending session: %v", err)
	logging.Audit("session_expired")

	bg, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if !token.IsEmpty() {
		if err := m.backend.Logout(bg, token.Value()); err != nil {
			logging.Debug("Session", "Logout notification after expiry failed: %v", err)
		}
	}
	if err := m.store.Clear(bg); err != nil {
		logging.Error("Session", err, "Failed to clear credentials after expiry")
	}
	return false
}

// Subscribe returns a channel that receives a Snapshot after every state
// change. Only the latest snapshot is buffered; slow readers miss
// intermediate states. Call the returned function to unsubscribe.
func (m *Manager) Subscribe() (<-chan Snapshot, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSubID
	m.nextSubID++
	ch := make(chan Snapshot, 1)
	m.subscribers[id] = ch
	ch <- m.snapshotLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subscribers, id)
			close(ch)
		})
	}
}

// Close stops background renewal without clearing anything.
func (m *Manager) Close() {
	m.mu.Lock()
	sched := m.detachSchedulerLocked()
	m.mu.Unlock()
	sched.stop()
}

// REQUIRES: m.mu held.
func (m *Manager) publishLocked() {
	if len(m.subscribers) == 0 {
		return
	}
	snap := m.snapshotLocked()
	for _, ch := range m.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// REQUIRES: m.mu held.
func (m *Manager) snapshotLocked() Snapshot {
	lock := m.attempts.lock()
	if m.state == StateLockedOut && !lock.Locked {
		m.state = StateAnonymous
		if m.errKind == auth.KindAccountLocked {
			m.setErrorLocked(auth.KindUnknown, "")
		}
	}
	return Snapshot{
		State:          m.state,
		User:           m.user.Clone(),
		MFARequired:    m.state == StateMFAPending,
		Error:          m.errMsg,
		ErrorKind:      m.errKind,
		Lock:           lock,
		FailedAttempts: m.attempts.failures(),
		TokenExpiry:    m.creds.Expiry,
		Sessions:       append([]auth.Session(nil), m.sessions...),
	}
}

// resetLocked drops user, credentials and challenge and enters state. The
// detached scheduler is returned so the caller can stop it outside the lock.
// REQUIRES: m.mu held.
func (m *Manager) resetLocked(state State) *renewalScheduler {
	sched := m.detachSchedulerLocked()
	m.user = nil
	m.creds = credstore.Credentials{}
	m.sessions = nil
	m.clearMFALocked()
	m.state = state
	m.setErrorLocked(auth.KindUnknown, "")
	return sched
}

// REQUIRES: m.mu held.
func (m *Manager) detachSchedulerLocked() *renewalScheduler {
	sched := m.scheduler
	m.scheduler = nil
	return sched
}

// REQUIRES: m.mu held.
func (m *Manager) clearMFALocked() {
	m.mfaToken = ""
	m.mfaFailures = 0
}

// REQUIRES: m.mu held.
func (m *Manager) setErrorLocked(kind auth.Kind, msg string) {
	m.errKind = kind
	m.errMsg = msg
}

// REQUIRES: m.mu held.
func (m *Manager) mfaRemainingLocked() int {
	if m.cfg.MFA.MaxAttempts <= 0 {
		return -1
	}
	if r := m.cfg.MFA.MaxAttempts - m.mfaFailures; r > 0 {
		return r
	}
	return 0
}

func (m *Manager) endFlight() {
	m.mu.Lock()
	m.inFlight = false
	m.mu.Unlock()
}

func (m *Manager) endQuiesce() {
	m.mu.Lock()
	m.quiesce--
	m.mu.Unlock()
}

// serverMessage returns the backend's own explanation when it sent one.
func serverMessage(err error, fallback string) string {
	var ae *backend.APIError
	if errors.As(err, &ae) && ae.Message != "" && ae.Message != http.StatusText(ae.Status) {
		return ae.Message
	}
	return fallback
}

func validMFACode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

func lockedMessage(lock auth.AccountLock, now time.Time) string {
	minutes := int(math.Ceil(lock.Remaining(now).Minutes()))
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("Too many failed login attempts. The account is locked for %d more minute(s).", minutes)
}

func lockedError(lock auth.AccountLock, msg string) error {
	e := auth.NewError(auth.KindAccountLocked, msg, nil)
	e.Until = lock.Until
	return e
}
