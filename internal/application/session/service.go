package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-auth-core/internal/domain"
	"github.com/go-auth-core/internal/pkg/id"
	pkgtoken "github.com/go-auth-core/internal/pkg/token"
	"github.com/go-auth-core/internal/pkg/validate"
	"golang.org/x/crypto/bcrypt"
)

// AccountStore is the slice of account persistence this service needs.
type AccountStore interface {
	Get(ctx context.Context, accountID string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	Update(ctx context.Context, accountID string, updates map[string]interface{}) error
}

type SessionStore interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	ListByAccount(ctx context.Context, accountID string) ([]domain.Session, error)
	Update(ctx context.Context, sessionID string, updates map[string]interface{}) error
	Delete(ctx context.Context, sessionID string) error
	DeleteExpired(ctx context.Context, accountID string, now time.Time) error
	GetByRefreshToken(ctx context.Context, token string) (*domain.Session, error)
	RotateRefreshToken(ctx context.Context, sessionID, newToken string, newExpiry time.Time) error
}

// Blacklist is the shared cache surface that downstream gateways consult.
type Blacklist interface {
	BlacklistSession(ctx context.Context, sessionID string, ttl time.Duration) error
}

type TokenSigner interface {
	Sign(accountID, role, sessionID string) (string, error)
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResult struct {
	Bearer       string
	RefreshToken string
	Session      *domain.Session
}

type Service interface {
	Login(ctx context.Context, req LoginRequest, ip, userAgent string) (*LoginResult, error)
	Create(ctx context.Context, accountID, ip, userAgent string) (*domain.Session, error)
	Revoke(ctx context.Context, callerAccountID, sessionID string) error
	Remove(ctx context.Context, accountID, sessionID string) error
	ClearExpired(ctx context.Context, accountID string) error
	List(ctx context.Context, accountID string) ([]domain.Session, error)
	Refresh(ctx context.Context, refreshToken string) (bearer, newRefreshToken string, err error)
}

type ServiceDeps struct {
	AccountRepo     AccountStore
	SessionRepo     SessionStore
	Blacklist       Blacklist
	Signer          TokenSigner
	SessionExpiry   time.Duration
	BlacklistTTL    time.Duration
	MaxFailedLogins int
	LockoutDuration time.Duration
}

type service struct {
	accountRepo     AccountStore
	sessionRepo     SessionStore
	blacklist       Blacklist
	signer          TokenSigner
	sessionExpiry   time.Duration
	blacklistTTL    time.Duration
	maxFailedLogins int
	lockoutDuration time.Duration
}

func NewService(deps ServiceDeps) Service {
	return &service{
		accountRepo:     deps.AccountRepo,
		sessionRepo:     deps.SessionRepo,
		blacklist:       deps.Blacklist,
		signer:          deps.Signer,
		sessionExpiry:   deps.SessionExpiry,
		blacklistTTL:    deps.BlacklistTTL,
		maxFailedLogins: deps.MaxFailedLogins,
		lockoutDuration: deps.LockoutDuration,
	}
}

// Login authenticates with email and password. The account guard runs before
// the credential check, so a banned or locked account is reported as such even
// when the password is wrong.
func (s *service) Login(ctx context.Context, req LoginRequest, ip, userAgent string) (*LoginResult, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", err, domain.ErrBadRequest)
	}
	a, err := s.accountRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	if err := domain.CheckAuthenticatable(a, time.Now().UTC()); err != nil {
		return nil, err
	}
	if a.PasswordHash == nil {
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*a.PasswordHash), []byte(req.Password)); err != nil {
		s.recordFailedLogin(ctx, a)
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	if a.AccessFailedCount > 0 || a.LockoutEnd != nil {
		if err := s.accountRepo.Update(ctx, a.AccountID, map[string]interface{}{
			"access_failed_count": 0,
			"lockout_end":         nil,
		}); err != nil {
			slog.Warn("failed to reset lockout counters", "account_id", a.AccountID, "err", err)
		}
	}
	sess, err := s.Create(ctx, a.AccountID, ip, userAgent)
	if err != nil {
		return nil, err
	}
	bearer, err := s.signer.Sign(a.AccountID, a.PrimaryRole(), sess.SessionID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Bearer: bearer, RefreshToken: sess.RefreshToken, Session: sess}, nil
}

// recordFailedLogin bumps the failure counter; crossing the threshold starts
// a lockout window and resets the counter for the next window.
func (s *service) recordFailedLogin(ctx context.Context, a *domain.Account) {
	newCount := a.AccessFailedCount + 1
	updates := map[string]interface{}{
		"access_failed_count": newCount,
	}
	if newCount >= s.maxFailedLogins {
		updates["access_failed_count"] = 0
		updates["lockout_end"] = time.Now().UTC().Add(s.lockoutDuration)
	}
	if err := s.accountRepo.Update(ctx, a.AccountID, updates); err != nil {
		slog.Warn("failed to record failed login", "account_id", a.AccountID, "err", err)
	}
}

func (s *service) Create(ctx context.Context, accountID, ip, userAgent string) (*domain.Session, error) {
	refreshToken, err := pkgtoken.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sess := &domain.Session{
		SessionID:    id.New(),
		AccountID:    accountID,
		RefreshToken: refreshToken,
		IPAddress:    ip,
		UserAgent:    userAgent,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.sessionExpiry),
	}
	if err := s.sessionRepo.Put(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Revoke marks a session unusable. A session that does not exist or belongs
// to a different account is reported not found, with no mutation. The revoked
// flag is persisted first and the blacklist entry written second; if the
// second step fails, tokens bound to the session stay valid until they expire
// on their own.
func (s *service) Revoke(ctx context.Context, callerAccountID, sessionID string) error {
	sess, err := s.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.AccountID != callerAccountID {
		return fmt.Errorf("session not found: %w", domain.ErrNotFound)
	}
	if err := s.sessionRepo.Update(ctx, sessionID, map[string]interface{}{
		"revoked": true,
	}); err != nil {
		return err
	}
	if err := s.blacklist.BlacklistSession(ctx, sessionID, s.blacklistTTL); err != nil {
		slog.Warn("failed to blacklist revoked session", "session_id", sessionID, "err", err)
	}
	return nil
}

// Remove is the logout path: delete the session row, then opportunistically
// sweep the account's expired sessions. Removing a session that is already
// gone succeeds quietly.
func (s *service) Remove(ctx context.Context, accountID, sessionID string) error {
	sess, err := s.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			slog.Warn("logout for unknown session", "session_id", sessionID, "account_id", accountID)
			return nil
		}
		return err
	}
	if sess.AccountID == accountID {
		if err := s.sessionRepo.Delete(ctx, sessionID); err != nil {
			return err
		}
	}
	return s.ClearExpired(ctx, accountID)
}

func (s *service) ClearExpired(ctx context.Context, accountID string) error {
	return s.sessionRepo.DeleteExpired(ctx, accountID, time.Now().UTC())
}

func (s *service) List(ctx context.Context, accountID string) ([]domain.Session, error) {
	return s.sessionRepo.ListByAccount(ctx, accountID)
}

// Refresh exchanges a refresh token for a new bearer, rotating the token.
// Revoked and expired sessions are rejected, as are accounts that can no
// longer authenticate.
func (s *service) Refresh(ctx context.Context, refreshToken string) (string, string, error) {
	sess, err := s.sessionRepo.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		return "", "", fmt.Errorf("invalid refresh token: %w", domain.ErrUnauthorized)
	}
	now := time.Now().UTC()
	if !sess.Usable(now) {
		return "", "", fmt.Errorf("session expired or revoked: %w", domain.ErrUnauthorized)
	}
	a, err := s.accountRepo.Get(ctx, sess.AccountID)
	if err != nil {
		return "", "", err
	}
	if err := domain.CheckAuthenticatable(a, now); err != nil {
		return "", "", err
	}
	newToken, err := pkgtoken.NewRefreshToken()
	if err != nil {
		return "", "", err
	}
	if err := s.sessionRepo.RotateRefreshToken(ctx, sess.SessionID, newToken, now.Add(s.sessionExpiry)); err != nil {
		return "", "", err
	}
	bearer, err := s.signer.Sign(a.AccountID, a.PrimaryRole(), sess.SessionID)
	if err != nil {
		return "", "", err
	}
	return bearer, newToken, nil
}
