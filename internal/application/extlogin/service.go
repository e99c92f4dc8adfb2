package extlogin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-auth-core/internal/domain"
	"github.com/go-auth-core/internal/infrastructure/google"
	"github.com/go-auth-core/internal/pkg/id"
)

const ProviderGoogle = "google"

// ExternalLoginStore is the persistence surface this service needs.
type ExternalLoginStore interface {
	Put(ctx context.Context, l *domain.ExternalLogin) error
	Get(ctx context.Context, accountID, loginKey string) (*domain.ExternalLogin, error)
	ListByAccount(ctx context.Context, accountID string) ([]domain.ExternalLogin, error)
	GetByLoginKey(ctx context.Context, loginKey string) (*domain.ExternalLogin, error)
	DeleteByProvider(ctx context.Context, accountID, provider string) error
}

type AccountStore interface {
	Get(ctx context.Context, accountID string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	Put(ctx context.Context, a *domain.Account) error
}

// GoogleVerifier validates a Google ID token and returns its claims.
// Satisfied by the idtoken-backed verifier in infrastructure/google.
type GoogleVerifier interface {
	Verify(ctx context.Context, token string) (*google.Payload, error)
}

// SessionCreator is the slice of the session service used after a successful
// provider login.
type SessionCreator interface {
	Create(ctx context.Context, accountID, ip, userAgent string) (*domain.Session, error)
}

type TokenSigner interface {
	Sign(accountID, role, sessionID string) (string, error)
}

type GoogleLoginResult struct {
	Bearer       string
	RefreshToken string
	Session      *domain.Session
	Account      *domain.Account
}

type Service interface {
	Link(ctx context.Context, accountID, provider, providerKey, displayName string) error
	Unlink(ctx context.Context, accountID, provider string) error
	List(ctx context.Context, accountID string) ([]domain.ExternalLogin, error)
	LoginWithGoogle(ctx context.Context, idToken, ip, userAgent string) (*GoogleLoginResult, error)
}

type ServiceDeps struct {
	LoginRepo   ExternalLoginStore
	AccountRepo AccountStore
	Verifier    GoogleVerifier
	Sessions    SessionCreator
	Signer      TokenSigner
	// AllowUnlinkLastCredential permits removing the account's only remaining
	// way to sign in.
	AllowUnlinkLastCredential bool
}

type service struct {
	loginRepo       ExternalLoginStore
	accountRepo     AccountStore
	verifier        GoogleVerifier
	sessions        SessionCreator
	signer          TokenSigner
	allowUnlinkLast bool
}

func NewService(deps ServiceDeps) Service {
	return &service{
		loginRepo:       deps.LoginRepo,
		accountRepo:     deps.AccountRepo,
		verifier:        deps.Verifier,
		sessions:        deps.Sessions,
		signer:          deps.Signer,
		allowUnlinkLast: deps.AllowUnlinkLastCredential,
	}
}

// Link binds an external identity to the account. Linking a pair the account
// already has succeeds without a write; a pair owned by another account is a
// conflict.
func (s *service) Link(ctx context.Context, accountID, provider, providerKey, displayName string) error {
	if provider == "" || providerKey == "" {
		return fmt.Errorf("provider and provider key required: %w", domain.ErrBadRequest)
	}
	key := domain.ExternalLoginKey(provider, providerKey)
	if _, err := s.loginRepo.Get(ctx, accountID, key); err == nil {
		return nil
	}
	owner, err := s.loginRepo.GetByLoginKey(ctx, key)
	if err == nil && owner.AccountID != accountID {
		return fmt.Errorf("external identity already linked elsewhere: %w", domain.ErrConflict)
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return s.loginRepo.Put(ctx, &domain.ExternalLogin{
		AccountID:   accountID,
		LoginKey:    key,
		Provider:    provider,
		ProviderKey: providerKey,
		DisplayName: displayName,
	})
}

// Unlink removes the account's login for the given provider. Reports not
// found when there is nothing to remove. When configured, refuses to strand
// an account by removing its only remaining credential.
func (s *service) Unlink(ctx context.Context, accountID, provider string) error {
	if !s.allowUnlinkLast {
		a, err := s.accountRepo.Get(ctx, accountID)
		if err != nil {
			return err
		}
		if a.PasswordHash == nil {
			logins, err := s.loginRepo.ListByAccount(ctx, accountID)
			if err != nil {
				return err
			}
			if len(logins) <= 1 {
				return fmt.Errorf("cannot remove last credential: %w", domain.ErrConflict)
			}
		}
	}
	return s.loginRepo.DeleteByProvider(ctx, accountID, provider)
}

func (s *service) List(ctx context.Context, accountID string) ([]domain.ExternalLogin, error) {
	return s.loginRepo.ListByAccount(ctx, accountID)
}

// LoginWithGoogle verifies a Google ID token and signs the bearer in. The
// account is resolved by linked identity first, then by verified email; a
// brand-new identity gets a password-less account.
func (s *service) LoginWithGoogle(ctx context.Context, idToken, ip, userAgent string) (*GoogleLoginResult, error) {
	p, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		return nil, err
	}
	a, err := s.resolveAccount(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := domain.CheckAuthenticatable(a, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := s.Link(ctx, a.AccountID, ProviderGoogle, p.Sub, p.Email); err != nil {
		return nil, err
	}
	sess, err := s.sessions.Create(ctx, a.AccountID, ip, userAgent)
	if err != nil {
		return nil, err
	}
	bearer, err := s.signer.Sign(a.AccountID, a.PrimaryRole(), sess.SessionID)
	if err != nil {
		return nil, err
	}
	return &GoogleLoginResult{
		Bearer:       bearer,
		RefreshToken: sess.RefreshToken,
		Session:      sess,
		Account:      a,
	}, nil
}

func (s *service) resolveAccount(ctx context.Context, p *google.Payload) (*domain.Account, error) {
	key := domain.ExternalLoginKey(ProviderGoogle, p.Sub)
	if l, err := s.loginRepo.GetByLoginKey(ctx, key); err == nil {
		return s.accountRepo.Get(ctx, l.AccountID)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if p.EmailVerified {
		if a, err := s.accountRepo.GetByEmail(ctx, p.Email); err == nil {
			return a, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	return s.createAccount(ctx, p)
}

// createAccount provisions a password-less account for a first-time provider
// login. A Google-verified email counts as verified here too.
func (s *service) createAccount(ctx context.Context, p *google.Payload) (*domain.Account, error) {
	if p.Email == "" {
		return nil, fmt.Errorf("google token carries no email: %w", domain.ErrBadRequest)
	}
	now := time.Now().UTC()
	a := &domain.Account{
		AccountID:     id.New(),
		Email:         p.Email,
		FirstName:     p.FirstName,
		LastName:      p.LastName,
		EmailVerified: p.EmailVerified,
		Status:        domain.StatusPendingEmail,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if p.EmailVerified {
		a.Status = domain.StatusActive
	}
	if err := s.accountRepo.Put(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}
