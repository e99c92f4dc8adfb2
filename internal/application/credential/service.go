package credential

import (
	"context"
	"fmt"
	"time"

	"github.com/go-auth-core/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 8

// AccountStore is the persistence surface this service needs.
type AccountStore interface {
	Get(ctx context.Context, accountID string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	Update(ctx context.Context, accountID string, updates map[string]interface{}) error
}

// OtpEngine is the slice of the passcode service used for reset codes.
type OtpEngine interface {
	Issue(ctx context.Context, accountID, email string, purpose domain.OtpPurpose, ttl time.Duration) (*domain.OneTimePasscode, error)
	Redeem(ctx context.Context, accountID, code string, purpose domain.OtpPurpose) error
}

type Service interface {
	ChangePassword(ctx context.Context, accountID, oldPassword, newPassword string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) error
}

type ServiceDeps struct {
	AccountRepo AccountStore
	Otp         OtpEngine
	OtpExpiry   time.Duration
}

type service struct {
	accountRepo AccountStore
	otp         OtpEngine
	otpExpiry   time.Duration
}

func NewService(deps ServiceDeps) Service {
	return &service{
		accountRepo: deps.AccountRepo,
		otp:         deps.Otp,
		otpExpiry:   deps.OtpExpiry,
	}
}

// ChangePassword replaces the credential after proving the old one. A
// successful change also clears any accumulated lockout state.
func (s *service) ChangePassword(ctx context.Context, accountID, oldPassword, newPassword string) error {
	a, err := s.accountRepo.Get(ctx, accountID)
	if err != nil {
		return err
	}
	if a.PasswordHash == nil {
		return fmt.Errorf("account has no password: %w", domain.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*a.PasswordHash), []byte(oldPassword)); err != nil {
		return fmt.Errorf("wrong password: %w", domain.ErrUnauthorized)
	}
	return s.setPassword(ctx, accountID, newPassword)
}

// RequestPasswordReset issues a reset code. It always reports success so
// callers cannot probe which emails are registered; unknown, suspended and
// deleted accounts silently get no code.
func (s *service) RequestPasswordReset(ctx context.Context, email string) error {
	a, err := s.accountRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil
	}
	if a.Status == domain.StatusSuspended || a.Status == domain.StatusDeleted {
		return nil
	}
	_, err = s.otp.Issue(ctx, a.AccountID, a.Email, domain.OtpPasswordReset, s.otpExpiry)
	return err
}

// ConfirmPasswordReset redeems a reset code and installs the new password.
func (s *service) ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) error {
	a, err := s.accountRepo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := s.otp.Redeem(ctx, a.AccountID, code, domain.OtpPasswordReset); err != nil {
		return err
	}
	return s.setPassword(ctx, a.AccountID, newPassword)
}

func (s *service) setPassword(ctx context.Context, accountID, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return fmt.Errorf("password too short: %w", domain.ErrBadRequest)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.accountRepo.Update(ctx, accountID, map[string]interface{}{
		"password_hash":       string(hash),
		"access_failed_count": 0,
		"lockout_end":         nil,
	})
}
