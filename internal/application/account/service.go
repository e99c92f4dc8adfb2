package account

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-auth-core/internal/domain"
	"github.com/go-auth-core/internal/pkg/id"
	"github.com/go-auth-core/internal/pkg/validate"
	"golang.org/x/crypto/bcrypt"
)

// AccountStore is the persistence surface this service needs.
type AccountStore interface {
	Put(ctx context.Context, a *domain.Account) error
	Get(ctx context.Context, accountID string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	Update(ctx context.Context, accountID string, updates map[string]interface{}) error
}

// EventPublisher pushes lifecycle events onto the bus after the state change
// has been persisted.
type EventPublisher interface {
	Publish(ctx context.Context, eventType, key string, payload any) error
}

// OtpEngine is the slice of the passcode service used for contact-point
// confirmation codes.
type OtpEngine interface {
	Issue(ctx context.Context, accountID, destination string, purpose domain.OtpPurpose, ttl time.Duration) (*domain.OneTimePasscode, error)
	RedeemStrict(ctx context.Context, accountID, code string, purpose domain.OtpPurpose) error
}

// VerificationChannel selects which contact point a code confirms.
type VerificationChannel string

const (
	ChannelEmail VerificationChannel = "email"
	ChannelPhone VerificationChannel = "phone"
)

type AssignRoleRequest struct {
	AppID    string `json:"app_id" validate:"required"`
	RoleID   string `json:"role_id" validate:"required"`
	RoleName string `json:"role_name" validate:"required"`
}

type Service interface {
	Create(ctx context.Context, req domain.CreateAccountRequest) (*domain.Account, error)
	Get(ctx context.Context, accountID string) (*domain.Account, error)
	SetStatus(ctx context.Context, accountID string, newStatus domain.Status, performedBy *string) error
	SoftDelete(ctx context.Context, accountID string, performedBy *string) error
	SetEmailVerified(ctx context.Context, accountID string, verified bool) error
	SetPhoneVerified(ctx context.Context, accountID string, verified bool) error
	UpdateContact(ctx context.Context, accountID string, channel VerificationChannel, value string) error
	ResetAccessFailedCount(ctx context.Context, accountID string) error
	AssignRole(ctx context.Context, accountID string, req AssignRoleRequest, performedBy *string) error
	RequestVerification(ctx context.Context, accountID string, channel VerificationChannel) error
	ConfirmVerification(ctx context.Context, accountID string, channel VerificationChannel, code string) error
}

type ServiceDeps struct {
	AccountRepo AccountStore
	Publisher   EventPublisher
	Otp         OtpEngine
	OtpExpiry   time.Duration
}

type service struct {
	accountRepo AccountStore
	publisher   EventPublisher
	otp         OtpEngine
	otpExpiry   time.Duration
}

func NewService(deps ServiceDeps) Service {
	return &service{
		accountRepo: deps.AccountRepo,
		publisher:   deps.Publisher,
		otp:         deps.Otp,
		otpExpiry:   deps.OtpExpiry,
	}
}

func (s *service) Create(ctx context.Context, req domain.CreateAccountRequest) (*domain.Account, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", err, domain.ErrBadRequest)
	}
	if _, err := s.accountRepo.GetByEmail(ctx, req.Email); err == nil {
		return nil, fmt.Errorf("email already registered: %w", domain.ErrConflict)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	hashStr := string(hash)
	now := time.Now().UTC()
	a := &domain.Account{
		AccountID:    id.New(),
		Email:        req.Email,
		Phone:        req.Phone,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: &hashStr,
		Status:       domain.StatusPendingAccountVerification,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.accountRepo.Put(ctx, a); err != nil {
		return nil, err
	}
	s.publish(ctx, domain.EventAccountRegistered, a.AccountID, domain.AccountRegistered{
		AccountID:  a.AccountID,
		Email:      a.Email,
		OccurredAt: now,
	})
	return a, nil
}

func (s *service) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	return s.accountRepo.Get(ctx, accountID)
}

// SetStatus transitions the account and announces the change. Setting the
// status it already has is a no-op: no write, no event.
func (s *service) SetStatus(ctx context.Context, accountID string, newStatus domain.Status, performedBy *string) error {
	a, err := s.accountRepo.Get(ctx, accountID)
	if err != nil {
		return err
	}
	if a.Status == newStatus {
		return nil
	}
	if err := s.accountRepo.Update(ctx, accountID, map[string]interface{}{
		"status": string(newStatus),
	}); err != nil {
		return err
	}
	s.publish(ctx, domain.EventAccountStatusChanged, accountID, domain.AccountStatusChanged{
		AccountID:   accountID,
		OldStatus:   a.Status,
		NewStatus:   newStatus,
		PerformedBy: performedBy,
		OccurredAt:  time.Now().UTC(),
	})
	return nil
}

// SoftDelete marks the account Deleted. Sealed accounts cannot be removed.
func (s *service) SoftDelete(ctx context.Context, accountID string, performedBy *string) error {
	a, err := s.accountRepo.Get(ctx, accountID)
	if err != nil {
		return err
	}
	if a.Sealed {
		return fmt.Errorf("account is sealed: %w", domain.ErrConflict)
	}
	return s.SetStatus(ctx, accountID, domain.StatusDeleted, performedBy)
}

func (s *service) SetEmailVerified(ctx context.Context, accountID string, verified bool) error {
	return s.setVerified(ctx, accountID, "email_verified", verified, func(a *domain.Account) { a.EmailVerified = verified })
}

func (s *service) SetPhoneVerified(ctx context.Context, accountID string, verified bool) error {
	return s.setVerified(ctx, accountID, "phone_verified", verified, func(a *domain.Account) { a.PhoneVerified = verified })
}

// setVerified sets one verification flag. Gaining a verification while the
// account is still in a pending-verification state moves it to the next state
// implied by the flags; clearing a flag never moves the status.
func (s *service) setVerified(ctx context.Context, accountID, field string, verified bool, apply func(*domain.Account)) error {
	a, err := s.accountRepo.Get(ctx, accountID)
	if err != nil {
		return err
	}
	apply(a)
	if err := s.accountRepo.Update(ctx, accountID, map[string]interface{}{
		field: verified,
	}); err != nil {
		return err
	}
	if !verified || !a.Status.PendingVerification() {
		return nil
	}
	return s.SetStatus(ctx, accountID, domain.NextStatusAfterVerification(a), nil)
}

// UpdateContact replaces one of the account's contact points. The new value is
// unconfirmed, so the matching verification flag drops back to false; a fresh
// code can be requested through RequestVerification.
func (s *service) UpdateContact(ctx context.Context, accountID string, channel VerificationChannel, value string) error {
	if value == "" {
		return fmt.Errorf("contact value required: %w", domain.ErrBadRequest)
	}
	a, err := s.accountRepo.Get(ctx, accountID)
	if err != nil {
		return err
	}
	switch channel {
	case ChannelEmail:
		if value == a.Email {
			return nil
		}
		if existing, err := s.accountRepo.GetByEmail(ctx, value); err == nil && existing.AccountID != accountID {
			return fmt.Errorf("email already registered: %w", domain.ErrConflict)
		}
		return s.accountRepo.Update(ctx, accountID, map[string]interface{}{
			"email":          value,
			"email_verified": false,
		})
	case ChannelPhone:
		if a.Phone != nil && value == *a.Phone {
			return nil
		}
		return s.accountRepo.Update(ctx, accountID, map[string]interface{}{
			"phone":          value,
			"phone_verified": false,
		})
	default:
		return fmt.Errorf("unknown verification channel %q: %w", channel, domain.ErrBadRequest)
	}
}

// ResetAccessFailedCount zeroes the failure counter and clears any lockout.
func (s *service) ResetAccessFailedCount(ctx context.Context, accountID string) error {
	return s.accountRepo.Update(ctx, accountID, map[string]interface{}{
		"access_failed_count": 0,
		"lockout_end":         nil,
	})
}

// AssignRole grants a role within one consuming application. Granting a role
// the account already holds is a no-op. Privileged grants are announced.
func (s *service) AssignRole(ctx context.Context, accountID string, req AssignRoleRequest, performedBy *string) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%s: %w", err, domain.ErrBadRequest)
	}
	a, err := s.accountRepo.Get(ctx, accountID)
	if err != nil {
		return err
	}
	for _, r := range a.Roles {
		if r.AppID == req.AppID && r.RoleID == req.RoleID {
			return nil
		}
	}
	roles := append(a.Roles, domain.RoleAssignment{
		AppID:    req.AppID,
		RoleID:   req.RoleID,
		RoleName: req.RoleName,
	})
	if err := s.accountRepo.Update(ctx, accountID, map[string]interface{}{
		"roles": roles,
	}); err != nil {
		return err
	}
	if domain.PrivilegedRole(req.RoleName) {
		s.publish(ctx, domain.EventRoleAssigned, accountID, domain.RoleAssigned{
			AccountID: accountID,
			AppID:     req.AppID,
			RoleID:    req.RoleID,
			RoleName:  req.RoleName,
		})
	}
	return nil
}

// RequestVerification issues a confirmation code for one of the account's
// contact points. The code travels as an OtpIssued event; requesting a phone
// code for an account without a phone on file is a bad request.
func (s *service) RequestVerification(ctx context.Context, accountID string, channel VerificationChannel) error {
	a, err := s.accountRepo.Get(ctx, accountID)
	if err != nil {
		return err
	}
	switch channel {
	case ChannelEmail:
		_, err = s.otp.Issue(ctx, a.AccountID, a.Email, domain.OtpEmailVerification, s.otpExpiry)
	case ChannelPhone:
		if a.Phone == nil {
			return fmt.Errorf("no phone on file: %w", domain.ErrBadRequest)
		}
		_, err = s.otp.Issue(ctx, a.AccountID, *a.Phone, domain.OtpPhoneVerification, s.otpExpiry)
	default:
		return fmt.Errorf("unknown verification channel %q: %w", channel, domain.ErrBadRequest)
	}
	return err
}

// ConfirmVerification redeems a confirmation code and flips the matching
// verification flag. Redemption is strict: wrong guesses count against the
// code and eventually burn it.
func (s *service) ConfirmVerification(ctx context.Context, accountID string, channel VerificationChannel, code string) error {
	switch channel {
	case ChannelEmail:
		if err := s.otp.RedeemStrict(ctx, accountID, code, domain.OtpEmailVerification); err != nil {
			return err
		}
		return s.SetEmailVerified(ctx, accountID, true)
	case ChannelPhone:
		if err := s.otp.RedeemStrict(ctx, accountID, code, domain.OtpPhoneVerification); err != nil {
			return err
		}
		return s.SetPhoneVerified(ctx, accountID, true)
	default:
		return fmt.Errorf("unknown verification channel %q: %w", channel, domain.ErrBadRequest)
	}
}

// publish is best effort: the state change is already durable, so a bus
// failure is logged and swallowed.
func (s *service) publish(ctx context.Context, eventType, key string, payload any) {
	if err := s.publisher.Publish(ctx, eventType, key, payload); err != nil {
		slog.Warn("failed to publish event", "type", eventType, "key", key, "err", err)
	}
}
