package otp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-auth-core/internal/domain"
	"github.com/go-auth-core/internal/pkg/id"
	pkgtoken "github.com/go-auth-core/internal/pkg/token"
)

const codeDigits = 6

// OtpStore is the persistence surface this service needs.
type OtpStore interface {
	Put(ctx context.Context, o *domain.OneTimePasscode) error
	ListCandidates(ctx context.Context, accountID, code string, purpose domain.OtpPurpose, nowUnix int64) ([]domain.OneTimePasscode, error)
	ListByPurpose(ctx context.Context, accountID string, purpose domain.OtpPurpose, nowUnix int64) ([]domain.OneTimePasscode, error)
	MarkUsed(ctx context.Context, accountID, otpID string) error
	IncrementAttempts(ctx context.Context, accountID, otpID string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, eventType, key string, payload any) error
}

type Service interface {
	Issue(ctx context.Context, accountID, email string, purpose domain.OtpPurpose, ttl time.Duration) (*domain.OneTimePasscode, error)
	Redeem(ctx context.Context, accountID, code string, purpose domain.OtpPurpose) error
	RedeemStrict(ctx context.Context, accountID, code string, purpose domain.OtpPurpose) error
}

type ServiceDeps struct {
	OtpRepo     OtpStore
	Publisher   EventPublisher
	MaxAttempts int
}

type service struct {
	otpRepo     OtpStore
	publisher   EventPublisher
	maxAttempts int
}

func NewService(deps ServiceDeps) Service {
	return &service{
		otpRepo:     deps.OtpRepo,
		publisher:   deps.Publisher,
		maxAttempts: deps.MaxAttempts,
	}
}

// Issue mints a fresh 6-digit code. Outstanding codes for the same purpose are
// left alone; redemption resolves overlap deterministically.
func (s *service) Issue(ctx context.Context, accountID, email string, purpose domain.OtpPurpose, ttl time.Duration) (*domain.OneTimePasscode, error) {
	code, err := pkgtoken.NewNumericCode(codeDigits)
	if err != nil {
		return nil, err
	}
	o := &domain.OneTimePasscode{
		OtpID:     id.New(),
		AccountID: accountID,
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: time.Now().Add(ttl).Unix(),
	}
	if err := s.otpRepo.Put(ctx, o); err != nil {
		return nil, err
	}
	if err := s.publisher.Publish(ctx, domain.EventOtpIssued, accountID, domain.OtpIssued{
		AccountID: accountID,
		Email:     email,
		Code:      code,
		Purpose:   purpose,
	}); err != nil {
		slog.Warn("failed to publish otp event", "account_id", accountID, "purpose", purpose, "err", err)
	}
	return o, nil
}

// Redeem consumes a code. When several outstanding codes match, the one with
// the latest expiry wins (ties broken by most recent issue). The used flag is
// flipped with a conditional write, so under concurrent redemption exactly one
// caller succeeds; the loser sees the same error as a wrong code.
func (s *service) Redeem(ctx context.Context, accountID, code string, purpose domain.OtpPurpose) error {
	winner, err := s.findWinner(ctx, accountID, code, purpose)
	if err != nil {
		return err
	}
	return s.consume(ctx, winner)
}

// RedeemStrict behaves like Redeem but charges wrong guesses against the
// outstanding codes: each miss bumps their attempt counters, and a code that
// accumulates too many misses is burned.
func (s *service) RedeemStrict(ctx context.Context, accountID, code string, purpose domain.OtpPurpose) error {
	winner, err := s.findWinner(ctx, accountID, code, purpose)
	if err == nil {
		return s.consume(ctx, winner)
	}
	if !errors.Is(err, domain.ErrInvalidOrExpiredCode) {
		return err
	}
	outstanding, listErr := s.otpRepo.ListByPurpose(ctx, accountID, purpose, time.Now().Unix())
	if listErr != nil {
		return err
	}
	for i := range outstanding {
		o := &outstanding[i]
		if incErr := s.otpRepo.IncrementAttempts(ctx, accountID, o.OtpID); incErr != nil {
			slog.Warn("failed to count otp attempt", "account_id", accountID, "otp_id", o.OtpID, "err", incErr)
			continue
		}
		if o.Attempts+1 >= s.maxAttempts {
			if burnErr := s.otpRepo.MarkUsed(ctx, accountID, o.OtpID); burnErr != nil && !errors.Is(burnErr, domain.ErrConflict) {
				slog.Warn("failed to burn otp", "account_id", accountID, "otp_id", o.OtpID, "err", burnErr)
			}
		}
	}
	return err
}

// findWinner picks the redeemable candidate with the latest expiry. The store
// query already filters on used/expiry, but the check is repeated here so a
// stale read can never hand back a spent or expired code.
func (s *service) findWinner(ctx context.Context, accountID, code string, purpose domain.OtpPurpose) (*domain.OneTimePasscode, error) {
	now := time.Now()
	candidates, err := s.otpRepo.ListCandidates(ctx, accountID, code, purpose, now.Unix())
	if err != nil {
		return nil, err
	}
	var winner *domain.OneTimePasscode
	for i := range candidates {
		c := &candidates[i]
		if !c.Redeemable(now) {
			continue
		}
		if winner == nil || c.ExpiresAt > winner.ExpiresAt ||
			(c.ExpiresAt == winner.ExpiresAt && c.OtpID > winner.OtpID) {
			winner = c
		}
	}
	if winner == nil {
		return nil, fmt.Errorf("no matching code: %w", domain.ErrInvalidOrExpiredCode)
	}
	return winner, nil
}

func (s *service) consume(ctx context.Context, o *domain.OneTimePasscode) error {
	err := s.otpRepo.MarkUsed(ctx, o.AccountID, o.OtpID)
	if errors.Is(err, domain.ErrConflict) {
		// Lost the race: someone redeemed it first.
		return fmt.Errorf("code no longer valid: %w", domain.ErrInvalidOrExpiredCode)
	}
	return err
}
