package http

import (
	"context"
	"time"

	"github.com/go-auth-core/internal/domain"
	"github.com/go-auth-core/internal/infrastructure/google"
)

// AccountRepository is the minimal interface the router requires from the
// account store. It is the union of what the services behind the routes need.
type AccountRepository interface {
	Put(ctx context.Context, a *domain.Account) error
	Get(ctx context.Context, accountID string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	Update(ctx context.Context, accountID string, updates map[string]interface{}) error
}

// SessionRepository is the minimal interface the router requires from the
// session store.
type SessionRepository interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	ListByAccount(ctx context.Context, accountID string) ([]domain.Session, error)
	Update(ctx context.Context, sessionID string, updates map[string]interface{}) error
	Delete(ctx context.Context, sessionID string) error
	DeleteExpired(ctx context.Context, accountID string, now time.Time) error
	GetByRefreshToken(ctx context.Context, token string) (*domain.Session, error)
	RotateRefreshToken(ctx context.Context, sessionID, newToken string, newExpiry time.Time) error
}

// OtpRepository is the minimal interface the router requires from the
// passcode store.
type OtpRepository interface {
	Put(ctx context.Context, o *domain.OneTimePasscode) error
	ListCandidates(ctx context.Context, accountID, code string, purpose domain.OtpPurpose, nowUnix int64) ([]domain.OneTimePasscode, error)
	ListByPurpose(ctx context.Context, accountID string, purpose domain.OtpPurpose, nowUnix int64) ([]domain.OneTimePasscode, error)
	MarkUsed(ctx context.Context, accountID, otpID string) error
	IncrementAttempts(ctx context.Context, accountID, otpID string) error
}

// ExternalLoginRepository is the minimal interface the router requires from
// the provider-identity store.
type ExternalLoginRepository interface {
	Put(ctx context.Context, l *domain.ExternalLogin) error
	Get(ctx context.Context, accountID, loginKey string) (*domain.ExternalLogin, error)
	ListByAccount(ctx context.Context, accountID string) ([]domain.ExternalLogin, error)
	GetByLoginKey(ctx context.Context, loginKey string) (*domain.ExternalLogin, error)
	DeleteByProvider(ctx context.Context, accountID, provider string) error
}

// BlacklistStore is the shared-cache surface: written on revocation, read by
// the auth middleware on every request.
type BlacklistStore interface {
	BlacklistSession(ctx context.Context, sessionID string, ttl time.Duration) error
	SessionBlacklisted(ctx context.Context, sessionID string) (bool, error)
}

// EventPublisher pushes lifecycle events onto the bus.
type EventPublisher interface {
	Publish(ctx context.Context, eventType, key string, payload any) error
}

// GoogleVerifier validates Google ID tokens.
type GoogleVerifier interface {
	Verify(ctx context.Context, token string) (*google.Payload, error)
}
