package domain

import "time"

type Session struct {
	SessionID    string    `json:"id" dynamodbav:"session_id"`
	AccountID    string    `json:"account_id" dynamodbav:"account_id"`
	RefreshToken string    `json:"-" dynamodbav:"refresh_token"`
	IPAddress    string    `json:"ip_address,omitempty" dynamodbav:"ip_address"`
	UserAgent    string    `json:"user_agent,omitempty" dynamodbav:"user_agent"`
	Revoked      bool      `json:"revoked" dynamodbav:"revoked"`
	CreatedAt    time.Time `json:"created" dynamodbav:"created_at"`
	ExpiresAt    time.Time `json:"expires_at" dynamodbav:"expires_at"`
}

// Expired reports whether the session is past its expiry at now.
// Expired-but-unswept sessions are harmless: every authorization check must
// verify expiry independently.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt.Before(now)
}

// Usable reports whether the session may back an authenticated request.
// A revoked session is terminal; it can never become usable again.
func (s *Session) Usable(now time.Time) bool {
	return !s.Revoked && !s.Expired(now)
}
