package domain

import "time"

// OtpPurpose scopes a passcode to the single flow it may redeem.
type OtpPurpose string

const (
	OtpPasswordReset     OtpPurpose = "password_reset"
	OtpEmailVerification OtpPurpose = "email_verification"
	OtpPhoneVerification OtpPurpose = "phone_verification"
)

// OneTimePasscode is a short-lived single-use numeric credential.
// ExpiresAt is a Unix timestamp used as the DynamoDB TTL attribute, so stale
// codes age out of the table without a sweeper.
type OneTimePasscode struct {
	OtpID     string     `json:"id" dynamodbav:"otp_id"`
	AccountID string     `json:"account_id" dynamodbav:"account_id"`
	Code      string     `json:"-" dynamodbav:"code"`
	Purpose   OtpPurpose `json:"purpose" dynamodbav:"purpose"`
	ExpiresAt int64      `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix seconds)
	Used      bool       `json:"used" dynamodbav:"used"`
	Attempts  int        `json:"-" dynamodbav:"attempts"`
}

// Redeemable reports whether the code is still a valid redemption candidate.
func (o *OneTimePasscode) Redeemable(now time.Time) bool {
	return !o.Used && o.ExpiresAt >= now.Unix()
}
