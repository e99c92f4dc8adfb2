package domain

import "time"

// Domain events published after the corresponding state change is persisted.
// Delivery is at-least-once; consumers must be idempotent.

// Event type names as they appear on the bus.
const (
	EventAccountRegistered    = "account.registered"
	EventAccountStatusChanged = "account.status_changed"
	EventOtpIssued            = "otp.issued"
	EventRoleAssigned         = "role.assigned"
)

type AccountRegistered struct {
	AccountID  string    `json:"account_id"`
	Email      string    `json:"email"`
	OccurredAt time.Time `json:"occurred_at"`
}

type AccountStatusChanged struct {
	AccountID   string    `json:"account_id"`
	OldStatus   Status    `json:"old_status"`
	NewStatus   Status    `json:"new_status"`
	PerformedBy *string   `json:"performed_by"` // nil for system-initiated transitions
	OccurredAt  time.Time `json:"occurred_at"`
}

type OtpIssued struct {
	AccountID string     `json:"account_id"`
	Email     string     `json:"email"`
	Code      string     `json:"code"`
	Purpose   OtpPurpose `json:"purpose"`
}

type RoleAssigned struct {
	AccountID string `json:"account_id"`
	AppID     string `json:"app_id"`
	RoleID    string `json:"role_id"`
	RoleName  string `json:"role_name"`
}
