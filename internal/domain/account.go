package domain

import "time"

type Account struct {
	AccountID         string           `json:"id" dynamodbav:"account_id"`
	Email             string           `json:"email" dynamodbav:"email"`
	Phone             *string          `json:"phone" dynamodbav:"phone"`
	FirstName         string           `json:"first_name" dynamodbav:"first_name"`
	LastName          string           `json:"last_name" dynamodbav:"last_name"`
	PasswordHash      *string          `json:"-" dynamodbav:"password_hash"` // nil for provider-only accounts
	Status            Status           `json:"status" dynamodbav:"status"`
	EmailVerified     bool             `json:"email_verified" dynamodbav:"email_verified"`
	PhoneVerified     bool             `json:"phone_verified" dynamodbav:"phone_verified"`
	AccessFailedCount int              `json:"-" dynamodbav:"access_failed_count"`
	LockoutEnd        *time.Time       `json:"-" dynamodbav:"lockout_end"`
	Sealed            bool             `json:"-" dynamodbav:"sealed"`
	Roles             []RoleAssignment `json:"roles,omitempty" dynamodbav:"roles"`
	CreatedAt         time.Time        `json:"created" dynamodbav:"created_at"`
	UpdatedAt         time.Time        `json:"updated" dynamodbav:"updated_at"`
}

// RoleAssignment binds an account to a role within one consuming application.
type RoleAssignment struct {
	AppID    string `json:"app_id" dynamodbav:"app_id"`
	RoleID   string `json:"role_id" dynamodbav:"role_id"`
	RoleName string `json:"role_name" dynamodbav:"role_name"`
}

// Role names that trigger a RoleAssigned event when granted.
const (
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

// PrivilegedRole reports whether granting name must be announced on the bus.
func PrivilegedRole(name string) bool {
	return name == RoleAdmin || name == RoleSuperAdmin
}

// HasRole reports whether the account carries the named role in any app.
func (a *Account) HasRole(name string) bool {
	for _, r := range a.Roles {
		if r.RoleName == name {
			return true
		}
	}
	return false
}

// PrimaryRole picks the role claim for an access token: the most privileged
// assignment wins, accounts with no assignments default to "user".
func (a *Account) PrimaryRole() string {
	if a.HasRole(RoleSuperAdmin) {
		return RoleSuperAdmin
	}
	if a.HasRole(RoleAdmin) {
		return RoleAdmin
	}
	if len(a.Roles) > 0 {
		return a.Roles[0].RoleName
	}
	return "user"
}

// NextStatusAfterVerification computes where a pending-verification account
// lands once a contact point is confirmed: the remaining unverified contact
// point keeps it pending, otherwise it becomes Active. Accounts without a
// phone on file only need the email confirmed.
func NextStatusAfterVerification(a *Account) Status {
	switch {
	case !a.EmailVerified:
		return StatusPendingEmail
	case a.Phone != nil && !a.PhoneVerified:
		return StatusPendingMobile
	default:
		return StatusActive
	}
}

type CreateAccountRequest struct {
	Email     string  `json:"email" validate:"required,email"`
	Password  string  `json:"password" validate:"required,min=8,max=72"`
	Phone     *string `json:"phone"`
	FirstName string  `json:"first_name" validate:"required"`
	LastName  string  `json:"last_name" validate:"required"`
}
