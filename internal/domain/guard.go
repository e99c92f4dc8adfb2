package domain

import "time"

// CheckAuthenticatable is the pure authentication guard. It returns nil when
// the account may proceed to credential verification, or the typed error that
// explains why it may not.
//
// Precedence: deleted and banned outrank the lockout, the lockout outranks
// every verification requirement. The order matters — a suspended account with
// an unverified email must surface as banned, not as pending verification.
func CheckAuthenticatable(a *Account, now time.Time) error {
	switch {
	case a.Status == StatusDeleted:
		return ErrSoftDeleted
	case a.Status == StatusSuspended:
		return ErrAccountBanned
	case a.LockoutEnd != nil && a.LockoutEnd.After(now):
		return &AccountLockedError{LockoutEnd: *a.LockoutEnd}
	case a.Status.PendingVerification():
		return &RequiresVerificationError{Status: a.Status, Phone: a.Phone}
	case a.Status == StatusProfileIncomplete:
		return ErrRequiresProfileCompletion
	case a.Status == StatusPendingAdminApproval:
		return ErrRequiresAdminApproval
	}
	return nil
}
