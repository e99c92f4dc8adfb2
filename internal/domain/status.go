package domain

// Status is the account lifecycle state. Stored as a string attribute so the
// values stay readable in the table and in published events.
type Status string

const (
	StatusPendingAccountVerification Status = "PendingAccountVerification"
	StatusPendingMobile              Status = "PendingMobile"
	StatusPendingEmail               Status = "PendingEmail"
	StatusPendingAdminApproval       Status = "PendingAdminApproval"
	StatusActive                     Status = "Active"
	StatusSuspended                  Status = "Suspended"
	StatusDeleted                    Status = "Deleted"
	StatusProfileIncomplete          Status = "ProfileIncomplete"
)

// ParseStatus validates a raw string against the closed set of statuses.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPendingAccountVerification, StatusPendingMobile, StatusPendingEmail,
		StatusPendingAdminApproval, StatusActive, StatusSuspended,
		StatusDeleted, StatusProfileIncomplete:
		return Status(s), true
	}
	return "", false
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s Status) IsTerminal() bool { return s == StatusDeleted }

// PendingVerification covers the statuses that block authentication until the
// matching contact point is verified. PendingAdminApproval is deliberately not
// included: it has its own guard outcome.
func (s Status) PendingVerification() bool {
	return s == StatusPendingAccountVerification || s == StatusPendingMobile || s == StatusPendingEmail
}
