package dynamo

// DynamoDB attribute names used in update expressions across all repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldStatus       = "status"
	fieldRefreshToken = "refresh_token"
	fieldExpiresAt    = "expires_at"
	fieldUsed         = "used"
	fieldAttempts     = "attempts"
)
