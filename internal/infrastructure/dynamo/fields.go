package dynamo

// DynamoDB attribute names used in keys, conditions and update expressions.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldUserID        = "user_id"
	fieldEmail         = "email"
	fieldCode          = "code"
	fieldCodeUpdatedAt = "code_updated_at"
	fieldPasswordHash  = "password_hash"
	fieldExpiresAt     = "expires_at"
	fieldClaim         = "claim"

	emailIndex = "email-index"
)
