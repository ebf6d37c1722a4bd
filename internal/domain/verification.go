package domain

import "time"

// PasswordRecoveryCode authorizes a single password reset.
// PK: user_id. At most one live code per user; expires after a short TTL.
type PasswordRecoveryCode struct {
	UserID    string    `json:"user_id" dynamodbav:"user_id" bson:"_id"`
	Code      string    `json:"code" dynamodbav:"code" bson:"code"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at" bson:"created_at"`
}
