package domain

import "time"

// NotVerifiedUser is a pending registration awaiting its email code.
// Rows expire after the configured retention window regardless of application logic.
type NotVerifiedUser struct {
	ID            string    `json:"id" dynamodbav:"user_id" bson:"_id"`
	Username      string    `json:"username" dynamodbav:"username" bson:"username"`
	Email         string    `json:"email" dynamodbav:"email" bson:"email"`
	PasswordHash  string    `json:"-" dynamodbav:"password_hash" bson:"password_hash"`
	CreatedAt     time.Time `json:"created" dynamodbav:"created_at" bson:"created_at"`
	Code          string    `json:"-" dynamodbav:"code" bson:"code"`
	CodeUpdatedAt time.Time `json:"code_updated" dynamodbav:"code_updated_at" bson:"code_updated_at"`
}

// ToVerified copies the identity and credentials into a VerifiedUser.
func (u *NotVerifiedUser) ToVerified() *VerifiedUser {
	return &VerifiedUser{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
	}
}

// VerifiedUser is a confirmed account eligible to log in.
type VerifiedUser struct {
	ID           string `json:"id" dynamodbav:"user_id" bson:"_id"`
	Email        string `json:"email" dynamodbav:"email" bson:"email"`
	PasswordHash string `json:"-" dynamodbav:"password_hash" bson:"password_hash"`
}

// Verification is the claim a client presents to complete registration. Not persisted.
type Verification struct {
	Email string
	Code  string
}
