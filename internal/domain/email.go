package domain

// VerificationEmail carries the code that confirms a registration.
type VerificationEmail struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Code     string `json:"code"`
}

// PasswordRecoveryEmail carries the redemption link for a recovery code.
type PasswordRecoveryEmail struct {
	UserID string `json:"-"`
	Email  string `json:"email"`
	Link   string `json:"link"`
}

// GeneratedPasswordEmail carries a freshly generated plaintext password.
type GeneratedPasswordEmail struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
