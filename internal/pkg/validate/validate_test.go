package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrongPassword(t *testing.T) {
	cases := map[string]bool{
		"Pw1!aaaa":                        true,
		"Pw1!aaa":                         false, // too short
		"Pw1!aaaaaaaaaaaaaaaaaaaaaaaaaaaa": false, // 32 chars
		"pw1!aaaa":                        false, // no upper
		"PW1!AAAA":                        false, // no lower
		"Pwx!aaaa":                        false, // no digit
		"Pw1_aaaa":                        false, // '_' is not an accepted special
	}
	for in, want := range cases {
		assert.Equal(t, want, StrongPassword(in), in)
	}
}

type registerBody struct {
	Email    string `validate:"required,account_email"`
	Password string `validate:"required,password"`
}

func TestStruct_CustomTags(t *testing.T) {
	assert.NoError(t, Struct(&registerBody{Email: "a@x.com", Password: "Pw1!aaaa"}))

	err := Struct(&registerBody{Email: "not-an-email", Password: "weak"})
	assert.ErrorContains(t, err, "field 'Email' failed 'account_email'")
	assert.ErrorContains(t, err, "field 'Password' failed 'password'")
}
