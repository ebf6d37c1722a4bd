package auth

import (
	"crypto/rand"
	"math/big"

	"github.com/go-auth-nosql/internal/pkg/validate"
)

const (
	codeLength              = 6
	generatedPasswordLength = 30

	lowercase = "abcdefghijklmnopqrstuvwxyz"
	uppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits    = "0123456789"
)

// GenerateCode returns a one-time code of codeLength decimal digits,
// each drawn independently from crypto/rand.
func GenerateCode() (string, error) {
	return randomString(digits, codeLength)
}

// GeneratePassword returns a password that satisfies validate.StrongPassword.
// One character of each required class is placed first, in fixed order, and the
// remainder is drawn from the full alphabet.
// TODO: shuffle the seeded prefix; the class of the first four characters is predictable.
func GeneratePassword() (string, error) {
	all := lowercase + uppercase + digits + validate.PasswordSpecials
	b := make([]byte, 0, generatedPasswordLength)
	for _, class := range []string{lowercase, uppercase, digits, validate.PasswordSpecials} {
		c, err := randomChar(class)
		if err != nil {
			return "", err
		}
		b = append(b, c)
	}
	rest, err := randomString(all, generatedPasswordLength-len(b))
	if err != nil {
		return "", err
	}
	return string(b) + rest, nil
}

func randomString(alphabet string, n int) (string, error) {
	b := make([]byte, n)
	for i := range b {
		c, err := randomChar(alphabet)
		if err != nil {
			return "", err
		}
		b[i] = c
	}
	return string(b), nil
}

func randomChar(alphabet string) (byte, error) {
	idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return 0, err
	}
	return alphabet[idx.Int64()], nil
}
