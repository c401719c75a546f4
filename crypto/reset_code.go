package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// ResetCode pairs the plaintext code mailed to the user with the argon2id
// hash persisted on their row. The plaintext is never stored.
type ResetCode struct {
	Code string
	Hash string
}

// GenerateResetCode produces a URL-safe random code and its hash.
// 24 bytes of entropy matches the confirmation and reset links we mail out.
func GenerateResetCode() (*ResetCode, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("failed to generate reset code: %w", err)
	}
	code := base64.RawURLEncoding.EncodeToString(raw)

	hash, err := HashPassword(code)
	if err != nil {
		return nil, err
	}
	return &ResetCode{Code: code, Hash: hash}, nil
}

// VerifyResetCode checks a presented code against the stored hash.
func VerifyResetCode(code, hash string) bool {
	if code == "" || hash == "" {
		return false
	}
	return VerifyPassword(code, hash)
}
