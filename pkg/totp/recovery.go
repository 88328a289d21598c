package totp

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
)

// RecoveryCodeLength is the number of characters in a recovery code.
const RecoveryCodeLength = 8

// Uppercase alphanumeric keeps codes easy to read back over the phone.
const recoveryCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateRecoveryCodes creates cryptographically secure single-use backup
// codes: 8-character uppercase alphanumeric strings.
func GenerateRecoveryCodes(count int) ([]string, error) {
	if count < 1 {
		return nil, ErrInvalidRecoveryCodeCount
	}

	// Bytes at or above this threshold are discarded so every charset
	// character stays equally likely. 252 is the largest multiple of 36
	// that fits in a byte.
	const rejectionLimit = byte(len(recoveryCodeCharset) * (256 / len(recoveryCodeCharset)))

	codes := make([]string, count)
	buf := make([]byte, RecoveryCodeLength)
	for i := range count {
		code := make([]byte, 0, RecoveryCodeLength)
		for len(code) < RecoveryCodeLength {
			if _, err := rand.Read(buf); err != nil {
				return nil, errors.Join(ErrFailedToGenerateRecoveryCode, err)
			}
			for _, b := range buf {
				if b >= rejectionLimit {
					continue
				}
				code = append(code, recoveryCodeCharset[int(b)%len(recoveryCodeCharset)])
				if len(code) == RecoveryCodeLength {
					break
				}
			}
		}
		codes[i] = string(code)
	}
	return codes, nil
}

// HashRecoveryCode creates a SHA-256 hash for secure storage of recovery codes.
func HashRecoveryCode(code string) string {
	hash := sha256.Sum256([]byte(code))
	return hex.EncodeToString(hash[:])
}

// VerifyRecoveryCode performs constant-time comparison against a stored hash.
func VerifyRecoveryCode(code, hashedCode string) bool {
	computedHash := HashRecoveryCode(code)
	return subtle.ConstantTimeCompare(
		[]byte(computedHash),
		[]byte(hashedCode),
	) == 1
}
