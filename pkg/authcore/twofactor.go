package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/authkit/pkg/qrcode"
	"github.com/dmitrymomot/authkit/pkg/totp"
)

const recoveryCodeCount = 8

// TwoFactorService manages TOTP enrollment, login verification, and
// recovery codes. Secrets are AES-256-GCM encrypted before they touch
// storage; recovery codes are stored as SHA-256 hashes only.
type TwoFactorService struct {
	users      UserStore
	secrets    TwoFactorStore
	encryption []byte
	issuer     string
	qrSize     int
}

// NewTwoFactorService builds a two-factor service. key must be the
// base64-encoded 32-byte value from Config.TwoFactorKey.
func NewTwoFactorService(users UserStore, secrets TwoFactorStore, key, issuer string) (*TwoFactorService, error) {
	aesKey, err := totp.ParseEncodedEncryptionKey(key)
	if err != nil {
		return nil, fmt.Errorf("two-factor encryption key: %w", err)
	}
	if issuer == "" {
		issuer = "authkit"
	}
	return &TwoFactorService{
		users:      users,
		secrets:    secrets,
		encryption: aesKey,
		issuer:     issuer,
		qrSize:     256,
	}, nil
}

// StartSetup generates a fresh secret and recovery codes for the user and
// stores them in the pending state. Calling it again before confirmation
// replaces the pending secret; calling it on an enabled account fails.
func (s *TwoFactorService) StartSetup(ctx context.Context, userID uuid.UUID) (TwoFactorSetup, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return TwoFactorSetup{}, err
	}
	if user.TwoFactorEnabled {
		return TwoFactorSetup{}, ErrTwoFactorAlreadyEnabled
	}

	secret, err := totp.GenerateSecretKey()
	if err != nil {
		return TwoFactorSetup{}, err
	}
	encrypted, err := totp.EncryptSecret(secret, s.encryption)
	if err != nil {
		return TwoFactorSetup{}, err
	}

	uri, err := totp.ProvisioningURI(totp.Params{
		Secret:      secret,
		AccountName: user.Email,
		Issuer:      s.issuer,
	})
	if err != nil {
		return TwoFactorSetup{}, err
	}
	qr, err := qrcode.DataURI(uri, s.qrSize)
	if err != nil {
		return TwoFactorSetup{}, err
	}

	codes, err := totp.GenerateRecoveryCodes(recoveryCodeCount)
	if err != nil {
		return TwoFactorSetup{}, err
	}
	hashes := make([]string, len(codes))
	for i, code := range codes {
		hashes[i] = totp.HashRecoveryCode(code)
	}

	now := time.Now()
	if err := s.secrets.UpsertTwoFactorSecret(ctx, TwoFactorSecret{
		UserID:          userID,
		EncryptedSecret: encrypted,
		Status:          TwoFactorPendingSetup,
		CreatedAt:       now,
		UpdatedAt:       now,
	}); err != nil {
		return TwoFactorSetup{}, fmt.Errorf("store two-factor secret: %w", err)
	}
	if err := s.secrets.ReplaceRecoveryCodes(ctx, userID, hashes); err != nil {
		return TwoFactorSetup{}, fmt.Errorf("store recovery codes: %w", err)
	}

	return TwoFactorSetup{
		Secret:          secret,
		ProvisioningURI: uri,
		QRCodeDataURI:   qr,
		RecoveryCodes:   codes,
	}, nil
}

// ConfirmSetup verifies the first code from the user's authenticator and
// flips the enrollment from pending to enabled. A wrong code leaves the
// pending secret in place so the user can retry.
func (s *TwoFactorService) ConfirmSetup(ctx context.Context, userID uuid.UUID, otp string) error {
	record, err := s.secrets.GetTwoFactorSecret(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrTwoFactorNotSetup) {
			return ErrTwoFactorNotSetup
		}
		return err
	}
	if record.Status == TwoFactorEnabled {
		return ErrTwoFactorAlreadyEnabled
	}

	ok, err := s.verifyOTP(record, otp)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidOTP
	}

	record.Status = TwoFactorEnabled
	record.UpdatedAt = time.Now()
	if err := s.secrets.UpsertTwoFactorSecret(ctx, record); err != nil {
		return fmt.Errorf("enable two-factor: %w", err)
	}
	return s.users.SetTwoFactorEnabled(ctx, userID, true)
}

// VerifyLoginCode checks an OTP during login. It only succeeds for fully
// enabled enrollments; a pending secret never satisfies a login challenge.
func (s *TwoFactorService) VerifyLoginCode(ctx context.Context, userID uuid.UUID, otp string) error {
	record, err := s.secrets.GetTwoFactorSecret(ctx, userID)
	if err != nil {
		return err
	}
	if record.Status != TwoFactorEnabled {
		return ErrTwoFactorNotEnabled
	}

	ok, err := s.verifyOTP(record, otp)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidOTP
	}
	return nil
}

// UseRecoveryCode consumes a single-use recovery code in place of an OTP
// and returns how many codes the user has left.
func (s *TwoFactorService) UseRecoveryCode(ctx context.Context, userID uuid.UUID, code string) (int, error) {
	record, err := s.secrets.GetTwoFactorSecret(ctx, userID)
	if err != nil {
		return 0, err
	}
	if record.Status != TwoFactorEnabled {
		return 0, ErrTwoFactorNotEnabled
	}

	if err := s.secrets.ConsumeRecoveryCode(ctx, userID, totp.HashRecoveryCode(code)); err != nil {
		return 0, err
	}
	return s.secrets.CountRecoveryCodes(ctx, userID)
}

// RegenerateRecoveryCodes replaces the user's remaining codes with a
// fresh set. Returns the plaintext codes for one-time display.
func (s *TwoFactorService) RegenerateRecoveryCodes(ctx context.Context, userID uuid.UUID) ([]string, error) {
	record, err := s.secrets.GetTwoFactorSecret(ctx, userID)
	if err != nil {
		return nil, err
	}
	if record.Status != TwoFactorEnabled {
		return nil, ErrTwoFactorNotEnabled
	}

	codes, err := totp.GenerateRecoveryCodes(recoveryCodeCount)
	if err != nil {
		return nil, err
	}
	hashes := make([]string, len(codes))
	for i, code := range codes {
		hashes[i] = totp.HashRecoveryCode(code)
	}
	if err := s.secrets.ReplaceRecoveryCodes(ctx, userID, hashes); err != nil {
		return nil, fmt.Errorf("replace recovery codes: %w", err)
	}
	return codes, nil
}

// Disable verifies a final OTP, then removes the secret and all recovery
// codes and clears the user flag.
func (s *TwoFactorService) Disable(ctx context.Context, userID uuid.UUID, otp string) error {
	if err := s.VerifyLoginCode(ctx, userID, otp); err != nil {
		return err
	}
	if err := s.secrets.DeleteTwoFactorSecret(ctx, userID); err != nil {
		return fmt.Errorf("delete two-factor secret: %w", err)
	}
	if err := s.secrets.ReplaceRecoveryCodes(ctx, userID, nil); err != nil {
		return fmt.Errorf("delete recovery codes: %w", err)
	}
	return s.users.SetTwoFactorEnabled(ctx, userID, false)
}

// RemainingRecoveryCodes reports how many unused recovery codes the user has.
func (s *TwoFactorService) RemainingRecoveryCodes(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.secrets.CountRecoveryCodes(ctx, userID)
}

func (s *TwoFactorService) verifyOTP(record TwoFactorSecret, otp string) (bool, error) {
	secret, err := totp.DecryptSecret(record.EncryptedSecret, s.encryption)
	if err != nil {
		return false, fmt.Errorf("decrypt two-factor secret: %w", err)
	}
	ok, err := totp.Validate(secret, otp)
	if err != nil {
		return false, errors.Join(ErrInvalidOTP, err)
	}
	return ok, nil
}
