package authcore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/authkit/pkg/pg"
)

// PostgresStorage implements Storage over a pgx connection pool. The
// schema lives in pkg/pg/migrations.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

var _ Storage = (*PostgresStorage)(nil)

// NewPostgresStorage wraps an already-connected pool.
func NewPostgresStorage(pool *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{pool: pool}
}

func (s *PostgresStorage) CreateUser(ctx context.Context, user User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, name, role, email_verified_at, two_factor_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		user.ID, user.Email, user.PasswordHash, user.Name, user.Role,
		nullableTime(user.EmailVerifiedAt), user.TwoFactorEnabled, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return ErrEmailAlreadyExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

const userColumns = `id, email, password_hash, name, role, email_verified_at, two_factor_enabled, created_at, updated_at`

func (s *PostgresStorage) scanUser(row pgx.Row) (User, error) {
	var user User
	var verifiedAt sql.NullTime
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Name, &user.Role,
		&verifiedAt, &user.TwoFactorEnabled, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("scan user: %w", err)
	}
	if verifiedAt.Valid {
		user.EmailVerifiedAt = verifiedAt.Time
	}
	return user, nil
}

// nullableTime maps the zero time to SQL NULL.
func nullableTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func (s *PostgresStorage) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	return s.scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *PostgresStorage) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (s *PostgresStorage) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *PostgresStorage) SetEmailVerified(ctx context.Context, id uuid.UUID, verifiedAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET email_verified_at = $2, updated_at = now() WHERE id = $1`, id, nullableTime(verifiedAt))
	if err != nil {
		return fmt.Errorf("set email verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *PostgresStorage) SetTwoFactorEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET two_factor_enabled = $2, updated_at = now() WHERE id = $1`, id, enabled)
	if err != nil {
		return fmt.Errorf("set two-factor enabled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *PostgresStorage) CreateSession(ctx context.Context, session Session) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (id, user_id, session_token, user_agent, ip, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		session.ID, session.UserID, session.SessionToken,
		session.UserAgent, session.IPAddress, session.ExpiresAt, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *PostgresStorage) GetSessionByToken(ctx context.Context, token string) (Session, error) {
	var sess Session
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, session_token, user_agent, ip, expires_at, created_at
		FROM sessions WHERE session_token = $1`, token,
	).Scan(&sess.ID, &sess.UserID, &sess.SessionToken, &sess.UserAgent,
		&sess.IPAddress, &sess.ExpiresAt, &sess.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, fmt.Errorf("scan session: %w", err)
	}
	return sess, nil
}

func (s *PostgresStorage) ListActiveSessions(ctx context.Context, userID uuid.UUID) ([]Session, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, session_token, user_agent, ip, expires_at, created_at
		FROM sessions WHERE user_id = $1 AND expires_at > now()
		ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.SessionToken, &sess.UserAgent,
			&sess.IPAddress, &sess.ExpiresAt, &sess.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *PostgresStorage) DeleteSession(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM sessions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *PostgresStorage) DeleteUserSessions(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	return nil
}

func (s *PostgresStorage) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStorage) CreateRefreshToken(ctx context.Context, token RefreshToken) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO refresh_tokens (id, user_id, session_id, token_hash, revoked, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		token.ID, token.UserID, token.SessionID, token.TokenHash,
		token.Revoked, token.ExpiresAt, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

func (s *PostgresStorage) ListActiveRefreshTokens(ctx context.Context, userID uuid.UUID, now time.Time) ([]RefreshToken, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, session_id, token_hash, revoked, expires_at, created_at
		FROM refresh_tokens WHERE user_id = $1 AND expires_at > $2`, userID, now)
	if err != nil {
		return nil, fmt.Errorf("query refresh tokens: %w", err)
	}
	defer rows.Close()

	var out []RefreshToken
	for rows.Next() {
		var tok RefreshToken
		if err := rows.Scan(&tok.ID, &tok.UserID, &tok.SessionID, &tok.TokenHash,
			&tok.Revoked, &tok.ExpiresAt, &tok.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan refresh token: %w", err)
		}
		out = append(out, tok)
	}
	return out, rows.Err()
}

// RevokeRefreshToken is a conditional update: a row that is already
// revoked is left untouched and reported as ErrTokenRevoked, which is
// how rotation detects double spend.
func (s *PostgresStorage) RevokeRefreshToken(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE WHERE id = $1 AND NOT revoked`, id)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM refresh_tokens WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("check refresh token: %w", err)
		}
		if exists {
			return ErrTokenRevoked
		}
		return ErrTokenNotFound
	}
	return nil
}

func (s *PostgresStorage) RevokeUserRefreshTokens(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.pool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1 AND NOT revoked`, userID); err != nil {
		return fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return nil
}

func (s *PostgresStorage) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStorage) CreateVerificationToken(ctx context.Context, token VerificationToken) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO verification_tokens (id, identifier, token_hash, purpose, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		token.ID, token.Identifier, token.TokenHash, token.Purpose, token.ExpiresAt, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert verification token: %w", err)
	}
	return nil
}

func (s *PostgresStorage) ListActiveVerificationTokens(ctx context.Context, identifier string, purpose VerificationPurpose, now time.Time) ([]VerificationToken, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, identifier, token_hash, purpose, expires_at, created_at
		FROM verification_tokens
		WHERE identifier = $1 AND purpose = $2 AND expires_at > $3`, identifier, purpose, now)
	if err != nil {
		return nil, fmt.Errorf("query verification tokens: %w", err)
	}
	defer rows.Close()

	var out []VerificationToken
	for rows.Next() {
		var tok VerificationToken
		if err := rows.Scan(&tok.ID, &tok.Identifier, &tok.TokenHash, &tok.Purpose,
			&tok.ExpiresAt, &tok.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan verification token: %w", err)
		}
		out = append(out, tok)
	}
	return out, rows.Err()
}

func (s *PostgresStorage) DeleteVerificationToken(ctx context.Context, id uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM verification_tokens WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete verification token: %w", err)
	}
	return nil
}

func (s *PostgresStorage) DeleteVerificationTokensByIdentifier(ctx context.Context, identifier string, purpose VerificationPurpose) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM verification_tokens WHERE identifier = $1 AND purpose = $2`, identifier, purpose); err != nil {
		return fmt.Errorf("delete verification tokens: %w", err)
	}
	return nil
}

func (s *PostgresStorage) DeleteExpiredVerificationTokens(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM verification_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired verification tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStorage) UpsertTwoFactorSecret(ctx context.Context, secret TwoFactorSecret) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO two_factor_secrets (user_id, encrypted_secret, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET encrypted_secret = EXCLUDED.encrypted_secret,
		    status = EXCLUDED.status,
		    updated_at = EXCLUDED.updated_at`,
		secret.UserID, secret.EncryptedSecret, secret.Status, secret.CreatedAt, secret.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert two-factor secret: %w", err)
	}
	return nil
}

func (s *PostgresStorage) GetTwoFactorSecret(ctx context.Context, userID uuid.UUID) (TwoFactorSecret, error) {
	var secret TwoFactorSecret
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, encrypted_secret, status, created_at, updated_at
		FROM two_factor_secrets WHERE user_id = $1`, userID,
	).Scan(&secret.UserID, &secret.EncryptedSecret, &secret.Status, &secret.CreatedAt, &secret.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TwoFactorSecret{}, ErrTwoFactorNotSetup
		}
		return TwoFactorSecret{}, fmt.Errorf("scan two-factor secret: %w", err)
	}
	return secret, nil
}

func (s *PostgresStorage) DeleteTwoFactorSecret(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM two_factor_secrets WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete two-factor secret: %w", err)
	}
	return nil
}

func (s *PostgresStorage) ReplaceRecoveryCodes(ctx context.Context, userID uuid.UUID, codeHashes []string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // no-op after commit

	if _, err := tx.Exec(ctx, `DELETE FROM recovery_codes WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete recovery codes: %w", err)
	}
	for _, hash := range codeHashes {
		if _, err := tx.Exec(ctx,
			`INSERT INTO recovery_codes (user_id, code_hash) VALUES ($1, $2)`, userID, hash); err != nil {
			return fmt.Errorf("insert recovery code: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStorage) ConsumeRecoveryCode(ctx context.Context, userID uuid.UUID, codeHash string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM recovery_codes WHERE user_id = $1 AND code_hash = $2`, userID, codeHash)
	if err != nil {
		return fmt.Errorf("consume recovery code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidOTP
	}
	return nil
}

func (s *PostgresStorage) CountRecoveryCodes(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM recovery_codes WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count recovery codes: %w", err)
	}
	return n, nil
}

func (s *PostgresStorage) GetOAuthAccount(ctx context.Context, provider, providerAccountID string) (OAuthAccount, error) {
	var account OAuthAccount
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, provider, provider_account_id, email, access_token, refresh_token, created_at, updated_at
		FROM oauth_accounts WHERE provider = $1 AND provider_account_id = $2`,
		provider, providerAccountID,
	).Scan(&account.UserID, &account.Provider, &account.ProviderAccountID,
		&account.Email, &account.AccessToken, &account.RefreshToken,
		&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return OAuthAccount{}, ErrOAuthAccountNotFound
		}
		return OAuthAccount{}, fmt.Errorf("scan oauth account: %w", err)
	}
	return account, nil
}

func (s *PostgresStorage) UpsertOAuthAccount(ctx context.Context, account OAuthAccount) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO oauth_accounts (provider, provider_account_id, user_id, email, access_token, refresh_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (provider, provider_account_id) DO UPDATE
		SET user_id = EXCLUDED.user_id, email = EXCLUDED.email,
			access_token = EXCLUDED.access_token, refresh_token = EXCLUDED.refresh_token,
			updated_at = EXCLUDED.updated_at`,
		account.Provider, account.ProviderAccountID, account.UserID, account.Email,
		account.AccessToken, account.RefreshToken, account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert oauth account: %w", err)
	}
	return nil
}

func (s *PostgresStorage) ListOAuthAccounts(ctx context.Context, userID uuid.UUID) ([]OAuthAccount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, provider, provider_account_id, email, access_token, refresh_token, created_at, updated_at
		FROM oauth_accounts WHERE user_id = $1 ORDER BY provider`, userID)
	if err != nil {
		return nil, fmt.Errorf("query oauth accounts: %w", err)
	}
	defer rows.Close()

	var out []OAuthAccount
	for rows.Next() {
		var account OAuthAccount
		if err := rows.Scan(&account.UserID, &account.Provider, &account.ProviderAccountID,
			&account.Email, &account.AccessToken, &account.RefreshToken,
			&account.CreatedAt, &account.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan oauth account: %w", err)
		}
		out = append(out, account)
	}
	return out, rows.Err()
}

func (s *PostgresStorage) DeleteOAuthAccount(ctx context.Context, userID uuid.UUID, provider string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM oauth_accounts WHERE user_id = $1 AND provider = $2`, userID, provider)
	if err != nil {
		return fmt.Errorf("delete oauth account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOAuthAccountNotFound
	}
	return nil
}
