package authcore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage is a mutex-guarded in-memory Storage for tests and
// single-process setups. Safe for concurrent use.
type MemoryStorage struct {
	mu sync.RWMutex

	users              map[uuid.UUID]User
	usersByEmail       map[string]uuid.UUID
	sessions           map[uuid.UUID]Session
	refreshTokens      map[uuid.UUID]RefreshToken
	verificationTokens map[uuid.UUID]VerificationToken
	twoFactorSecrets   map[uuid.UUID]TwoFactorSecret
	recoveryCodes      map[uuid.UUID]map[string]struct{}
	oauthAccounts      map[oauthKey]OAuthAccount
}

type oauthKey struct {
	provider          string
	providerAccountID string
}

var _ Storage = (*MemoryStorage)(nil)

// NewMemoryStorage returns an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users:              make(map[uuid.UUID]User),
		usersByEmail:       make(map[string]uuid.UUID),
		sessions:           make(map[uuid.UUID]Session),
		refreshTokens:      make(map[uuid.UUID]RefreshToken),
		verificationTokens: make(map[uuid.UUID]VerificationToken),
		twoFactorSecrets:   make(map[uuid.UUID]TwoFactorSecret),
		recoveryCodes:      make(map[uuid.UUID]map[string]struct{}),
		oauthAccounts:      make(map[oauthKey]OAuthAccount),
	}
}

func (m *MemoryStorage) CreateUser(_ context.Context, user User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.usersByEmail[user.Email]; exists {
		return ErrEmailAlreadyExists
	}
	m.users[user.ID] = user
	m.usersByEmail[user.Email] = user.ID
	return nil
}

func (m *MemoryStorage) GetUserByID(_ context.Context, id uuid.UUID) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (m *MemoryStorage) GetUserByEmail(_ context.Context, email string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.usersByEmail[email]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return m.users[id], nil
}

func (m *MemoryStorage) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return ErrUserNotFound
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = time.Now()
	m.users[id] = user
	return nil
}

func (m *MemoryStorage) SetEmailVerified(_ context.Context, id uuid.UUID, verifiedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return ErrUserNotFound
	}
	user.EmailVerifiedAt = verifiedAt
	user.UpdatedAt = time.Now()
	m.users[id] = user
	return nil
}

func (m *MemoryStorage) SetTwoFactorEnabled(_ context.Context, id uuid.UUID, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return ErrUserNotFound
	}
	user.TwoFactorEnabled = enabled
	user.UpdatedAt = time.Now()
	m.users[id] = user
	return nil
}

func (m *MemoryStorage) CreateSession(_ context.Context, session Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	return nil
}

func (m *MemoryStorage) GetSessionByToken(_ context.Context, token string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, sess := range m.sessions {
		if sess.SessionToken == token {
			return sess, nil
		}
	}
	return Session{}, ErrSessionNotFound
}

func (m *MemoryStorage) ListActiveSessions(_ context.Context, userID uuid.UUID) ([]Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := time.Now()
	var out []Session
	for _, sess := range m.sessions {
		if sess.UserID == userID && sess.ExpiresAt.After(now) {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStorage) DeleteSession(_ context.Context, id, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok || sess.UserID != userID {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStorage) DeleteUserSessions(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, sess := range m.sessions {
		if sess.UserID == userID {
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m *MemoryStorage) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, sess := range m.sessions {
		if !sess.ExpiresAt.After(now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStorage) CreateRefreshToken(_ context.Context, token RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshTokens[token.ID] = token
	return nil
}

func (m *MemoryStorage) ListActiveRefreshTokens(_ context.Context, userID uuid.UUID, now time.Time) ([]RefreshToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []RefreshToken
	for _, tok := range m.refreshTokens {
		if tok.UserID == userID && tok.ExpiresAt.After(now) {
			out = append(out, tok)
		}
	}
	return out, nil
}

func (m *MemoryStorage) RevokeRefreshToken(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.refreshTokens[id]
	if !ok {
		return ErrTokenNotFound
	}
	if tok.Revoked {
		return ErrTokenRevoked
	}
	tok.Revoked = true
	m.refreshTokens[id] = tok
	return nil
}

func (m *MemoryStorage) RevokeUserRefreshTokens(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, tok := range m.refreshTokens {
		if tok.UserID == userID && !tok.Revoked {
			tok.Revoked = true
			m.refreshTokens[id] = tok
		}
	}
	return nil
}

func (m *MemoryStorage) DeleteExpiredRefreshTokens(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, tok := range m.refreshTokens {
		if !tok.ExpiresAt.After(now) {
			delete(m.refreshTokens, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStorage) CreateVerificationToken(_ context.Context, token VerificationToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verificationTokens[token.ID] = token
	return nil
}

func (m *MemoryStorage) ListActiveVerificationTokens(_ context.Context, identifier string, purpose VerificationPurpose, now time.Time) ([]VerificationToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []VerificationToken
	for _, tok := range m.verificationTokens {
		if tok.Identifier == identifier && tok.Purpose == purpose && tok.ExpiresAt.After(now) {
			out = append(out, tok)
		}
	}
	return out, nil
}

func (m *MemoryStorage) DeleteVerificationToken(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.verificationTokens, id)
	return nil
}

func (m *MemoryStorage) DeleteVerificationTokensByIdentifier(_ context.Context, identifier string, purpose VerificationPurpose) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, tok := range m.verificationTokens {
		if tok.Identifier == identifier && tok.Purpose == purpose {
			delete(m.verificationTokens, id)
		}
	}
	return nil
}

func (m *MemoryStorage) DeleteExpiredVerificationTokens(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, tok := range m.verificationTokens {
		if !tok.ExpiresAt.After(now) {
			delete(m.verificationTokens, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStorage) UpsertTwoFactorSecret(_ context.Context, secret TwoFactorSecret) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.twoFactorSecrets[secret.UserID] = secret
	return nil
}

func (m *MemoryStorage) GetTwoFactorSecret(_ context.Context, userID uuid.UUID) (TwoFactorSecret, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	secret, ok := m.twoFactorSecrets[userID]
	if !ok {
		return TwoFactorSecret{}, ErrTwoFactorNotSetup
	}
	return secret, nil
}

func (m *MemoryStorage) DeleteTwoFactorSecret(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.twoFactorSecrets, userID)
	return nil
}

func (m *MemoryStorage) ReplaceRecoveryCodes(_ context.Context, userID uuid.UUID, codeHashes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(codeHashes) == 0 {
		delete(m.recoveryCodes, userID)
		return nil
	}
	set := make(map[string]struct{}, len(codeHashes))
	for _, hash := range codeHashes {
		set[hash] = struct{}{}
	}
	m.recoveryCodes[userID] = set
	return nil
}

func (m *MemoryStorage) ConsumeRecoveryCode(_ context.Context, userID uuid.UUID, codeHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.recoveryCodes[userID]
	if !ok {
		return ErrInvalidOTP
	}
	if _, ok := set[codeHash]; !ok {
		return ErrInvalidOTP
	}
	delete(set, codeHash)
	return nil
}

func (m *MemoryStorage) CountRecoveryCodes(_ context.Context, userID uuid.UUID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.recoveryCodes[userID]), nil
}

func (m *MemoryStorage) GetOAuthAccount(_ context.Context, provider, providerAccountID string) (OAuthAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	account, ok := m.oauthAccounts[oauthKey{provider, providerAccountID}]
	if !ok {
		return OAuthAccount{}, ErrOAuthAccountNotFound
	}
	return account, nil
}

func (m *MemoryStorage) UpsertOAuthAccount(_ context.Context, account OAuthAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.oauthAccounts[oauthKey{account.Provider, account.ProviderAccountID}] = account
	return nil
}

func (m *MemoryStorage) ListOAuthAccounts(_ context.Context, userID uuid.UUID) ([]OAuthAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []OAuthAccount
	for _, account := range m.oauthAccounts {
		if account.UserID == userID {
			out = append(out, account)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out, nil
}

func (m *MemoryStorage) DeleteOAuthAccount(_ context.Context, userID uuid.UUID, provider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, account := range m.oauthAccounts {
		if account.UserID == userID && account.Provider == provider {
			delete(m.oauthAccounts, key)
			return nil
		}
	}
	return ErrOAuthAccountNotFound
}
