// Package authcore implements the authentication core: credential
// storage contracts, password hashing, stateless access tokens paired with
// database-backed rotating refresh tokens, session records, TOTP two-factor
// with recovery codes, OAuth account linking, and one-time hashed
// verification tokens for email verification and password reset.
//
// The package exposes no HTTP surface. A boundary (router, middleware,
// serialization) is expected to sit in front of Service and translate its
// sentinel errors into transport responses.
package authcore
