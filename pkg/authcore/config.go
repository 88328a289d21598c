package authcore

import "time"

// Config holds the tunables of the auth core. Zero values are replaced by
// the documented defaults in New; secrets have no defaults and are required.
type Config struct {
	AccessSecret  string `env:"AUTH_ACCESS_SECRET,required"`
	RefreshSecret string `env:"AUTH_REFRESH_SECRET,required"`
	// TwoFactorKey is a base64-encoded 32-byte AES key for TOTP
	// secrets at rest.
	TwoFactorKey string `env:"AUTH_2FA_ENCRYPTION_KEY,required"`
	Issuer       string `env:"AUTH_ISSUER" envDefault:"authkit"`

	AccessTokenTTL      time.Duration `env:"AUTH_ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL     time.Duration `env:"AUTH_REFRESH_TOKEN_TTL" envDefault:"168h"`
	SessionTTL          time.Duration `env:"AUTH_SESSION_TTL" envDefault:"720h"`
	VerificationCodeTTL time.Duration `env:"AUTH_VERIFICATION_CODE_TTL" envDefault:"10m"`
	ResetTokenTTL       time.Duration `env:"AUTH_RESET_TOKEN_TTL" envDefault:"1h"`
	StepUpWindow        time.Duration `env:"AUTH_STEP_UP_WINDOW" envDefault:"5m"`

	BcryptCost int `env:"AUTH_BCRYPT_COST" envDefault:"12"`
}

func (c *Config) applyDefaults() {
	if c.Issuer == "" {
		c.Issuer = "authkit"
	}
	if c.AccessTokenTTL <= 0 {
		c.AccessTokenTTL = 15 * time.Minute
	}
	if c.RefreshTokenTTL <= 0 {
		c.RefreshTokenTTL = 168 * time.Hour
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 720 * time.Hour
	}
	if c.VerificationCodeTTL <= 0 {
		c.VerificationCodeTTL = 10 * time.Minute
	}
	if c.ResetTokenTTL <= 0 {
		c.ResetTokenTTL = time.Hour
	}
	if c.StepUpWindow <= 0 {
		c.StepUpWindow = 5 * time.Minute
	}
	if c.BcryptCost <= 0 {
		c.BcryptCost = 12
	}
}
