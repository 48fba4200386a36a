// Package auth mints and verifies the session credentials handed to hosts
// and players when they enter a game.
package auth

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Plabrum/trackstar/internal/game/domain"
	apperrors "github.com/Plabrum/trackstar/internal/platform/errors"
)

// tokenEnv holds raw env values before post-parse validation.
type tokenEnv struct {
	Secret string `env:"TRACKSTAR_TOKEN_SECRET"`
	Issuer string `env:"TRACKSTAR_TOKEN_ISSUER" envDefault:"trackstar"`
	TTL    string `env:"TRACKSTAR_TOKEN_TTL" envDefault:"12h"`
}

// Config defines how session tokens are signed and verified.
type Config struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
	Now    func() time.Time
}

// Claims is the validated identity carried by a session token.
type Claims struct {
	SessionID string
	PlayerID  string
	Role      domain.Role
	ExpiresAt time.Time
}

// tokenClaims is the internal claims type used for JWT parsing.
type tokenClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"session_id"`
	PlayerID  string `json:"player_id"`
	Role      string `json:"role"`
}

// LoadConfigFromEnv reads token configuration from the environment.
func LoadConfigFromEnv(now func() time.Time) (Config, error) {
	var raw tokenEnv
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parse token env: %w", err)
	}
	secret := strings.TrimSpace(raw.Secret)
	if secret == "" {
		return Config{}, fmt.Errorf("TRACKSTAR_TOKEN_SECRET is required")
	}
	ttl, err := time.ParseDuration(strings.TrimSpace(raw.TTL))
	if err != nil {
		return Config{}, fmt.Errorf("parse TRACKSTAR_TOKEN_TTL: %w", err)
	}
	if ttl <= 0 {
		return Config{}, fmt.Errorf("TRACKSTAR_TOKEN_TTL must be positive")
	}
	if now == nil {
		now = time.Now
	}
	return Config{
		Secret: []byte(secret),
		Issuer: strings.TrimSpace(raw.Issuer),
		TTL:    ttl,
		Now:    now,
	}, nil
}

// Mint signs a session token for the given participant.
func Mint(sessionID, playerID string, role domain.Role, cfg Config) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	playerID = strings.TrimSpace(playerID)
	if sessionID == "" || playerID == "" {
		return "", fmt.Errorf("session id and player id are required")
	}
	if !role.Valid() {
		return "", fmt.Errorf("role %q is invalid", role)
	}
	if len(cfg.Secret) == 0 {
		return "", fmt.Errorf("token signer is not configured")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 12 * time.Hour
	}

	now := cfg.Now().UTC()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TTL)),
		},
		SessionID: sessionID,
		PlayerID:  playerID,
		Role:      string(role),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a session token and validates its signature and expiry.
func Verify(token string, cfg Config) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, apperrors.New(apperrors.CodeTokenInvalid, "session token is required")
	}
	if len(cfg.Secret) == 0 {
		return Claims{}, fmt.Errorf("token verifier is not configured")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	var parsed tokenClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(token *jwt.Token) (any, error) {
		return cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, mapJWTError(err)
	}

	if cfg.Issuer != "" && parsed.Issuer != cfg.Issuer {
		return Claims{}, apperrors.New(apperrors.CodeTokenInvalid, "session token issuer mismatch")
	}
	if parsed.ExpiresAt == nil {
		return Claims{}, apperrors.New(apperrors.CodeTokenInvalid, "session token exp is required")
	}

	now := cfg.Now().UTC()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(now) {
		return Claims{}, apperrors.New(apperrors.CodeTokenExpired, "session token is expired")
	}

	role := domain.Role(parsed.Role)
	if strings.TrimSpace(parsed.SessionID) == "" || strings.TrimSpace(parsed.PlayerID) == "" || !role.Valid() {
		return Claims{}, apperrors.New(apperrors.CodeTokenInvalid, "session token claims are incomplete")
	}

	return Claims{
		SessionID: parsed.SessionID,
		PlayerID:  parsed.PlayerID,
		Role:      role,
		ExpiresAt: exp,
	}, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if stderrors.Is(err, jwt.ErrTokenSignatureInvalid) {
		return apperrors.New(apperrors.CodeTokenInvalid, "session token signature is invalid")
	}
	if stderrors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeTokenInvalid, "session token alg is invalid")
	}
	return apperrors.New(apperrors.CodeTokenInvalid, "session token is invalid")
}
