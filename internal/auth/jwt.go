package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"virtual-mentor/internal/config"
)

// clockSkew is how far token timestamps may drift from our clock.
const clockSkew = 30 * time.Second

var (
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrTokenClaims  = errors.New("auth: token claims rejected")
)

// Manager signs and verifies HS256 tokens for agents, admins and backends.
type Manager struct {
	secret    []byte
	issuer    string
	audience  string
	accessTTL time.Duration
}

func NewManager(cfg config.AuthConfig) (*Manager, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	ttl := cfg.AccessTokenTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Manager{
		secret:    []byte(cfg.JWTSecret),
		issuer:    cfg.JWTIssuer,
		audience:  cfg.JWTAudience,
		accessTTL: ttl,
	}, nil
}

// IssueAccess mints a short-lived token for an interactive user.
func (m *Manager) IssueAccess(now time.Time, userID, role string) (string, error) {
	return m.sign(now, TokenTypeAccess, userID, role, m.accessTTL)
}

// IssueService mints a token for a backend caller, typically the voice agent
// posting transcripts, with an explicit lifetime.
func (m *Manager) IssueService(now time.Time, subject, role string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", errors.New("ttl must be positive")
	}
	return m.sign(now, TokenTypeService, subject, role, ttl)
}

// Verify accepts access and service tokens alike; both carry a role.
// Time-based checks run against now rather than the wall clock.
func (m *Manager) Verify(tokenString string, now time.Time) (Claims, error) {
	var claims Claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if _, err := parser.ParseWithClaims(tokenString, &claims, m.key); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if err := m.validator(now).Validate(claims.RegisteredClaims); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrTokenClaims, err)
	}
	if err := checkClaims(claims); err != nil {
		return Claims{}, err
	}
	return claims, nil
}

func (m *Manager) key(*jwt.Token) (any, error) { return m.secret, nil }

func (m *Manager) validator(now time.Time) *jwt.Validator {
	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(clockSkew),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}
	return jwt.NewValidator(opts...)
}

func checkClaims(c Claims) error {
	switch c.TokenType {
	case TokenTypeAccess, TokenTypeService:
	default:
		return fmt.Errorf("%w: token_type %q", ErrTokenClaims, c.TokenType)
	}
	if c.UserID == "" || c.Role == "" {
		return fmt.Errorf("%w: user_id and role are required", ErrTokenClaims)
	}
	if c.Subject != "" && c.Subject != c.UserID {
		return fmt.Errorf("%w: subject does not match user_id", ErrTokenClaims)
	}
	return nil
}

func (m *Manager) sign(now time.Time, typ TokenType, userID, role string, ttl time.Duration) (string, error) {
	if userID == "" || role == "" {
		return "", errors.New("user id and role are required")
	}
	rc := jwt.RegisteredClaims{
		Issuer:    m.issuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
	if m.audience != "" {
		rc.Audience = jwt.ClaimStrings{m.audience}
	}
	claims := Claims{RegisteredClaims: rc, UserID: userID, Role: role, TokenType: typ}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}
