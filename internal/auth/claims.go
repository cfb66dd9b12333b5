package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess TokenType = "access"
	// TokenTypeService is issued by the CLI to the voice agent and other backends.
	TokenTypeService TokenType = "service"
)

// Claims are the only supported JWT claims shape for this service.
// Authorization decisions are made server-side from Role; see internal/rbac.
type Claims struct {
	jwt.RegisteredClaims

	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	TokenType TokenType `json:"token_type"`
}
