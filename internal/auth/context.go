package auth

import (
	"context"
	"errors"
)

var ErrNoIdentity = errors.New("auth: no identity in context")

// Identity is the verified caller attached to a request. Service tokens
// minted for the voice agent carry the agent's subject as UserID.
type Identity struct {
	UserID    string
	Role      string
	TokenType TokenType
}

// IsService reports whether the caller is a backend rather than a person.
func (i Identity) IsService() bool { return i.TokenType == TokenTypeService }

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	if !ok || id.UserID == "" {
		return Identity{}, false
	}
	return id, true
}

func UserID(ctx context.Context) (string, error) {
	id, ok := IdentityFrom(ctx)
	if !ok {
		return "", ErrNoIdentity
	}
	return id.UserID, nil
}

func Role(ctx context.Context) (string, error) {
	id, ok := IdentityFrom(ctx)
	if !ok || id.Role == "" {
		return "", ErrNoIdentity
	}
	return id.Role, nil
}
