// Package auth issues and verifies the bearer tokens carried by back-office
// users. Account management lives elsewhere; this package only knows about
// claims.
package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tripdesk/backend/internal/models"
)

// Principal is the authenticated caller attached to a request.
type Principal struct {
	ID          string   `json:"id"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

const (
	PermLeadsAssign    = "leads:assign"
	PermLeadsDelete    = "leads:delete"
	PermPackagesManage = "packages:manage"
	PermSettingsManage = "settings:manage"
)

// rolePermissions is the static grant table. Tokens may carry extra
// permissions on top of their role's grants.
var rolePermissions = map[string][]string{
	models.RoleAdmin:    {PermLeadsAssign, PermLeadsDelete, PermPackagesManage, PermSettingsManage},
	models.RoleSalesRep: {},
}

// Has reports whether the role grants the permission or the token lists it.
func (p Principal) Has(permission string) bool {
	return slices.Contains(rolePermissions[p.Role], permission) || slices.Contains(p.Permissions, permission)
}

type Claims struct {
	Role        string   `json:"role"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

var ErrInvalidToken = errors.New("invalid token")

const issuer = "tripdesk"

func IssueToken(secret []byte, p Principal, ttl time.Duration, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("jwt secret is empty")
	}
	claims := Claims{
		Role:        p.Role,
		Permissions: p.Permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func ParseToken(secret []byte, token string) (Principal, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" || claims.Role == "" {
		return Principal{}, fmt.Errorf("%w: missing subject or role", ErrInvalidToken)
	}
	return Principal{ID: claims.Subject, Role: claims.Role, Permissions: claims.Permissions}, nil
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
