package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Role names recognised by the relay. Tokens carrying anything else are
// treated as regular users with no scoped group.
const (
	RoleStudent    = "student"
	RoleAdmin      = "admin"
	RoleUniversity = "university"
	RoleEmployer   = "employer"
)

var (
	// ErrTokenMissing indicates no credential was presented at all.
	ErrTokenMissing = errors.New("authentication required")

	// ErrTokenInvalid indicates the credential failed verification.
	ErrTokenInvalid = errors.New("invalid token")
)

// Claims is the verified identity attached to a connection or request.
type Claims struct {
	UserID       string
	Name         string
	Role         string
	UniversityID string
	EmployerID   string
}

// OrganizationID returns the organization identifier implied by the role,
// or an empty string for roles without organizational scope.
func (c Claims) OrganizationID() string {
	switch c.Role {
	case RoleUniversity:
		return c.UniversityID
	case RoleEmployer:
		return c.EmployerID
	default:
		return ""
	}
}

// Privileged reports whether the identity may receive the activity stream.
func (c Claims) Privileged() bool {
	return c.Role == RoleAdmin
}

// Verifier validates HMAC-signed bearer tokens and extracts identity claims.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a token verifier for the given shared secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates a raw token string. An empty token yields
// ErrTokenMissing; any parse or signature failure yields ErrTokenInvalid.
func (v *Verifier) Verify(tokenString string) (Claims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return Claims{}, ErrTokenMissing
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return Claims{}, ErrTokenInvalid
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrTokenInvalid
	}

	claims := Claims{
		UserID:       stringClaim(mapClaims, "sub", "user_id", "id"),
		Name:         stringClaim(mapClaims, "name"),
		Role:         strings.ToLower(stringClaim(mapClaims, "role")),
		UniversityID: stringClaim(mapClaims, "university_id", "universityId"),
		EmployerID:   stringClaim(mapClaims, "employer_id", "employerId"),
	}

	if claims.UserID == "" {
		return Claims{}, ErrTokenInvalid
	}

	return claims, nil
}

// BearerToken extracts the raw token from an Authorization header value.
// Returns an empty string when the header does not carry a bearer token.
func BearerToken(authorization string) string {
	const bearer = "bearer "
	if len(authorization) < len(bearer) {
		return ""
	}
	if !strings.EqualFold(authorization[:len(bearer)], bearer) {
		return ""
	}
	return strings.TrimSpace(authorization[len(bearer):])
}

func stringClaim(claims jwt.MapClaims, keys ...string) string {
	for _, key := range keys {
		value, ok := claims[key]
		if !ok {
			continue
		}
		switch v := value.(type) {
		case string:
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return trimmed
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}
