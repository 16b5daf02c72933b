package models

import "github.com/golang-jwt/jwt/v5"

// Role identifies the caller class encoded in access tokens.
type Role string

// Known roles. Tokens are issued by the identity service; this API only
// verifies them.
const (
	RoleStaff  Role = "STAFF"
	RoleAdmin  Role = "ADMIN"
	RoleParent Role = "PARENT"
)

// JWTClaims is the access-token payload this API consumes.
type JWTClaims struct {
	UserID   string `json:"uid"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	SchoolID string `json:"school_id,omitempty"`
	jwt.RegisteredClaims
}

// IsStaff reports whether the claims grant staff-level access.
func (c *JWTClaims) IsStaff() bool {
	return c != nil && (c.Role == RoleStaff || c.Role == RoleAdmin)
}
