package auth

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrUnauthorized = errors.New("auth: unauthorized")
	ErrForbidden    = errors.New("auth: forbidden")
)

// Role is a portal role. Roles are ordered: admin can do whatever a cashier can,
// and a cashier whatever a student can.
type Role string

const (
	RoleStudent Role = "student"
	RoleCashier Role = "cashier"
	RoleAdmin   Role = "admin"
)

var roleRanks = map[Role]int{
	RoleStudent: 1,
	RoleCashier: 2,
	RoleAdmin:   3,
}

// ParseRole accepts role names case-insensitively. "registrar" is the
// portal's older name for the admin role.
func ParseRole(value string) (Role, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "registrar" {
		return RoleAdmin, true
	}
	role := Role(value)
	if _, ok := roleRanks[role]; !ok {
		return "", false
	}
	return role, true
}

// Covers reports whether r satisfies the required role.
func (r Role) Covers(required Role) bool {
	return roleRanks[r] > 0 && roleRanks[r] >= roleRanks[required]
}

// Identity is the authenticated caller. For students Subject is the student id
// their enrollments reference; for staff it is the staff user id.
type Identity struct {
	SchoolID string
	Role     Role
	Subject  string
}

type identityKey struct{}

// WithIdentity attaches the caller identity to ctx.
func WithIdentity(ctx context.Context, schoolID string, role Role, subject string) context.Context {
	return context.WithValue(ctx, identityKey{}, Identity{SchoolID: schoolID, Role: role, Subject: subject})
}

// IdentityFromContext returns the caller identity, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

func SchoolIDFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.SchoolID
}

func RoleFromContext(ctx context.Context) Role {
	id, _ := IdentityFromContext(ctx)
	return id.Role
}

func SubjectFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.Subject
}

// EnsureStudentAccess rejects a student reading another student's statement.
// Staff and anonymous contexts (auth disabled) pass.
func EnsureStudentAccess(ctx context.Context, studentID string) error {
	id, ok := IdentityFromContext(ctx)
	if !ok || id.Role != RoleStudent {
		return nil
	}
	if id.Subject == "" || id.Subject != studentID {
		return ErrForbidden
	}
	return nil
}
