package domain

import "github.com/google/uuid"

const (
	RoleAdmin   = "admin"
	RoleService = "service"
)

// AdminPrincipal is the verified caller of an engine operation.
type AdminPrincipal struct {
	ID   uuid.UUID `json:"id"`
	Role string    `json:"role"`
}

// IsAdmin reports whether the principal may mutate wallets.
func (p AdminPrincipal) IsAdmin() bool {
	return p.Role == RoleAdmin && p.ID != uuid.Nil
}

// KnownRole reports whether role is one the engine issues tokens for.
func KnownRole(role string) bool {
	return role == RoleAdmin || role == RoleService
}
