package domain

import "time"

// Role is the coarse-grained role carried by a principal.
type Role string

const (
	RoleUser  Role = "user"
	RoleGuide Role = "guide"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleGuide, RoleAdmin:
		return true
	}
	return false
}

// Principal is the already-authenticated acting user.
type Principal struct {
	ID   string
	Role Role
}

// SystemPrincipal acts on behalf of scheduled maintenance jobs.
var SystemPrincipal = Principal{ID: "system", Role: RoleAdmin}

// User is the subset of account data the booking core needs (notification address).
type User struct {
	ID        string
	Email     string
	Name      string
	Role      Role
	CreatedAt time.Time
}
