package domain

import (
	"slices"
	"time"
)

// OfficialRole enumerates municipal staff roles.
type OfficialRole string

const (
	OfficialRoleOfficer    OfficialRole = "OFFICER"
	OfficialRoleSupervisor OfficialRole = "SUPERVISOR"
	OfficialRoleAdmin      OfficialRole = "ADMIN"
)

// Valid reports whether r is a known role.
func (r OfficialRole) Valid() bool {
	return r.In(OfficialRoleOfficer, OfficialRoleSupervisor, OfficialRoleAdmin)
}

// In reports whether r is one of roles.
func (r OfficialRole) In(roles ...OfficialRole) bool {
	return slices.Contains(roles, r)
}

// Official is a municipal employee who triages complaints. Officials act
// through their role, never through a complaint secret.
type Official struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         OfficialRole
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
