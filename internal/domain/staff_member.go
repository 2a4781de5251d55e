package domain

import "time"

// StaffRole enumerates internal operator roles.
type StaffRole string

const (
	StaffRoleAnalyst StaffRole = "ANALYST"
	StaffRoleManager StaffRole = "MANAGER"
	StaffRoleFinance StaffRole = "FINANCE"
	StaffRoleHR      StaffRole = "HR"
	StaffRoleAdmin   StaffRole = "ADMIN"
)

// Valid reports whether the role is one of the known staff roles.
func (r StaffRole) Valid() bool {
	switch r {
	case StaffRoleAnalyst, StaffRoleManager, StaffRoleFinance, StaffRoleHR, StaffRoleAdmin:
		return true
	}
	return false
}

// StaffMember models an employee who works approval tasks.
type StaffMember struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         StaffRole
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
