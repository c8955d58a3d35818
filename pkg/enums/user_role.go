package enums

import "fmt"

// UserRole identifies the level of access a principal carries.
type UserRole string

const (
	RoleAdmin    UserRole = "admin"
	RoleStaff    UserRole = "staff"
	RoleCustomer UserRole = "customer"
)

func (r UserRole) IsValid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleCustomer:
		return true
	}
	return false
}

// CanManageLedger reports whether the role may record movements and payments.
func (r UserRole) CanManageLedger() bool {
	return r == RoleAdmin || r == RoleStaff
}

func ParseUserRole(value string) (UserRole, error) {
	role := UserRole(value)
	if !role.IsValid() {
		return "", fmt.Errorf("invalid user role %q", value)
	}
	return role, nil
}
