package model

import "strings"

// Role represents user roles in the system
type Role struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	Code        string      `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"` // ADMIN, MANAGER, STAFF
	Name        string      `gorm:"type:varchar(100)" json:"name"`
	Description string      `gorm:"type:text" json:"description"`
	Privileges  []Privilege `gorm:"many2many:role_privileges;" json:"privileges,omitempty"`
}

// Role codes as constants
const (
	RoleAdmin   = "ADMIN"
	RoleManager = "MANAGER"
	RoleStaff   = "STAFF"
)

// DefaultRoles defines the default roles in the system
var DefaultRoles = []Role{
	{
		Code:        RoleAdmin,
		Name:        "Administrator",
		Description: "Full system access including user management",
	},
	{
		Code:        RoleManager,
		Name:        "Manager",
		Description: "Catalog, orders and reports",
	},
	{
		Code:        RoleStaff,
		Name:        "Staff",
		Description: "Order desk",
	},
}

var staffPrivileges = map[string]bool{
	PrivProductView:   true,
	PrivOrderView:     true,
	PrivOrderCreate:   true,
	PrivOrderComplete: true,
	PrivOrderCancel:   true,
	PrivDashboardView: true,
}

// DefaultRoleGrants picks the privileges a role gets when it is first seeded
func DefaultRoleGrants(roleCode string, all []Privilege) []Privilege {
	granted := make([]Privilege, 0, len(all))
	for _, p := range all {
		switch roleCode {
		case RoleAdmin:
			granted = append(granted, p)
		case RoleManager:
			if !strings.HasPrefix(p.Code, "user:") {
				granted = append(granted, p)
			}
		case RoleStaff:
			if staffPrivileges[p.Code] {
				granted = append(granted, p)
			}
		}
	}
	return granted
}
