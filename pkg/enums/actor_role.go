package enums

import "fmt"

// ActorRole identifies the privilege level of the caller requesting an
// operation. The system role is reserved for background workers.
type ActorRole string

const (
	ActorRoleCustomer    ActorRole = "customer"
	ActorRoleFulfillment ActorRole = "fulfillment"
	ActorRoleAdmin       ActorRole = "admin"
	ActorRoleSystem      ActorRole = "system"
)

var validActorRoles = []ActorRole{
	ActorRoleCustomer,
	ActorRoleFulfillment,
	ActorRoleAdmin,
	ActorRoleSystem,
}

// String implements fmt.Stringer.
func (a ActorRole) String() string {
	return string(a)
}

// IsValid reports whether the value is a known ActorRole.
func (a ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == a {
			return true
		}
	}
	return false
}

// IsPrivileged reports whether the role may drive arbitrary order transitions.
func (a ActorRole) IsPrivileged() bool {
	switch a {
	case ActorRoleFulfillment, ActorRoleAdmin, ActorRoleSystem:
		return true
	default:
		return false
	}
}

// ParseActorRole converts raw input into an ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}
