package core

import "strings"

// Role is the capability class of a caller, resolved by the external
// authentication service.
type Role string

const (
	RoleFarmer         Role = "farmer"
	RoleDistributor    Role = "distributor"
	RoleConsumer       Role = "consumer"
	RoleQualityOfficer Role = "quality_officer"
)

// ParseRole normalizes a role claim. "middleman" is the legacy name of the
// distributor role.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "farmer":
		return RoleFarmer, true
	case "distributor", "middleman":
		return RoleDistributor, true
	case "consumer":
		return RoleConsumer, true
	case "quality_officer", "quality-officer":
		return RoleQualityOfficer, true
	}
	return "", false
}

// Identity is the opaque caller context passed into every ledger operation.
// The ledger never sees credentials.
type Identity struct {
	UserID string
	Role   Role
}
