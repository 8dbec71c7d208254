package core

// Action is a capability checked against the caller's Identity.
type Action string

const (
	ActionRegister Action = "register batches"
	ActionDivide   Action = "divide"
	ActionTransfer Action = "transfer"
	ActionPackage  Action = "package"
	ActionShip     Action = "ship"
	ActionAccept   Action = "accept transactions"
	ActionReject   Action = "reject transactions"
)

type rule struct {
	roles []Role // empty: any role
	party bool   // caller must be one of the parties passed to authorize
}

var policy = map[Action]rule{
	ActionRegister: {roles: []Role{RoleFarmer}},
	ActionDivide:   {party: true},
	ActionTransfer: {party: true},
	ActionPackage:  {roles: []Role{RoleFarmer, RoleDistributor}, party: true},
	ActionShip:     {party: true},
	ActionAccept:   {party: true},
	ActionReject:   {party: true},
}

// authorize is the only place the ledger looks at who the caller is.
// parties are the user ids allowed to act on the entity (owner, buyer...).
func authorize(who Identity, action Action, parties ...string) error {
	if who.UserID == "" {
		return &AuthorizationError{Action: action, Reason: "no caller identity"}
	}
	r, ok := policy[action]
	if !ok {
		return &AuthorizationError{UserID: who.UserID, Action: action, Reason: "unknown action"}
	}
	if len(r.roles) > 0 && !hasRole(r.roles, who.Role) {
		return &AuthorizationError{UserID: who.UserID, Action: action, Reason: "role " + string(who.Role) + " is not permitted"}
	}
	if r.party {
		for _, p := range parties {
			if p == who.UserID {
				return nil
			}
		}
		return &AuthorizationError{UserID: who.UserID, Action: action, Reason: "caller is not a party to this entity"}
	}
	return nil
}

func hasRole(roles []Role, r Role) bool {
	for _, x := range roles {
		if x == r {
			return true
		}
	}
	return false
}
