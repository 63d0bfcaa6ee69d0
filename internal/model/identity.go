package model

// Identity is the authenticated caller as established by the JWT
// middleware.  System jobs and webhooks act with the admin role.
type Identity struct {
	UserID string
	Role   string
}

// IsAdmin reports whether the caller has the admin role.
func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// System is the identity used by scheduled jobs and trusted webhooks.
var System = Identity{UserID: "system", Role: RoleAdmin}
