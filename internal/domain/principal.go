package domain

// Principal is the authenticated caller derived from a verified credential.
// It is fixed for the lifetime of a connection or request.
type Principal struct {
	ID    string
	Roles []Role
}

// HasRole reports whether the principal's credential carried role.
func (p Principal) HasRole(role Role) bool {
	return HasRole(p.Roles, role)
}
