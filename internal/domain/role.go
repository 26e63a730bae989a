package domain

// Role enumerates OMS roles relevant to ticket chat access.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleOps      Role = "OPS"
	RoleAccounts Role = "ACCOUNTS"
	RoleVendor   Role = "VENDOR"
)

// HasRole reports whether role is present in roles.
func HasRole(roles []Role, role Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
