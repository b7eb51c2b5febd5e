package shared

// Roles known to the platform.
const (
	RoleAdmin    = "admin"
	RoleStandard = "standard"
)

// Roles lists every assignable role.
func Roles() []string {
	return []string{RoleAdmin, RoleStandard}
}
