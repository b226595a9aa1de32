package models

// Principal is the acting identity attached to every mutating call. It is
// supplied by the identity provider (verified upstream); this core trusts
// its contents.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

const (
	RoleUser    = "user"
	RoleManager = "manager"
	RoleAdmin   = "admin"
	RoleSystem  = "system"
)

// SystemPrincipal is the synthetic actor used by scheduler-originated
// transitions so audit entries attribute them to the system.
func SystemPrincipal() Principal {
	return Principal{ID: "system", Email: "system@localhost", Role: RoleSystem}
}

func (p Principal) IsStaff() bool {
	return p.Role == RoleAdmin || p.Role == RoleManager
}
