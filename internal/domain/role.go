package domain

// Session roles.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// AdminSet holds the normalized identifiers granted RoleAdmin on sign-in.
type AdminSet map[string]struct{}

// RoleOf returns the role a freshly verified identifier is signed in with.
func (s AdminSet) RoleOf(identifier string) string {
	if _, ok := s[identifier]; ok {
		return RoleAdmin
	}
	return RoleUser
}
