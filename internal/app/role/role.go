package role

type Role int

const (
	Applicant Role = iota // 0
	Support               // 1
	Admin                 // 2
)

func (r Role) String() string {
	switch r {
	case Applicant:
		return "applicant"
	case Support:
		return "support"
	case Admin:
		return "admin"
	}
	return "unknown"
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r >= Applicant && r <= Admin
}
