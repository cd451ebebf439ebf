package domain

// Role is the SkillSphere account role carried in the bearer token.
type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleCompany    Role = "company"
)

// CanAuthor reports whether the role may build and deploy courses.
func (r Role) CanAuthor() bool {
	return r == RoleInstructor || r == RoleCompany
}
