package models

import "time"

type Role string

const (
	RoleCitizen    Role = "citizen"
	RoleStaff      Role = "staff"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

// StaffLevel reports whether the role may work tickets (claim, transition).
func (r Role) StaffLevel() bool {
	return r == RoleStaff || r == RoleSupervisor || r == RoleAdmin
}

func (r Role) Valid() bool {
	switch r {
	case RoleCitizen, RoleStaff, RoleSupervisor, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// StaffProfile extends a staff/supervisor user 1:1.
// ReportsTo is a weak reference to a supervisor- or admin-role user.
type StaffProfile struct {
	UserID     string `json:"userId"`
	Department string `json:"department,omitempty"`
	Ward       string `json:"ward,omitempty"`
	ReportsTo  string `json:"reportsTo,omitempty"`
}

// Actor is the identity a mutation or query runs as, derived from the
// session at the boundary and passed explicitly down the stack.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}
