package models

type Actor struct {
	EmployeeID  string   `json:"employee_id"`
	DisplayName string   `json:"display_name,omitempty"`
	Roles       []string `json:"roles"`
	StoreIDs    []string `json:"store_ids,omitempty"`
}

func (a Actor) HasAnyRole(roles ...string) bool {
	for _, have := range a.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

const (
	RoleOwner        = "Owner"
	RoleAdmin        = "Admin"
	RoleManager      = "Manager"
	RoleSupervisor   = "Supervisor"
	RoleReceptionist = "Receptionist"
	RoleTechnician   = "Technician"
	RoleSpaExpert    = "Spa Expert"
	RoleCashier      = "Cashier"
)
