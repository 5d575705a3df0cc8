package repository

// TicketFilter constrains the admin/back-office List view. The named
// citizen/staff views have fixed ordering and take no filter.
type TicketFilter struct {
	Q          string // free text over title/description
	Status     string
	Category   string
	AssignedTo string
	Limit      int
	Offset     int
	Sort       string // created_at, updated_at
	Order      string // asc|desc
}
