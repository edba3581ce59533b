package models

const (
	RoleCreator = "creator"
	RoleClient  = "client"
	RoleAdmin   = "admin"
)

// Actor is the authenticated caller of a mutating operation.
type Actor struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// CanManage reports whether the actor may change creatorID's calendar.
func (a Actor) CanManage(creatorID string) bool {
	if a.Role == RoleAdmin {
		return true
	}
	return a.Role == RoleCreator && a.ID != "" && a.ID == creatorID
}
