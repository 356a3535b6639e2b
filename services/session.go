package services

import (
	"ledgerly/backend/models"
)

// Identity is a verified authenticated user.
type Identity struct {
	UID   string
	Email string
	Name  string
}

// Session describes who is calling: an authenticated user, a guest, or both when a
// signed-in user still carries a guest cookie (the state right before migration).
type Session struct {
	Identity       *Identity
	GuestSessionID string
	Plan           models.Plan
}

// IsGuest reports whether the request runs in guest mode.
func (s Session) IsGuest() bool {
	return s.Identity == nil && s.GuestSessionID != ""
}

// IsAuthenticated reports whether a verified identity is attached.
func (s Session) IsAuthenticated() bool {
	return s.Identity != nil
}

// OwnerID is the owner used to scope data access.
func (s Session) OwnerID() string {
	if s.Identity != nil {
		return s.Identity.UID
	}
	return models.GuestOwnerID
}
