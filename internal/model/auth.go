package model

import "time"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
	RoleSystem   Role = "system"
)

// IsStaff reports whether the role may act on any chat.
func (r Role) IsStaff() bool {
	return r == RoleStaff || r == RoleAdmin
}

// Identity is the authenticated caller as issued by the identity provider.
type Identity struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
}

// SystemIdentity authors lifecycle messages.
var SystemIdentity = Identity{UserID: "system", Name: "System", Role: RoleSystem}

// StaffMember is a row of the support roster used for auto-assignment.
type StaffMember struct {
	UserID         string     `json:"user_id"`
	DisplayName    string     `json:"display_name"`
	Active         bool       `json:"active"`
	LastAssignedAt *time.Time `json:"last_assigned_at,omitempty"`
}

// StaffUpdateRequest is the admin payload for PUT /admin/staff/:id.
type StaffUpdateRequest struct {
	DisplayName string `json:"display_name"`
	Active      bool   `json:"active"`
}

type ValidateTokenRequest struct {
	Token string `json:"token"`
}

type ValidateTokenResponse struct {
	Valid  bool   `json:"valid"`
	UserID string `json:"user_id,omitempty"`
	Name   string `json:"name,omitempty"`
	Role   Role   `json:"role,omitempty"`
}
