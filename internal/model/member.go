package model

import (
	"strings"
	"time"
)

// Member is a person belonging to the organization.
type Member struct {
	ID           int         `json:"id"`
	FirstName    string      `json:"first_name"`
	LastName     string      `json:"last_name"`
	Email        string      `json:"email"`
	Role         MandateRole `json:"role"`
	PasswordHash string      `json:"-"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// DisplayName returns "First Last".
func (m Member) DisplayName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

// ExportBaseName returns a file-name-safe stem such as "mandates_jane_doe".
func (m Member) ExportBaseName() string {
	name := strings.ToLower(m.DisplayName())
	var b strings.Builder
	b.WriteString("mandates_")
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('_')
		}
	}
	return b.String()
}

// LoginRequest is the payload for member authentication.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// LoginResponse is returned after a successful login.
type LoginResponse struct {
	Token       string   `json:"token"`
	Member      Member   `json:"member"`
	Permissions []string `json:"permissions"`
}

// MeResponse describes the caller of GET /auth/me.
type MeResponse struct {
	Member      Member   `json:"member"`
	Permissions []string `json:"permissions"`
}

// Can reports whether the listed permissions include p.
func (r MeResponse) Can(p Permission) bool {
	for _, code := range r.Permissions {
		if code == string(p) {
			return true
		}
	}
	return false
}

// CreateMemberRequest is the payload for creating a member.
type CreateMemberRequest struct {
	FirstName string      `json:"first_name" binding:"required,min=1,max=100"`
	LastName  string      `json:"last_name" binding:"required,min=1,max=100"`
	Email     string      `json:"email" binding:"required,email,max=255"`
	Role      MandateRole `json:"role" binding:"required,mandate_role"`
	Password  string      `json:"password" binding:"omitempty,min=6,max=128"`
}

// UpdateMemberRequest is the payload for updating a member.
type UpdateMemberRequest struct {
	FirstName string      `json:"first_name" binding:"required,min=1,max=100"`
	LastName  string      `json:"last_name" binding:"required,min=1,max=100"`
	Email     string      `json:"email" binding:"required,email,max=255"`
	Role      MandateRole `json:"role" binding:"required,mandate_role"`
}
