package model

import (
	"fmt"
	"time"
)

// Role discriminates between the two capability sets of the app.
//
// It's a closed set: every switch over Role must handle RoleStudent and
// RoleTuitionOwner. ParseRole is the only way untrusted input becomes a Role.
type Role string

const (
	RoleStudent      Role = "student"
	RoleTuitionOwner Role = "tuition_owner"
)

// ParseRole converts a raw string (from a form, cookie or DB column) into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleStudent:
		return RoleStudent, nil
	case RoleTuitionOwner:
		return RoleTuitionOwner, nil
	default:
		return "", fmt.Errorf("model: unknown role %q", s)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// Dashboard returns the home route for the role.
func (r Role) Dashboard() string {
	switch r {
	case RoleStudent:
		return "/student-dashboard"
	case RoleTuitionOwner:
		return "/tuition-dashboard"
	default:
		return "/"
	}
}

// ProfileRoute returns the profile page for the role.
func (r Role) ProfileRoute() string {
	switch r {
	case RoleStudent:
		return "/profile"
	case RoleTuitionOwner:
		return "/tuition-profile"
	default:
		return "/"
	}
}

// User is a registered account.
//
// A user signs in with exactly one of: email + password, a Google account,
// or a phone number (OTP). The identifying column for each method is
// unique in the DB, so the same person signing in twice with the same
// method always maps to the same account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	GoogleSub    string    `json:"-"` // Google's stable subject identifier
	PasswordHash string    `json:"-"` // bcrypt hash, empty for federated/phone users
	Role         Role      `json:"userType"`
	Profile      Profile   `json:"profile"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Ref returns the public identity of the user as exposed in the session.
func (u *User) Ref() *UserRef {
	return &UserRef{
		UID:         u.ID,
		Email:       u.Email,
		Phone:       u.Phone,
		DisplayName: u.Profile.Name,
		PhotoURL:    u.Profile.PhotoURL,
	}
}

// UserRef is the authenticated identity carried by a session.
type UserRef struct {
	UID         string `json:"uid"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	PhotoURL    string `json:"photoURL,omitempty"`
}

// Profile is the editable part of a user document.
// TuitionName and TuitionID are only meaningful for tuition owners:
// TuitionID links the owner to a catalog listing (0 = not linked).
type Profile struct {
	Name        string `json:"name"`
	Bio         string `json:"bio,omitempty"`
	Location    string `json:"location,omitempty"`
	Phone       string `json:"phone,omitempty"`
	PhotoURL    string `json:"photoURL,omitempty"`
	TuitionName string `json:"tuitionName,omitempty"`
	TuitionID   int    `json:"tuitionId,omitempty"`
}

// ProfilePatch is a partial profile update. Nil fields are left untouched.
type ProfilePatch struct {
	Name        *string `json:"name,omitempty"        validate:"omitempty,min=1,max=100"`
	Bio         *string `json:"bio,omitempty"         validate:"omitempty,max=500"`
	Location    *string `json:"location,omitempty"    validate:"omitempty,max=100"`
	Phone       *string `json:"phone,omitempty"       validate:"omitempty,phone10"`
	PhotoURL    *string `json:"photoURL,omitempty"    validate:"omitempty,url"`
	TuitionName *string `json:"tuitionName,omitempty" validate:"omitempty,max=100"`
	TuitionID   *int    `json:"tuitionId,omitempty"   validate:"omitempty,min=0"`
}

// Merge returns p with every non-nil field of patch applied (shallow merge).
func (p Profile) Merge(patch ProfilePatch) Profile {
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Bio != nil {
		p.Bio = *patch.Bio
	}
	if patch.Location != nil {
		p.Location = *patch.Location
	}
	if patch.Phone != nil {
		p.Phone = *patch.Phone
	}
	if patch.PhotoURL != nil {
		p.PhotoURL = *patch.PhotoURL
	}
	if patch.TuitionName != nil {
		p.TuitionName = *patch.TuitionName
	}
	if patch.TuitionID != nil {
		p.TuitionID = *patch.TuitionID
	}
	return p
}

// DisplayTuitionName is the name shown on posts: the tuition name when set,
// the owner's own name otherwise.
func (p Profile) DisplayTuitionName() string {
	if p.TuitionName != "" {
		return p.TuitionName
	}
	return p.Name
}
