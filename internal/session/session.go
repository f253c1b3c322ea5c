// Package session models who is signed in for one request.
//
// A State has exactly two phases, LoggedOut and LoggedIn. The only way in is
// Login, which sets the user, role and profile in one step; the only ways
// out are Logout and Fail. There is no half-authenticated state: either all
// of User, Role and Authenticated are set or none of them are.
//
// State is a plain value owned by whoever built it (the auth service builds
// one per request from the JWT). It is not safe for concurrent mutation and
// is never shared between requests.
package session

import (
	"errors"
	"fmt"

	"github.com/toptuitions/toptuitions/internal/model"
)

// Phase is the state machine position.
type Phase int

const (
	LoggedOut Phase = iota
	LoggedIn
)

func (p Phase) String() string {
	switch p {
	case LoggedIn:
		return "logged_in"
	default:
		return "logged_out"
	}
}

// ErrNotLoggedIn is returned by operations that require the LoggedIn phase.
var ErrNotLoggedIn = errors.New("session: not logged in")

// LoginPayload is everything a successful sign-in carries.
type LoginPayload struct {
	User    *model.UserRef
	Role    model.Role
	Profile *model.Profile // optional
}

// State is the session store.
type State struct {
	User          *model.UserRef `json:"user"`
	Role          model.Role     `json:"userType,omitempty"`
	Profile       *model.Profile `json:"userProfile"`
	Authenticated bool           `json:"isAuthenticated"`
	Err           string         `json:"error,omitempty"`
}

// New returns the initial LoggedOut state.
func New() *State {
	return &State{}
}

// Phase reports the current phase.
func (s *State) Phase() Phase {
	if s.Authenticated {
		return LoggedIn
	}
	return LoggedOut
}

// Login moves to LoggedIn. The payload is validated first; an invalid payload
// leaves the state untouched.
func (s *State) Login(p LoginPayload) error {
	if p.User == nil || p.User.UID == "" {
		return errors.New("session: login requires a user")
	}
	if !p.Role.Valid() {
		return fmt.Errorf("session: login requires a valid role, got %q", p.Role)
	}

	var profile *model.Profile
	if p.Profile != nil {
		cp := *p.Profile
		profile = &cp
	}
	user := *p.User

	*s = State{
		User:          &user,
		Role:          p.Role,
		Profile:       profile,
		Authenticated: true,
	}
	return nil
}

// Logout clears every field in one step.
func (s *State) Logout() {
	*s = State{}
}

// Fail forces LoggedOut and keeps the cause. Used when the identity is valid
// but the profile could not be loaded: fail closed.
func (s *State) Fail(cause error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	*s = State{Err: msg}
}

// ClearError drops a retained failure cause without changing the phase.
func (s *State) ClearError() {
	s.Err = ""
}

// UpdateProfile shallow-merges patch into the profile. It is a precondition
// violation to call it while LoggedOut; the state is left unchanged.
func (s *State) UpdateProfile(patch model.ProfilePatch) error {
	if !s.Authenticated {
		return ErrNotLoggedIn
	}
	var base model.Profile
	if s.Profile != nil {
		base = *s.Profile
	}
	merged := base.Merge(patch)
	s.Profile = &merged
	return nil
}

// IsStudent reports whether a student is signed in.
func (s *State) IsStudent() bool {
	return s.Authenticated && s.Role == model.RoleStudent
}

// IsTuitionOwner reports whether a tuition owner is signed in.
func (s *State) IsTuitionOwner() bool {
	return s.Authenticated && s.Role == model.RoleTuitionOwner
}

// Home is where the navbar's dashboard link points: the role's dashboard
// when signed in, /login otherwise.
func (s *State) Home() string {
	if !s.Authenticated {
		return "/login"
	}
	return s.Role.Dashboard()
}
