package domain

import "strings"

// Role selects which of the independently issued bearer tokens a call uses.
// The three identities are never combined.
type Role string

const (
	RoleUser     Role = "user"
	RoleSubAdmin Role = "sub-admin"
	RoleAdmin    Role = "admin"
)

// Roles lists every token slot.
var Roles = []Role{RoleUser, RoleSubAdmin, RoleAdmin}

// ParseRole accepts the path spellings used by the desk API.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user":
		return RoleUser, true
	case "sub-admin", "subadmin", "validator":
		return RoleSubAdmin, true
	case "admin":
		return RoleAdmin, true
	}
	return "", false
}

// UsesOTP reports whether signing in as r takes a second OTP step.
func (r Role) UsesOTP() bool {
	return r == RoleAdmin || r == RoleSubAdmin
}

// Actor is who requests a lifecycle transition. Buyers and sellers are
// both plain users; the distinction picks the endpoint and the legal moves.
type Actor string

const (
	ActorBuyer    Actor = "buyer"
	ActorSeller   Actor = "seller"
	ActorSubAdmin Actor = "sub-admin"
	ActorAdmin    Actor = "admin"
)

// ParseActor parses an actor path segment.
func ParseActor(s string) (Actor, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buyer":
		return ActorBuyer, true
	case "seller":
		return ActorSeller, true
	case "sub-admin", "subadmin", "validator":
		return ActorSubAdmin, true
	case "admin":
		return ActorAdmin, true
	}
	return "", false
}

// Role returns the token slot the actor calls with.
func (a Actor) Role() Role {
	switch a {
	case ActorSubAdmin:
		return RoleSubAdmin
	case ActorAdmin:
		return RoleAdmin
	default:
		return RoleUser
	}
}

// IsStaff reports whether a moderates orders rather than trading.
func (a Actor) IsStaff() bool {
	return a == ActorSubAdmin || a == ActorAdmin
}
