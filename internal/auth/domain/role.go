package domain

import (
	"errors"
	"strings"
)

// Role is the coarse authorization level of a user.
type Role string

const (
	RoleNone  Role = ""
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

var ErrUnknownRole = errors.New("unknown_role")

// ParseRole accepts a role name in any case. The empty string maps to
// RoleNone.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleNone, RoleAdmin, RoleUser:
		return r, nil
	default:
		return RoleNone, ErrUnknownRole
	}
}

func (r Role) String() string { return string(r) }
