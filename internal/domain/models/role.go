package models

import "fmt"

// Role identifies the author of a message. It is a closed set; the
// persisted string form is mapped through ParseRole so unknown values
// are rejected at the boundary instead of deep in business logic.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole maps a persisted string to a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleSystem, RoleUser, RoleAssistant:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown message role %q", s)
	}
}

func (r Role) String() string {
	return string(r)
}
