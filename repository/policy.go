package repository

import (
	"fmt"
	"strings"
)

// ConflictPolicy decides which collisions reject a new admin account.
// A username collision always fails at the UNIQUE constraint regardless.
type ConflictPolicy int

const (
	// PolicyRejectAny rejects when the username or the email is taken.
	PolicyRejectAny ConflictPolicy = iota
	// PolicyRejectBoth rejects up front only when both are taken, so an
	// email may be reused by a new username.
	PolicyRejectBoth
)

// ParseConflictPolicy maps the configuration values "strict" and "lenient".
// An empty string selects strict.
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return PolicyRejectAny, nil
	case "lenient":
		return PolicyRejectBoth, nil
	default:
		return PolicyRejectAny, fmt.Errorf("unknown provisioning policy %q", s)
	}
}

func (p ConflictPolicy) String() string {
	switch p {
	case PolicyRejectAny:
		return "strict"
	case PolicyRejectBoth:
		return "lenient"
	default:
		return fmt.Sprintf("ConflictPolicy(%d)", int(p))
	}
}

// rejects reports whether the precondition fails for the observed collisions.
func (p ConflictPolicy) rejects(usernameTaken, emailTaken bool) bool {
	if p == PolicyRejectBoth {
		return usernameTaken && emailTaken
	}
	return usernameTaken || emailTaken
}
