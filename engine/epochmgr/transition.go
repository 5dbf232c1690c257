package epochmgr

import "fmt"

// RoleTransition describes how the role of this node changes at an epoch boundary.
type RoleTransition int

const (
	// Continue: validator in both epochs. Components are torn down and rebuilt for the new epoch.
	Continue RoleTransition = iota
	// Demote: validator leaving the committee. Components are torn down and not rebuilt.
	Demote
	// Promote: fullnode joining the committee. Components are built for the new epoch.
	Promote
	// Noop: fullnode in both epochs.
	Noop
)

// Transition returns the role transition between an epoch in which the node was a validator
// or not, and the next epoch in which it will be a validator or not.
func Transition(wasValidator, willBeValidator bool) RoleTransition {
	switch {
	case wasValidator && willBeValidator:
		return Continue
	case wasValidator:
		return Demote
	case willBeValidator:
		return Promote
	default:
		return Noop
	}
}

func (t RoleTransition) String() string {
	switch t {
	case Continue:
		return "continue"
	case Demote:
		return "demote"
	case Promote:
		return "promote"
	case Noop:
		return "noop"
	default:
		return fmt.Sprintf("role_transition(%d)", int(t))
	}
}

// TearsDown returns true if the running components are stopped at the boundary.
func (t RoleTransition) TearsDown() bool {
	return t == Continue || t == Demote
}

// Constructs returns true if components are built for the next epoch.
func (t RoleTransition) Constructs() bool {
	return t == Continue || t == Promote
}
