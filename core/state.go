package core

// State is a step of the reconciliation state machine.
//
//	Start -> ResolvingEmail -> {Creating, Linking, Authenticating} -> ClaimsIssued
//	                                                               \-> Rejected
type State string

const (
	StateStart          State = "start"
	StateResolvingEmail State = "resolving_email"
	StateCreating       State = "creating"
	StateLinking        State = "linking"
	StateAuthenticating State = "authenticating"
	StateClaimsIssued   State = "claims_issued"
	StateRejected       State = "rejected"
)

func (s State) String() string { return string(s) }

// Terminal reports whether no further transition is possible from s.
func (s State) Terminal() bool {
	return s == StateClaimsIssued || s == StateRejected
}

var transitions = map[State][]State{
	StateStart:          {StateResolvingEmail, StateRejected},
	StateResolvingEmail: {StateCreating, StateLinking, StateAuthenticating, StateRejected},
	StateCreating:       {StateLinking, StateClaimsIssued, StateRejected},
	StateLinking:        {StateClaimsIssued, StateRejected},
	StateAuthenticating: {StateClaimsIssued, StateRejected},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
