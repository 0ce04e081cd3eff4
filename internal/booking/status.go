// Package booking drives the appointment lifecycle: submission, conflict
// checks and admin decisions.
package booking

import (
	"fmt"
	"strings"

	"gymbook/internal/model"
)

// Action is an admin decision over a pending request.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// ParseAction accepts "approve" or "reject" in any case.
func ParseAction(v string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(v))) {
	case ActionApprove:
		return ActionApprove, nil
	case ActionReject:
		return ActionReject, nil
	default:
		return "", &ValidationError{Field: "action", Message: fmt.Sprintf("unknown action %q", v)}
	}
}

// Target returns the status the action moves a request to.
func (a Action) Target() model.Status {
	switch a {
	case ActionApprove:
		return model.StatusApproved
	case ActionReject:
		return model.StatusRejected
	default:
		return model.StatusPending
	}
}

var transitions = map[model.Status][]model.Status{
	model.StatusPending:  {model.StatusApproved, model.StatusRejected},
	model.StatusApproved: {},
	model.StatusRejected: {},
}

// CanTransition checks if the lifecycle allows moving from one status to another.
func CanTransition(from, to model.Status) bool {
	allowed, ok := transitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}
