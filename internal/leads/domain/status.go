// Package domain provides core business rules for the leads bounded context.
package domain

import (
	"fmt"
	"time"

	"fleetcrm_backend/platform/apperr"
)

// Status is a lead's position in the acquisition funnel.
type Status string

const (
	StatusNew               Status = "new"
	StatusEmailVerified     Status = "email_verified"
	StatusDemo              Status = "demo"
	StatusCallbackRequested Status = "callback_requested"
	StatusProposalSent      Status = "proposal_sent"
	StatusPaymentPending    Status = "payment_pending"
	StatusConverted         Status = "converted"
	StatusLost              Status = "lost"
	StatusNurturing         Status = "nurturing"
	StatusDisqualified      Status = "disqualified"
)

// AllStatuses lists every member of the status enumeration. A persisted
// value outside this set is a data-integrity violation.
var AllStatuses = []Status{
	StatusNew,
	StatusEmailVerified,
	StatusDemo,
	StatusCallbackRequested,
	StatusProposalSent,
	StatusPaymentPending,
	StatusConverted,
	StatusLost,
	StatusNurturing,
	StatusDisqualified,
}

var knownStatuses = func() map[Status]struct{} {
	m := make(map[Status]struct{}, len(AllStatuses))
	for _, s := range AllStatuses {
		m[s] = struct{}{}
	}
	return m
}()

// Valid reports whether s is a member of the status enumeration.
func (s Status) Valid() bool {
	_, ok := knownStatuses[s]
	return ok
}

// Terminal reports whether no further transitions are allowed out of s.
func (s Status) Terminal() bool {
	return s == StatusConverted || s == StatusDisqualified
}

// transitions is the authoritative table of legal status moves.
var transitions = map[Status][]Status{
	StatusNew:               {StatusDemo, StatusNurturing, StatusDisqualified, StatusEmailVerified},
	StatusEmailVerified:     {StatusDemo, StatusCallbackRequested, StatusNurturing, StatusDisqualified},
	StatusDemo:              {StatusProposalSent, StatusNurturing, StatusLost, StatusDisqualified},
	StatusCallbackRequested: {StatusDemo, StatusNurturing, StatusLost, StatusDisqualified},
	StatusProposalSent:      {StatusPaymentPending, StatusLost, StatusNurturing},
	StatusPaymentPending:    {StatusConverted, StatusLost},
	StatusLost:              {StatusNurturing},
	StatusNurturing:         {StatusDemo, StatusProposalSent, StatusLost},
	StatusConverted:         nil,
	StatusDisqualified:      nil,
}

// CanTransition reports whether the (from, to) pair is in the transition table.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// reasonRequired are the targets that demand a reason code from the policy.
var reasonRequired = map[Status]bool{
	StatusLost:         true,
	StatusNurturing:    true,
	StatusDisqualified: true,
}

// RequiresReason reports whether moving into target needs a reason code.
func RequiresReason(target Status) bool {
	return reasonRequired[target]
}

// TransitionContext carries the metadata accompanying a status change.
type TransitionContext struct {
	// Reason is the reason code, mandatory for lost/nurturing/disqualified.
	Reason string
	// Comment is free-form operator commentary.
	Comment string
	// Actor identifies who triggered the change ("system:nurturing_sweep"
	// or a staff user ID).
	Actor string
	// BookingSlotAt must be set for the nurturing -> demo transition, which
	// is only legal on the back of a fresh booking.
	BookingSlotAt *time.Time
}

// ReasonPolicy maps a target status to its allowed reason codes. It is
// loaded from configuration at startup and injected, never a hidden global.
type ReasonPolicy map[Status][]string

// Allows reports whether the policy permits reason for the target status.
// A target absent from the policy accepts any non-empty reason.
func (p ReasonPolicy) Allows(target Status, reason string) bool {
	codes, ok := p[target]
	if !ok {
		return reason != ""
	}
	for _, code := range codes {
		if code == reason {
			return true
		}
	}
	return false
}

// Transition validation errors.

func errIllegalTransition(from, to Status) *apperr.Error {
	return apperr.New(apperr.KindConflict, "illegal_transition",
		fmt.Sprintf("cannot move lead from %s to %s", from, to))
}

func errTerminalState(from Status) *apperr.Error {
	return apperr.New(apperr.KindConflict, "terminal_state",
		fmt.Sprintf("lead is in terminal status %s", from))
}

func errMissingReason(target Status) *apperr.Error {
	return apperr.New(apperr.KindValidation, "missing_reason",
		fmt.Sprintf("a reason code is required to move a lead to %s", target))
}

// Matchable sentinels for errors.Is.
var (
	ErrIllegalTransition = apperr.New(apperr.KindConflict, "illegal_transition", "illegal status transition")
	ErrTerminalState     = apperr.New(apperr.KindConflict, "terminal_state", "lead is in a terminal status")
	ErrMissingReason     = apperr.New(apperr.KindValidation, "missing_reason", "reason code required")
	ErrUnknownStatus     = apperr.New(apperr.KindValidation, "unknown_status", "unknown lead status")
)

// ValidateTransition checks a proposed status change against the transition
// table, the terminal set, and the reason policy. It returns nil when the
// change may be applied.
func ValidateTransition(from, to Status, policy ReasonPolicy, tctx TransitionContext) error {
	if !from.Valid() || !to.Valid() {
		return ErrUnknownStatus
	}
	if from.Terminal() {
		return errTerminalState(from)
	}
	if !CanTransition(from, to) {
		return errIllegalTransition(from, to)
	}
	if RequiresReason(to) {
		if tctx.Reason == "" {
			return errMissingReason(to)
		}
		if !policy.Allows(to, tctx.Reason) {
			return apperr.New(apperr.KindValidation, "missing_reason",
				fmt.Sprintf("reason code %q is not allowed for status %s", tctx.Reason, to))
		}
	}
	// Re-entering demo from nurturing is only legal via a fresh booking,
	// never a manual status edit.
	if from == StatusNurturing && to == StatusDemo && tctx.BookingSlotAt == nil {
		return errIllegalTransition(from, to)
	}
	return nil
}
