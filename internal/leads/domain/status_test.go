package domain

import (
	"errors"
	"testing"
	"time"
)

var testReasonPolicy = ReasonPolicy{
	StatusLost:         {"price", "competitor", "no_response"},
	StatusNurturing:    {"auto_stale", "not_ready"},
	StatusDisqualified: {"spam", "out_of_scope"},
}

func TestStatusValid(t *testing.T) {
	for _, s := range AllStatuses {
		if !s.Valid() {
			t.Errorf("expected %s to be valid", s)
		}
	}
	if Status("archived").Valid() {
		t.Error("expected unknown status to be invalid")
	}
	if Status("").Valid() {
		t.Error("expected empty status to be invalid")
	}
}

func TestCanTransitionTable(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusNew, StatusEmailVerified}:              true,
		{StatusNew, StatusDemo}:                       true,
		{StatusNew, StatusNurturing}:                  true,
		{StatusNew, StatusDisqualified}:               true,
		{StatusEmailVerified, StatusDemo}:             true,
		{StatusEmailVerified, StatusCallbackRequested}: true,
		{StatusEmailVerified, StatusNurturing}:        true,
		{StatusEmailVerified, StatusDisqualified}:     true,
		{StatusDemo, StatusProposalSent}:              true,
		{StatusDemo, StatusNurturing}:                 true,
		{StatusDemo, StatusLost}:                      true,
		{StatusDemo, StatusDisqualified}:              true,
		{StatusCallbackRequested, StatusDemo}:         true,
		{StatusCallbackRequested, StatusNurturing}:    true,
		{StatusCallbackRequested, StatusLost}:         true,
		{StatusCallbackRequested, StatusDisqualified}: true,
		{StatusProposalSent, StatusPaymentPending}:    true,
		{StatusProposalSent, StatusLost}:              true,
		{StatusProposalSent, StatusNurturing}:         true,
		{StatusPaymentPending, StatusConverted}:       true,
		{StatusPaymentPending, StatusLost}:            true,
		{StatusLost, StatusNurturing}:                 true,
		{StatusNurturing, StatusDemo}:                 true,
		{StatusNurturing, StatusProposalSent}:         true,
		{StatusNurturing, StatusLost}:                 true,
	}

	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			got := CanTransition(from, to)
			want := allowed[[2]Status{from, to}]
			if got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTerminalStatesRejectAllTransitions(t *testing.T) {
	for _, from := range []Status{StatusConverted, StatusDisqualified} {
		if !from.Terminal() {
			t.Errorf("expected %s to be terminal", from)
		}
		for _, to := range AllStatuses {
			err := ValidateTransition(from, to, testReasonPolicy, TransitionContext{Reason: "auto_stale"})
			if !errors.Is(err, ErrTerminalState) {
				t.Errorf("ValidateTransition(%s, %s) = %v, want terminal state error", from, to, err)
			}
		}
	}
}

func TestValidateTransitionReasonRules(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		tctx    TransitionContext
		wantErr error
	}{
		{
			name: "move to lost without reason",
			from: StatusDemo, to: StatusLost,
			wantErr: ErrMissingReason,
		},
		{
			name: "move to nurturing without reason",
			from: StatusEmailVerified, to: StatusNurturing,
			wantErr: ErrMissingReason,
		},
		{
			name: "move to disqualified without reason",
			from: StatusNew, to: StatusDisqualified,
			wantErr: ErrMissingReason,
		},
		{
			name: "reason outside policy",
			from: StatusDemo, to: StatusLost,
			tctx:    TransitionContext{Reason: "bored"},
			wantErr: ErrMissingReason,
		},
		{
			name: "allowed reason",
			from: StatusDemo, to: StatusLost,
			tctx: TransitionContext{Reason: "price"},
		},
		{
			name: "sweep reason for nurturing",
			from: StatusEmailVerified, to: StatusNurturing,
			tctx: TransitionContext{Reason: "auto_stale", Actor: "system:nurturing_sweep"},
		},
		{
			name: "no reason needed for forward move",
			from: StatusNew, to: StatusEmailVerified,
		},
		{
			name: "unknown source status",
			from: Status("zombie"), to: StatusDemo,
			wantErr: ErrUnknownStatus,
		},
		{
			name: "unknown target status",
			from: StatusNew, to: Status("zombie"),
			wantErr: ErrUnknownStatus,
		},
		{
			name: "illegal pair",
			from: StatusNew, to: StatusConverted,
			wantErr: ErrIllegalTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTransition(tt.from, tt.to, testReasonPolicy, tt.tctx)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNurturingToDemoRequiresBooking(t *testing.T) {
	err := ValidateTransition(StatusNurturing, StatusDemo, testReasonPolicy, TransitionContext{Actor: "staff:ops"})
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected illegal transition without booking, got %v", err)
	}

	slot := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	err = ValidateTransition(StatusNurturing, StatusDemo, testReasonPolicy, TransitionContext{BookingSlotAt: &slot})
	if err != nil {
		t.Fatalf("expected transition with booking to pass, got %v", err)
	}
}

func TestReasonPolicyAllows(t *testing.T) {
	if testReasonPolicy.Allows(StatusLost, "bored") {
		t.Error("expected reason outside list to be rejected")
	}
	if !testReasonPolicy.Allows(StatusLost, "competitor") {
		t.Error("expected listed reason to be accepted")
	}
	// A target missing from the policy accepts any non-empty reason.
	if !testReasonPolicy.Allows(StatusDemo, "anything") {
		t.Error("expected unlisted target to accept a non-empty reason")
	}
	if testReasonPolicy.Allows(StatusDemo, "") {
		t.Error("expected unlisted target to reject an empty reason")
	}
}
