package override

import (
	"errors"
	"testing"
	"time"

	"github.com/wandero/matching/internal/domain"
	"github.com/wandero/matching/internal/domain/agentprofile"
)

func valid(action Action) Override {
	o := Override{
		AdminID:     "admin-7",
		Action:      action,
		Reason:      "escalated by support ticket 4411",
		RequestedAt: time.Now(),
	}
	switch action {
	case ActionForceMatch:
		o.TargetAgents = []agentprofile.AgentID{"agent-9"}
	case ActionExtendTimeout:
		o.NewTimeout = 48 * time.Hour
	}
	return o
}

func TestOverrideValidate(t *testing.T) {
	tests := []struct {
		name    string
		mod     func(*Override)
		wantErr bool
	}{
		{"cancel", func(o *Override) { *o = valid(ActionCancelMatching) }, false},
		{"force match", func(o *Override) { *o = valid(ActionForceMatch) }, false},
		{"extend timeout", func(o *Override) { *o = valid(ActionExtendTimeout) }, false},
		{"restart", func(o *Override) { *o = valid(ActionRestartMatching) }, false},
		{"missing admin", func(o *Override) { o.AdminID = "" }, true},
		{"unknown action", func(o *Override) { o.Action = "delete_everything" }, true},
		{"short reason", func(o *Override) { o.Reason = "because" }, true},
		{"force without targets", func(o *Override) { *o = valid(ActionForceMatch); o.TargetAgents = nil }, true},
		{"extend without timeout", func(o *Override) { *o = valid(ActionExtendTimeout); o.NewTimeout = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := valid(ActionCancelMatching)
			tt.mod(&o)
			err := o.Validate(MinReasonLength)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrValidation) {
					t.Fatalf("expected ErrValidation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestOverrideValidate_ReasonFloorCannotBeLowered(t *testing.T) {
	o := valid(ActionCancelMatching)
	o.Reason = "too short" // 9 chars, below the package floor of 10

	if err := o.Validate(1); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected the package floor to hold, got %v", err)
	}
}

func TestOverrideValidate_RaisedMinimum(t *testing.T) {
	o := valid(ActionCancelMatching) // 32-char reason

	if err := o.Validate(50); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected raised minimum to reject, got %v", err)
	}
}
