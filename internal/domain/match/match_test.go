package match

import (
	"testing"
	"time"
)

func TestStatusResolved(t *testing.T) {
	if StatusProposed.Resolved() {
		t.Error("proposed must not be resolved")
	}
	for _, s := range []Status{StatusAccepted, StatusDeclined, StatusTimedOut, StatusInvalidated} {
		if !s.Resolved() {
			t.Errorf("%s must be resolved", s)
		}
	}
}

func TestMatchExpired(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{"future", now.Add(time.Hour), false},
		{"past", now.Add(-time.Hour), true},
		{"exactly now", now, false},
		{"zero expiry never expires", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Match{ExpiresAt: tt.expiresAt}
			if got := m.Expired(now); got != tt.want {
				t.Errorf("Expired = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidDeclineReason(t *testing.T) {
	valid := []DeclineReason{
		DeclineUnavailable, DeclineDeclined, DeclineTimeout,
		DeclineWorkloadExceeded, DeclineRegionMismatch, DeclineSpecializationMismatch,
	}
	for _, r := range valid {
		if !ValidDeclineReason(r) {
			t.Errorf("%s must be valid", r)
		}
	}
	for _, r := range []DeclineReason{"", "felt like it", "AGENT_DECLINED"} {
		if ValidDeclineReason(r) {
			t.Errorf("%q must be invalid", r)
		}
	}
}
