package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/wandero/matching/internal/domain/agentprofile"
	"github.com/wandero/matching/internal/domain/audit"
	"github.com/wandero/matching/internal/domain/override"
	"github.com/wandero/matching/internal/domain/travelrequest"
)

// overridePayload is the wire form of an admin override. new_timeout accepts
// a Go duration string ("48h") or a number of seconds, never raw nanoseconds.
type overridePayload struct {
	AdminID      string                 `json:"admin_id"`
	Action       override.Action        `json:"action"`
	Reason       string                 `json:"reason"`
	TargetAgents []agentprofile.AgentID `json:"target_agents"`
	NewTimeout   json.RawMessage        `json:"new_timeout"`
	RequestedAt  time.Time              `json:"requested_at"`
}

func parseTimeout(raw json.RawMessage) (time.Duration, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return time.ParseDuration(s)
	}
	var secs float64
	if err := json.Unmarshal(raw, &secs); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return 0, errors.New("new_timeout must be a duration string or a number of seconds")
}

// ApplyOverride handles POST /api/v1/admin/requests/{id}/override
func (h *Handlers) ApplyOverride(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if !requireField(w, id, "request id") {
		return
	}
	payload, ok := readJSON[overridePayload](w, r)
	if !ok {
		return
	}
	timeout, err := parseTimeout(payload.NewTimeout)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	o := override.Override{
		AdminID:      payload.AdminID,
		Action:       payload.Action,
		Reason:       payload.Reason,
		TargetAgents: payload.TargetAgents,
		NewTimeout:   timeout,
		RequestedAt:  payload.RequestedAt,
	}
	if o.RequestedAt.IsZero() {
		o.RequestedAt = time.Now()
	}

	if err := h.Matching.ApplyOverride(r.Context(), travelrequest.RequestID(id), &o); err != nil {
		writeDomainError(w, err, "request not found")
		return
	}

	view, err := h.Requests.Get(r.Context(), travelrequest.RequestID(id))
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GetAuditTrail handles GET /api/v1/admin/requests/{id}/audit
func (h *Handlers) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if !requireField(w, id, "request id") {
		return
	}

	entries, err := h.Requests.AuditTrail(r.Context(), travelrequest.RequestID(id))
	if err != nil {
		writeDomainError(w, err, "request not found")
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
