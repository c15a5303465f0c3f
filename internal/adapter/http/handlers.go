package http

import (
	"net/http"

	"github.com/wandero/matching/internal/adapter/ws"
	"github.com/wandero/matching/internal/domain/agentprofile"
	"github.com/wandero/matching/internal/domain/criteria"
	"github.com/wandero/matching/internal/domain/match"
	"github.com/wandero/matching/internal/domain/travelrequest"
	"github.com/wandero/matching/internal/port/messagequeue"
	"github.com/wandero/matching/internal/service"
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Requests *service.RequestService
	Matching *service.MatchingService
	Hub      *ws.Hub
	Queue    messagequeue.Queue
}

type createRequestPayload struct {
	travelrequest.CreateRequest
	Criteria *criteria.Criteria `json:"criteria,omitempty"`
}

// CreateRequest handles POST /api/v1/requests
func (h *Handlers) CreateRequest(w http.ResponseWriter, r *http.Request) {
	payload, ok := readJSON[createRequestPayload](w, r)
	if !ok {
		return
	}

	req, err := h.Requests.Create(r.Context(), &payload.CreateRequest, payload.Criteria)
	if err != nil {
		writeDomainError(w, err, "request not found")
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// GetRequest handles GET /api/v1/requests/{id}
func (h *Handlers) GetRequest(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if !requireField(w, id, "request id") {
		return
	}

	view, err := h.Requests.Get(r.Context(), travelrequest.RequestID(id))
	if err != nil {
		writeDomainError(w, err, "request not found")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type cancelPayload struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

// CancelRequest handles POST /api/v1/requests/{id}/cancel
func (h *Handlers) CancelRequest(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if !requireField(w, id, "request id") {
		return
	}
	payload, ok := readJSON[cancelPayload](w, r)
	if !ok {
		return
	}
	if !requireField(w, payload.Actor, "actor") {
		return
	}

	if err := h.Matching.Cancel(r.Context(), travelrequest.RequestID(id), payload.Actor, payload.Reason); err != nil {
		writeDomainError(w, err, "request not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(travelrequest.StatusCancelled)})
}

type decisionPayload struct {
	AgentID string              `json:"agent_id"`
	Reason  match.DeclineReason `json:"reason,omitempty"`
	Note    string              `json:"note,omitempty"`
}

// AcceptMatch handles POST /api/v1/matches/{id}/accept
func (h *Handlers) AcceptMatch(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if !requireField(w, id, "match id") {
		return
	}
	payload, ok := readJSON[decisionPayload](w, r)
	if !ok {
		return
	}
	if !requireField(w, payload.AgentID, "agent_id") {
		return
	}

	m, err := h.Matching.HandleAccept(r.Context(), match.MatchID(id), agentprofile.AgentID(payload.AgentID))
	if err != nil {
		writeDomainError(w, err, "match not found")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// DeclineMatch handles POST /api/v1/matches/{id}/decline
func (h *Handlers) DeclineMatch(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if !requireField(w, id, "match id") {
		return
	}
	payload, ok := readJSON[decisionPayload](w, r)
	if !ok {
		return
	}
	if !requireField(w, payload.AgentID, "agent_id") {
		return
	}
	if payload.Reason == "" {
		payload.Reason = match.DeclineDeclined
	}

	err := h.Matching.HandleDecline(r.Context(), match.MatchID(id), agentprofile.AgentID(payload.AgentID), payload.Reason, payload.Note)
	if err != nil {
		writeDomainError(w, err, "match not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(match.StatusDeclined)})
}

// Health handles GET /healthz
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	natsOK := h.Queue != nil && h.Queue.IsConnected()
	body := map[string]any{
		"status":         "ok",
		"nats_connected": natsOK,
		"ws_connections": h.Hub.ConnectionCount(),
	}
	if !natsOK {
		body["status"] = "degraded"
		writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	writeJSON(w, http.StatusOK, body)
}
