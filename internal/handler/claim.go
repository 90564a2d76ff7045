package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/surplus/internal/model"
	"github.com/dukerupert/surplus/internal/store"
	"github.com/dukerupert/surplus/internal/websocket"
)

type ClaimHandler struct {
	claimStore *store.ClaimStore
	notifier
	logger *slog.Logger
}

func NewClaimHandler(cs *store.ClaimStore, hub *websocket.Hub, logger *slog.Logger) *ClaimHandler {
	return &ClaimHandler{claimStore: cs, notifier: notifier{hub}, logger: logger}
}

type claimStatusRequest struct {
	Status model.ClaimStatus `json:"status"`
}

func (h *ClaimHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, err := h.claimStore.List()
	if err != nil {
		writeError(w, err)
		return
	}
	if claims == nil {
		claims = []model.Claim{}
	}
	writeJSON(w, http.StatusOK, claims)
}

func (h *ClaimHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.Claim
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.Status == "" {
		req.Status = model.ClaimStatusPending
	}

	claim, err := h.claimStore.Create(req)
	if err != nil {
		h.logger.Warn("create claim", "error", err)
		writeError(w, err)
		return
	}

	h.notify(websocket.EntityClaim, websocket.ActionCreated, claim.ID, map[string]any{"food_id": claim.FoodID})
	writeJSON(w, http.StatusCreated, claim)
}

// UpdateStatus sets a claim's status. Any of the three statuses may follow
// any other.
func (h *ClaimHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req claimStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	claim, err := h.claimStore.UpdateStatus(id, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}

	h.notify(websocket.EntityClaim, websocket.ActionUpdated, claim.ID, map[string]any{"status": string(claim.Status)})
	writeJSON(w, http.StatusOK, claim)
}

func (h *ClaimHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	if err := h.claimStore.Delete(id); err != nil {
		writeError(w, err)
		return
	}

	h.notify(websocket.EntityClaim, websocket.ActionDeleted, id, nil)
	w.WriteHeader(http.StatusNoContent)
}
