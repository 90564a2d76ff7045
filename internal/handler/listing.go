package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/surplus/internal/model"
	"github.com/dukerupert/surplus/internal/query"
	"github.com/dukerupert/surplus/internal/store"
	"github.com/dukerupert/surplus/internal/websocket"
)

type ListingHandler struct {
	listingStore  *store.FoodListingStore
	providerStore *store.ProviderStore
	exec          *query.Executor
	notifier
	logger *slog.Logger
}

func NewListingHandler(ls *store.FoodListingStore, ps *store.ProviderStore, exec *query.Executor, hub *websocket.Hub, logger *slog.Logger) *ListingHandler {
	return &ListingHandler{listingStore: ls, providerStore: ps, exec: exec, notifier: notifier{hub}, logger: logger}
}

// Filter lists food listings narrowed by the food_type, meal_type and
// location query parameters. "All" or an empty value leaves a filter off.
func (h *ListingHandler) Filter(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	t, err := h.exec.FilterListings(r.Context(), query.ListingFilter{
		FoodType: q.Get("food_type"),
		MealType: q.Get("meal_type"),
		Location: q.Get("location"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *ListingHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	listing, err := h.listingStore.GetByID(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if listing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "food listing not found"})
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (h *ListingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.FoodListing
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	// Provider_Type mirrors the provider's Type unless the caller set it.
	if req.ProviderType == "" && req.ProviderID != 0 {
		p, err := h.providerStore.GetByID(req.ProviderID)
		if err != nil {
			writeError(w, err)
			return
		}
		if p != nil {
			req.ProviderType = p.Type
		}
	}

	listing, err := h.listingStore.Create(req)
	if err != nil {
		h.logger.Warn("create food listing", "error", err)
		writeError(w, err)
		return
	}

	h.notify(websocket.EntityListing, websocket.ActionCreated, listing.ID, nil)
	writeJSON(w, http.StatusCreated, listing)
}

func (h *ListingHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req model.FoodListingUpdate
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	listing, err := h.listingStore.Update(id, req)
	if err != nil {
		writeError(w, err)
		return
	}

	h.notify(websocket.EntityListing, websocket.ActionUpdated, listing.ID, nil)
	writeJSON(w, http.StatusOK, listing)
}

func (h *ListingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	if err := h.listingStore.Delete(id); err != nil {
		writeError(w, err)
		return
	}

	h.notify(websocket.EntityListing, websocket.ActionDeleted, id, nil)
	w.WriteHeader(http.StatusNoContent)
}
