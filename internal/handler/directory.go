package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/surplus/internal/model"
	"github.com/dukerupert/surplus/internal/store"
	"github.com/dukerupert/surplus/internal/websocket"
)

// DirectoryHandler serves providers and receivers.
type DirectoryHandler struct {
	providerStore *store.ProviderStore
	receiverStore *store.ReceiverStore
	notifier
	logger *slog.Logger
}

func NewDirectoryHandler(ps *store.ProviderStore, rs *store.ReceiverStore, hub *websocket.Hub, logger *slog.Logger) *DirectoryHandler {
	return &DirectoryHandler{providerStore: ps, receiverStore: rs, notifier: notifier{hub}, logger: logger}
}

func (h *DirectoryHandler) ListProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := h.providerStore.List()
	if err != nil {
		writeError(w, err)
		return
	}
	if providers == nil {
		providers = []model.Provider{}
	}
	writeJSON(w, http.StatusOK, providers)
}

// Cities lists the provider cities offered by the contacts report's picker.
func (h *DirectoryHandler) Cities(w http.ResponseWriter, r *http.Request) {
	cities, err := h.providerStore.ListCities()
	if err != nil {
		writeError(w, err)
		return
	}
	if cities == nil {
		cities = []string{}
	}
	writeJSON(w, http.StatusOK, cities)
}

func (h *DirectoryHandler) CreateProvider(w http.ResponseWriter, r *http.Request) {
	var req model.Provider
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	p, err := h.providerStore.Create(req)
	if err != nil {
		h.logger.Warn("create provider", "error", err)
		writeError(w, err)
		return
	}

	h.notify(websocket.EntityProvider, websocket.ActionCreated, p.ID, nil)
	writeJSON(w, http.StatusCreated, p)
}

func (h *DirectoryHandler) ListReceivers(w http.ResponseWriter, r *http.Request) {
	receivers, err := h.receiverStore.List()
	if err != nil {
		writeError(w, err)
		return
	}
	if receivers == nil {
		receivers = []model.Receiver{}
	}
	writeJSON(w, http.StatusOK, receivers)
}

func (h *DirectoryHandler) CreateReceiver(w http.ResponseWriter, r *http.Request) {
	var req model.Receiver
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	rc, err := h.receiverStore.Create(req)
	if err != nil {
		h.logger.Warn("create receiver", "error", err)
		writeError(w, err)
		return
	}

	h.notify(websocket.EntityReceiver, websocket.ActionCreated, rc.ID, nil)
	writeJSON(w, http.StatusCreated, rc)
}
