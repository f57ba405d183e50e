package handlers

import (
	"net/http"

	"github.com/coursegen/worldmodel/internal/service"
)

type MaintenanceHandler struct {
	network *service.BeliefNetwork
}

func NewMaintenanceHandler(network *service.BeliefNetwork) *MaintenanceHandler {
	return &MaintenanceHandler{network: network}
}

// Recompute persists decayed confidences for every claim. This is the only
// way stored confidence changes; normal reads decay lazily.
func (h *MaintenanceHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	result, err := h.network.RecomputeDecay(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "recompute failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Export returns a full snapshot of beliefs, configuration and statistics.
func (h *MaintenanceHandler) Export(w http.ResponseWriter, r *http.Request) {
	export, err := h.network.ExportBeliefs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	writeJSON(w, http.StatusOK, export)
}
