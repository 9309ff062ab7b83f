package handlers

import (
	"net/http"
	"strconv"

	"github.com/beizuri/posedge/internal/database"
	"github.com/beizuri/posedge/internal/models"
	"github.com/beizuri/posedge/internal/sync"
	"github.com/gorilla/mux"
)

// SyncHandler exposes the sync engine to the operator UI
type SyncHandler struct {
	db        *database.DB
	scheduler *sync.Scheduler
	ledger    *sync.Ledger
	api       sync.ServerAPI
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(db *database.DB, scheduler *sync.Scheduler, ledger *sync.Ledger, api sync.ServerAPI) *SyncHandler {
	return &SyncHandler{
		db:        db,
		scheduler: scheduler,
		ledger:    ledger,
		api:       api,
	}
}

// RegisterRoutes registers sync routes on the protected API subrouter
func (sh *SyncHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/sync/status", sh.GetStatus).Methods("GET")
	r.HandleFunc("/sync/history", sh.GetHistory).Methods("GET")
	r.HandleFunc("/sync/now", sh.SyncNow).Methods("POST")
	r.HandleFunc("/sync/health", sh.GetServerHealth).Methods("GET")
}

// GetStatus reports the scheduler state, the last cycle, and how much
// local work is still waiting to be pushed
func (sh *SyncHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	var pendingSales, pendingReturns int64
	if err := sh.db.Model(&models.Sale{}).
		Where("completed_at IS NOT NULL AND synced_at IS NULL AND is_held = ?", false).
		Count(&pendingSales).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := sh.db.Model(&models.Return{}).
		Where("synced_at IS NULL").
		Count(&pendingReturns).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	bootstrapped, err := sh.ledger.HasBootstrapped()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	lastSuccess := make(map[string]interface{})
	for _, syncType := range []string{
		models.SyncTypePull,
		models.SyncTypePushSales,
		models.SyncTypePushReturns,
		models.SyncTypePullSales,
		models.SyncTypePullReturns,
	} {
		entry, err := sh.ledger.LastSuccess(syncType)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if entry != nil {
			lastSuccess[syncType] = entry.CompletedAt
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"running":        sh.scheduler.Running(),
		"bootstrapped":   bootstrapped,
		"lastCycle":      sh.scheduler.LastCycle(),
		"lastSuccess":    lastSuccess,
		"pendingSales":   pendingSales,
		"pendingReturns": pendingReturns,
	})
}

// GetHistory returns recent ledger entries, newest first
func (sh *SyncHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	entries, err := sh.ledger.Recent(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(entries),
		"entries": entries,
	})
}

// SyncNow runs one cycle immediately and returns its result. The call
// blocks for the duration of the cycle, serialized with the background
// loop.
func (sh *SyncHandler) SyncNow(w http.ResponseWriter, r *http.Request) {
	result := sh.scheduler.SyncNow()
	respondJSON(w, http.StatusOK, result)
}

// GetServerHealth probes the central server and reports reachability
func (sh *SyncHandler) GetServerHealth(w http.ResponseWriter, r *http.Request) {
	online := sh.api.Health()
	status := "online"
	if !online {
		status = "offline"
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"online": online,
		"status": status,
	})
}
