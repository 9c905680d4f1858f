package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Gammanik/buildsync/internal/catalog"
	"github.com/Gammanik/buildsync/internal/metastore"
)

// AdminHandler обслуживает служебные запросы: метрики и состояние узла
type AdminHandler struct {
	NodeID   string
	Catalog  *catalog.Catalog
	Journal  metastore.Journal
	Gatherer prometheus.Gatherer
	Logger   *log.Logger
}

// NewAdminRouter регистрирует /metrics и /status
func NewAdminRouter(h *AdminHandler) *mux.Router {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.HandleFunc("/status", h.Status).Methods(http.MethodGet)
	return router
}

// Status возвращает каталог, неизвестные компоненты и последние установки
func (h *AdminHandler) Status(w http.ResponseWriter, r *http.Request) {
	installs := []metastore.InstallRecord{}
	if h.Journal != nil {
		records, err := h.Journal.LatestAll()
		if err != nil {
			http.Error(w, "failed to read journal", http.StatusInternalServerError)
			h.Logger.Printf("Failed to read install journal: %v", err)
			return
		}
		installs = records
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"nodeID":   h.NodeID,
		"status":   "online",
		"versions": h.Catalog.Versions(),
		"unknown":  h.Catalog.Unknowns(),
		"installs": installs,
	})
}
