package api

import (
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/Gammanik/buildsync/internal/artifacts"
	"github.com/Gammanik/buildsync/internal/catalog"
	"github.com/Gammanik/buildsync/internal/metrics"
	"github.com/Gammanik/buildsync/internal/protocol"
)

const (
	endpointCheck    = "check"
	endpointDownload = "download"
)

// NodeHandler обрабатывает запросы пиров к /check и /download
type NodeHandler struct {
	Catalog  *catalog.Catalog
	Store    *artifacts.Store
	Password string // Общий пароль, пустой отключает проверку
	Trigger  func() // Запуск внеочередной синхронизации, nil если синхронизация выключена
	Metrics  *metrics.Metrics
	Logger   *log.Logger
}

func (h *NodeHandler) fail(w http.ResponseWriter, endpoint string, code int) {
	h.Metrics.Request(endpoint, code)
	http.Error(w, http.StatusText(code), code)
}

// authorize разбирает тело запроса и проверяет пароль.
// Пароль проверяется до любого обращения к каталогу или диску.
func (h *NodeHandler) authorize(w http.ResponseWriter, r *http.Request, endpoint string) (*protocol.Request, bool) {
	req, err := protocol.Decode(r)
	if err != nil {
		h.Logger.Printf("Bad %s request from %s: %v", endpoint, r.RemoteAddr, err)
		h.fail(w, endpoint, http.StatusBadRequest)
		return nil, false
	}

	// В запросе нет поля password
	if req.Password == nil {
		h.fail(w, endpoint, http.StatusBadRequest)
		return nil, false
	}

	// Пароль задан и не совпадает
	if h.Password != "" && *req.Password != h.Password {
		h.Logger.Printf("Rejected %s request from %s: bad password", endpoint, r.RemoteAddr)
		h.fail(w, endpoint, http.StatusUnauthorized)
		return nil, false
	}

	return req, true
}

// observe записывает компонент, которого нет в каталоге, и запускает синхронизацию
func (h *NodeHandler) observe(component string) {
	if !h.Catalog.Observe(component) {
		return
	}

	h.Logger.Printf("New unknown component %q", component)
	h.Metrics.UnknownSeen()

	if h.Trigger != nil {
		h.Trigger()
	}
}

// Check возвращает компоненты, версия которых у пира старее нашей
func (h *NodeHandler) Check(w http.ResponseWriter, r *http.Request) {
	req, ok := h.authorize(w, r, endpointCheck)
	if !ok {
		return
	}

	// В запросе нет поля versions
	if req.Versions == nil {
		h.fail(w, endpointCheck, http.StatusBadRequest)
		return
	}

	seen := mapset.NewThreadUnsafeSet[string]()
	stale := []string{}
	for _, v := range *req.Versions {
		if !seen.Add(v.Component) {
			continue
		}

		local, known := h.Catalog.Get(v.Component)
		if !known {
			h.observe(v.Component)
			continue
		}

		if catalog.IsStale(v.Tag, local) {
			stale = append(stale, v.Component)
		}
	}

	h.Metrics.Request(endpointCheck, http.StatusOK)
	w.WriteHeader(http.StatusOK)
	if len(stale) > 0 {
		io.WriteString(w, strings.Join(stale, "|"))
	}
}

// Download отправляет файл сборки компонента
func (h *NodeHandler) Download(w http.ResponseWriter, r *http.Request) {
	req, ok := h.authorize(w, r, endpointDownload)
	if !ok {
		return
	}

	// В запросе нет поля version
	if req.Version == nil || *req.Version == "" {
		h.fail(w, endpointDownload, http.StatusBadRequest)
		return
	}
	component := *req.Version

	tag, known := h.Catalog.Get(component)
	if !known {
		h.observe(component)
		h.fail(w, endpointDownload, http.StatusNotFound)
		return
	}

	file, size, err := h.Store.Open(tag)
	if err != nil {
		h.Logger.Printf("Artifact for %s (%s) is unavailable: %v", component, tag, err)
		h.fail(w, endpointDownload, http.StatusInternalServerError)
		return
	}
	defer file.Close()

	w.Header().Set("Content-Description", "File Transfer")
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", "attachment; filename="+h.Store.FileName(tag))
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.WriteHeader(http.StatusOK)
	h.Metrics.Request(endpointDownload, http.StatusOK)

	if _, err := io.Copy(w, file); err != nil {
		h.Logger.Printf("Failed to send %s: %v", h.Store.FileName(tag), err)
	}
}
