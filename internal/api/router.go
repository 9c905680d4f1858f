package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter регистрирует обработчики пиров. Любой другой путь или метод получает 404.
func NewRouter(h *NodeHandler) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/check", h.Check).Methods(http.MethodPost)
	router.HandleFunc("/download", h.Download).Methods(http.MethodPost)

	router.NotFoundHandler = http.HandlerFunc(http.NotFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(http.NotFound)

	return router
}
