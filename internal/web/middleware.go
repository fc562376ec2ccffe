package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/navikt/zspatial/internal/utils"
)

// HTTPProtocolMiddleware prevents HTTP/3 QUIC protocol issues in cloud environments.
// Long-lived endpoints are pinned to HTTP/1.1 semantics.
func HTTPProtocolMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Alt-Svc", "clear")

		if strings.HasPrefix(r.URL.Path, "/events") {
			w.Header().Set("Connection", "keep-alive")
			w.Header().Set("X-Force-HTTP1", "true")
		}

		next.ServeHTTP(w, r)
	})
}

// RequestLogger logs short-lived requests at debug level. Streaming
// endpoints are logged by their handlers instead.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" || strings.HasPrefix(r.URL.Path, "/events") {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debugf("%s %s (%s)", r.Method, utils.SanitizeLogString(r.URL.Path), time.Since(start))
	})
}

// RegisterRoutes mounts the participant and observer endpoints and installs the middleware
func RegisterRoutes(router *mux.Router, socket http.Handler, events http.Handler) {
	router.Handle("/ws", socket).Methods(http.MethodGet)
	router.Handle("/events", events).Methods(http.MethodGet)
	router.Use(HTTPProtocolMiddleware, RequestLogger)
}
