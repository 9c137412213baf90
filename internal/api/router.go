package api

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"macropulse/internal/api/handlers"
	"macropulse/pkg/database"
	"macropulse/pkg/logger"
)

// NewRouter creates and configures the HTTP router. db may be nil when
// snapshot persistence is disabled.
func NewRouter(indicatorHandler *handlers.IndicatorHandler, cacheHandler *handlers.CacheHandler, hub *Hub, db *database.DB, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", healthCheckHandler(db)).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/indicators", indicatorHandler.GetAll).Methods("GET")
	api.HandleFunc("/indicators/{key}", indicatorHandler.Get).Methods("GET")
	api.HandleFunc("/indicators/{key}/refresh", indicatorHandler.Refresh).Methods("POST")
	api.HandleFunc("/indicators/{key}/history", indicatorHandler.History).Methods("GET")
	api.HandleFunc("/releases", indicatorHandler.Releases).Methods("GET")

	api.HandleFunc("/cache/stats", cacheHandler.Stats).Methods("GET")
	api.HandleFunc("/cache/cleanup", cacheHandler.Cleanup).Methods("POST")
	api.HandleFunc("/cache/invalidate", cacheHandler.Invalidate).Methods("POST")

	r.HandleFunc("/ws", hub.HandleWS)

	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status, including database
// reachability and pool counters when a database is configured.
func healthCheckHandler(db *database.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{
			"status":  "ok",
			"service": "macropulse-api",
		}

		status := http.StatusOK
		if db != nil {
			dbStatus, err := db.HealthCheck(r.Context())
			body["database"] = dbStatus
			if err != nil {
				body["status"] = "degraded"
				status = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}
}

// statusRecorder captures the response code for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack keeps the WebSocket upgrade working behind the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

// loggingMiddleware logs HTTP requests.
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics.
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
