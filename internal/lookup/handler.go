package lookup

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// NewHandler returns the HTTP API over ix.
func NewHandler(ix *Index) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/manifest", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, ix.Manifest())
		})
		r.Get("/codes/{code}", func(w http.ResponseWriter, req *http.Request) {
			code := chi.URLParam(req, "code")
			res, err := ix.Lookup(req.Context(), code)
			switch {
			case eris.Is(err, ErrNotFound):
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "code not found", "code": Normalize(code)})
			case err != nil:
				zap.L().Error("lookup: request failed",
					zap.String("code", code),
					zap.String("request_id", middleware.GetReqID(req.Context())),
					zap.Error(err),
				)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
			default:
				writeJSON(w, http.StatusOK, res)
			}
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("lookup: write response", zap.Error(err))
	}
}
