package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/lifesync/backend/internal/config"
	"github.com/zhouzirui/lifesync/backend/internal/handler/assistant"
	"github.com/zhouzirui/lifesync/backend/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/lifesync/backend/internal/middleware"
	assistantService "github.com/zhouzirui/lifesync/backend/internal/service/assistant"
	"github.com/zhouzirui/lifesync/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(assistantSvc *assistantService.Service, authCfg config.AuthConfig, log logrus.FieldLogger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Use(middlewarePkg.Auth(authCfg.JWTSecret, authCfg.CookieName, log))

		if assistantSvc == nil {
			api.HandleFunc("/*", func(w http.ResponseWriter, r *http.Request) {
				utils.RespondError(w, http.StatusServiceUnavailable, "assistant unavailable")
			})
			return
		}

		assistant.New(assistantSvc, log).RegisterRoutes(api)
		ws.New(assistantSvc, log).RegisterRoutes(api)
	})

	return r
}
