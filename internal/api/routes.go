// 文件: internal/api/routes.go
package api

import (
	"PICs_Gallery/config"
	"PICs_Gallery/internal/task"
	"PICs_Gallery/pkg/gallery"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes 注册所有API路由
func RegisterRoutes(svc *gallery.Service, tm *task.Manager, cfg *config.Config, configPath string) *chi.Mux {
	r := chi.NewRouter()

	// --- 中间件 (Middleware) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	origins := cfg.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", DeviceHeader},
		ExposedHeaders:   []string{DeviceHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	handlers := NewAPIHandlers(svc, tm, configPath)

	// --- API路由 ---
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Server.RateLimit > 0 {
			r.Use(httprate.LimitByIP(cfg.Server.RateLimit, time.Minute))
		}
		r.Use(withDeviceID)

		r.Get("/tables", handlers.HandleListTables)
		r.Get("/photos", handlers.HandleListPhotos)
		r.Get("/photos/search", handlers.HandleSearch)
		r.Post("/photos/shuffle", handlers.HandleShuffle)
		r.Post("/photos/click", handlers.HandleClick)
		r.Post("/photos/views", handlers.HandleViews)
		r.Get("/preferences", handlers.HandlePreferences)
		r.Get("/stats", handlers.HandleStats)
		r.Post("/tasks/reload", handlers.HandleStartReloadTask)
		r.Get("/tasks/{taskId}", handlers.HandleGetTaskStatus)
		r.Get("/config", handlers.HandleGetConfig)
		r.Put("/config", handlers.HandleUpdateConfig)
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
