package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// New constructs the HTTP server with routes and middleware.
func New(port string, handler Handler, logger *zap.Logger) *http.Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	router.Route("/api", func(r chi.Router) {
		r.Get("/catalog", handler.Catalog)
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", handler.CreateSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", handler.GetSession)
				r.Post("/intake", handler.Intake)
				r.Post("/chat", handler.Chat)
				r.Put("/reference-image", handler.AttachReference)
				r.Delete("/reference-image", handler.DetachReference)
				r.Get("/design-image", handler.DesignImage)
				r.Put("/auto-design", handler.AutoDesign)
				r.Post("/confirm", handler.Confirm)
				r.Post("/reset", handler.Reset)
				r.Get("/events", handler.StreamEvents)
			})
		})
	})

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // SSE streams stay open
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("server ready", zap.String("addr", srv.Addr))
	return srv
}
