package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	RequestTimeout time.Duration
	AllowedOrigins []string
}

func NewRouter(cfg RouterConfig, carts *CartHandler, guests *GuestHandler, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(RequestLogger(log))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/cart/{ownerId}", func(r chi.Router) {
		r.Get("/", carts.GetCart)
		r.Post("/", carts.AddLine)
		r.Put("/", carts.ReplaceCart)
		r.Delete("/", carts.ClearCart)
		r.Post("/reconcile", carts.Reconcile)
		r.Put("/items/{lineId}", carts.SetQuantity)
		r.Delete("/items/{lineId}", carts.RemoveLine)
	})

	r.Post("/guest-cart", guests.Create)
	r.Route("/guest-cart/{guestId}", func(r chi.Router) {
		r.Get("/", guests.GetCart)
		r.Post("/", guests.AddLine)
		r.Delete("/", guests.ClearCart)
		r.Put("/items/{lineId}", guests.SetQuantity)
		r.Delete("/items/{lineId}", guests.RemoveLine)
	})

	return otelhttp.NewHandler(r, "cart-service")
}
