package transport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/scooterparts/backend/internal/auth"
	"github.com/scooterparts/backend/internal/cart"
	"github.com/scooterparts/backend/internal/catalog"
	"github.com/scooterparts/backend/internal/order"
	"github.com/scooterparts/backend/internal/payment"
	"github.com/scooterparts/backend/internal/shipping"
	"github.com/scooterparts/backend/internal/user"
)

type Handlers struct {
	Sessions auth.SessionStore
	Auth     *auth.Handler
	Catalog  *catalog.Handler
	Shipping *shipping.Handler
	Cart     *cart.Handler
	Orders   *order.Handler
	Payments *payment.Handler
	Users    *user.Handler
}

func NewRouter(h Handlers) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Use(auth.WithSession(h.Sessions))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Storefront: browsing works anonymously, prices fall back to base
	// price without a session.
	r.Group(func(r chi.Router) {
		h.Auth.RegisterRoutes(r)
		h.Catalog.RegisterPublicRoutes(r)
		h.Shipping.RegisterRoutes(r)
		h.Payments.RegisterPublicRoutes(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)
		h.Cart.RegisterRoutes(r)
		h.Orders.RegisterCustomerRoutes(r)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.RequireRole(user.RoleAdmin))
		h.Catalog.RegisterAdminRoutes(r)
		h.Orders.RegisterAdminRoutes(r)
		h.Users.RegisterAdminRoutes(r)
	})

	return r
}
