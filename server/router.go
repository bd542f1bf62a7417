// Package server is the storefront HTTP surface. Everything here runs with
// the anon credential only; the privileged user directory lives in the
// separate adminapi server.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"nullashop.io/shop"
	"nullashop.io/shop/cart"
	"nullashop.io/shop/checkout"
	"nullashop.io/shop/storage"
)

const defaultTimeout = 10 * time.Second

type Deps struct {
	Shop     shop.Service
	Carts    *cart.Store
	Checkout *checkout.Manager
	Auth     Authenticator
	Bucket   *storage.Bucket
	Logger   *zap.Logger
	Timeout  time.Duration
}

func NewRouter(deps Deps) http.Handler {
	if deps.Timeout == 0 {
		deps.Timeout = defaultTimeout
	}

	products := NewProductHandler(deps.Shop, deps.Timeout)
	carts := NewCartHandler(deps.Carts, deps.Shop, deps.Timeout)
	checkouts := NewCheckoutHandler(deps.Checkout, deps.Timeout)
	auth := NewAuthHandler(deps.Auth, deps.Checkout, deps.Timeout)
	orders := NewOrderHandler(deps.Shop, deps.Timeout)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	// uploaded product images are served straight from the bucket
	r.Handle(deps.Bucket.PublicPath(), deps.Bucket.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Use(CartSession)
		api.Use(Authenticate(deps.Auth, deps.Logger))

		api.Get("/products", products.List)
		api.Get("/products/featured", products.Featured)
		api.Get("/products/search", products.Search)
		api.Get("/products/{productID}", products.Get)

		api.Route("/cart", func(c chi.Router) {
			c.Get("/", carts.Get)
			c.Delete("/", carts.Clear)
			c.Post("/items", carts.AddItem)
			c.Patch("/items/{productID}", carts.UpdateQuantity)
			c.Delete("/items/{productID}", carts.RemoveItem)
		})

		api.Route("/checkout", func(c chi.Router) {
			c.Get("/", checkouts.State)
			c.Post("/", checkouts.Begin)
			c.Post("/confirm", checkouts.Confirm)
			c.Post("/abandon", checkouts.Abandon)
		})

		api.Post("/auth/signup", auth.SignUp)
		api.Post("/auth/signin", auth.SignIn)
		api.Post("/auth/signout", auth.SignOut)
		api.Get("/auth/oauth/{provider}", auth.OAuthURL)

		api.Group(func(private chi.Router) {
			private.Use(RequireAuth)
			private.Get("/orders", orders.ListMine)
			private.Get("/orders/{orderID}", orders.Get)
			private.Post("/orders/{orderID}/cancel", orders.Cancel)
		})

		api.Route("/admin", func(admin chi.Router) {
			admin.Use(RequireAdmin)
			admin.Get("/orders", orders.ListAll)
			admin.Patch("/orders/{orderID}", orders.UpdateStatus)
			admin.Post("/products", products.Create)
			admin.Patch("/products/{productID}", products.Update)
			admin.Delete("/products/{productID}", products.Delete)
			admin.Post("/products/{productID}/images", products.AttachImage)
			admin.Delete("/products/{productID}/images", products.RemoveImage)
		})
	})

	return r
}
