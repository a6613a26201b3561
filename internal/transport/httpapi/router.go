// Package httpapi — HTTP-интерфейс витрины: каталог с персональными ценами,
// корзина, избранное, оформление и просмотр заказов.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/pricing"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/service/idempotency"
)

const (
	defaultRequestTimeout = 15 * time.Second
	maxRequestBodySize    = 1 << 20
	defaultOrdersLimit    = 50
	maxOrdersLimit        = 200
	headerNextCursor      = "X-Next-Cursor"
)

// CartService — операции корзины текущего клиента.
type CartService interface {
	Snapshot(ctx context.Context) (domain.Cart, error)
	Totals(ctx context.Context) (pricing.Totals, error)
	Add(ctx context.Context, productID string, quantity int, opts ...cart.AddOption) (domain.Cart, error)
	UpdateQuantity(ctx context.Context, productID string, quantity int) (domain.Cart, error)
	Remove(ctx context.Context, productID string) (domain.Cart, error)
	Clear(ctx context.Context) error
	Forget(customerID string)
}

// WishlistService — операции избранного текущего клиента.
type WishlistService interface {
	List(ctx context.Context) (domain.Wishlist, error)
	Toggle(ctx context.Context, productID string) (bool, error)
	Remove(ctx context.Context, productID string) (domain.Wishlist, error)
	Forget(customerID string)
}

// CheckoutService оформляет заказ из корзины.
type CheckoutService interface {
	PlaceOrder(ctx context.Context, shipping domain.Address, paymentMethod string) (checkout.Result, error)
}

// OrderService — чтение заказов и смена статуса.
type OrderService interface {
	Get(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, query domain.OrderQuery) ([]domain.Order, error)
	History(ctx context.Context, orderID string) ([]domain.TimelineEvent, error)
	SetStatus(ctx context.Context, orderID string, status domain.OrderStatus) (domain.Order, error)
}

// Dependencies — всё, что нужно обработчикам.
type Dependencies struct {
	Catalog  domain.Catalog
	Cart     CartService
	Wishlist WishlistService
	Checkout CheckoutService
	Orders   OrderService
	Auth     *Authenticator
	// Idempotency — опционально; без него POST /checkout не дедуплицируется.
	Idempotency    *idempotency.Guard
	Logger         *log.Entry
	RequestTimeout time.Duration
}

// Handler обслуживает HTTP API.
type Handler struct {
	catalog  domain.Catalog
	cart     CartService
	wishlist WishlistService
	checkout CheckoutService
	orders   OrderService
	auth     *Authenticator
	guard    *idempotency.Guard
	validate *validator.Validate
	logger   *log.Entry
	timeout  time.Duration
}

// NewHandler создаёт обработчики API.
func NewHandler(deps Dependencies) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = log.WithField("component", "http")
	}
	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &Handler{
		catalog:  deps.Catalog,
		cart:     deps.Cart,
		wishlist: deps.Wishlist,
		checkout: deps.Checkout,
		orders:   deps.Orders,
		auth:     deps.Auth,
		guard:    deps.Idempotency,
		validate: validate,
		logger:   logger,
		timeout:  timeout,
	}
}

// Routes собирает chi-роутер.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(h.timeout))
	if h.auth != nil {
		r.Use(h.auth.Middleware)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", h.ListProducts)
		r.Get("/products/{product_id}", h.GetProduct)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Get("/totals", h.GetTotals)
			r.Post("/items", h.AddItem)
			r.Put("/items/{product_id}", h.UpdateQuantity)
			r.Delete("/items/{product_id}", h.RemoveItem)
		})

		r.Route("/wishlist", func(r chi.Router) {
			r.Get("/", h.GetWishlist)
			r.Post("/{product_id}/toggle", h.ToggleWishlist)
			r.Delete("/{product_id}", h.RemoveFromWishlist)
		})

		r.Post("/checkout", h.Checkout)

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.ListOrders)
			r.Get("/{order_id}", h.GetOrder)
			r.Get("/{order_id}/invoice", h.GetInvoice)
			r.Get("/{order_id}/timeline", h.GetTimeline)
			r.Patch("/{order_id}/status", h.UpdateStatus)
		})

		r.Post("/session/logout", h.Logout)
	})

	return r
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.WithFields(log.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"duration_ms": time.Since(started).Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
		}).Debug("request served")
	})
}

// decode читает JSON-тело и проверяет его теги validate.
func (h *Handler) decode(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	return h.decodeBytes(body, dst)
}

func (h *Handler) decodeBytes(body []byte, dst any) error {
	if err := json.Unmarshal(body, dst); err != nil {
		return errInvalidJSON
	}
	return h.validate.Struct(dst)
}
