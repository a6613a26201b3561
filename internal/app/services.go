package app

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/events"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/service/idempotency"
	"github.com/vladislavdragonenkov/storefront/internal/service/order"
	"github.com/vladislavdragonenkov/storefront/internal/service/wishlist"
	"github.com/vladislavdragonenkov/storefront/internal/transport/httpapi"
)

// errJWTSecretRequired возвращается, если STOREFRONT_JWT_SECRET не задан.
var errJWTSecretRequired = errors.New("jwt secret is required (set " + envJWTSecret + ")")

// services — собранное ядро витрины поверх выбранных хранилищ.
type services struct {
	bus      *events.Bus
	cart     *cart.Store
	wishlist *wishlist.Store
	orders   *order.Factory
	checkout *checkout.Service
	guard    *idempotency.Guard
	auth     *httpapi.Authenticator
	metrics  *metrics.StoreMetrics
	handler  http.Handler

	detachRelay func()
}

// buildServices связывает хранилища, шину событий и HTTP-обработчики.
// registerer == nil означает prometheus.DefaultRegisterer.
func buildServices(cfg Config, deps *runtimeDependencies, registerer prometheus.Registerer, logger *log.Entry) (*services, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}
	if cfg.JWTSecret == "" {
		return nil, errJWTSecretRequired
	}

	auth, err := httpapi.NewAuthenticator(cfg.JWTSecret, logger.WithField("component", "auth"))
	if err != nil {
		return nil, err
	}

	storeMetrics := metrics.NewStoreMetricsWithRegisterer(registerer)
	bus := events.NewBus(logger.WithField("component", "events"))
	detach := events.NewOutboxRelay(deps.outboxRepo, logger.WithField("component", "outbox-relay")).Attach(bus)

	cartStore := cart.NewStore(deps.state, deps.catalog,
		cart.WithLogger(logger.WithField("component", "cart")),
		cart.WithPublisher(bus),
		cart.WithMetrics(storeMetrics),
	)
	wishlistStore := wishlist.NewStore(deps.state, deps.catalog,
		wishlist.WithLogger(logger.WithField("component", "wishlist")),
		wishlist.WithPublisher(bus),
		wishlist.WithMetrics(storeMetrics),
	)
	orders := order.NewFactory(deps.repo,
		order.WithTimeline(deps.timelineRepo),
		order.WithPublisher(bus),
		order.WithMetrics(storeMetrics),
		order.WithLogger(logger.WithField("component", "orders")),
	)
	checkoutSvc := checkout.NewService(cartStore, orders, logger.WithField("component", "checkout"))
	guard := idempotency.NewGuard(deps.idempotencyRepo, cfg.IdempotencyTTL, logger.WithField("component", "idempotency"),
		idempotency.WithReplayMetrics(storeMetrics),
	)

	handler := httpapi.NewHandler(httpapi.Dependencies{
		Catalog:        deps.catalog,
		Cart:           cartStore,
		Wishlist:       wishlistStore,
		Checkout:       checkoutSvc,
		Orders:         orders,
		Auth:           auth,
		Idempotency:    guard,
		Logger:         logger.WithField("layer", "http"),
		RequestTimeout: cfg.RequestTimeout,
	})

	return &services{
		bus:         bus,
		cart:        cartStore,
		wishlist:    wishlistStore,
		orders:      orders,
		checkout:    checkoutSvc,
		guard:       guard,
		auth:        auth,
		metrics:     storeMetrics,
		handler:     handler.Routes(),
		detachRelay: detach,
	}, nil
}
