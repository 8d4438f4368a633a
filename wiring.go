package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"storefront/internal/config"
	"storefront/internal/handlers"
	"storefront/internal/metrics"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"
	"storefront/pkg/rabbitmq"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// storefront holds the wired service and the resources main must release.
type storefront struct {
	deps        appDeps
	fulfillment *services.FulfillmentService
	mq          *rabbitmq.Client
	closers     []func(ctx context.Context) error
}

func buildStorefront(ctx context.Context, cfg *config.Config) (*storefront, error) {
	sf := &storefront{}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	storeMetrics := metrics.NewStoreMetrics(reg)
	checks := make(map[string]handlers.HealthCheck)

	db, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sf.closers = append(sf.closers, func(context.Context) error { return sqlDB.Close() })
	checks["database"] = sqlDB.PingContext

	orderStore, err := sf.openOrderStore(ctx, cfg, db, checks)
	if err != nil {
		sf.close(ctx)
		return nil, err
	}

	cache, err := sf.openCartCache(ctx, cfg, checks)
	if err != nil {
		sf.close(ctx)
		return nil, err
	}

	productRepo := repositories.NewGORMProductRepository(db)
	seedProducts(productRepo)

	var publisher services.EventPublisher
	if cfg.RabbitMQURL != "" {
		client, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL})
		if err != nil {
			log.Printf("RabbitMQ unavailable, order events disabled: %v", err)
		} else {
			sf.mq = client
			publisher = client
			sf.closers = append(sf.closers, func(context.Context) error { return client.Close() })
		}
	}

	authService := services.NewAuthService(repositories.NewGORMUserRepository(db), cfg.JWTSecret, cfg.TokenTTL)
	gateway := services.NewOrderGateway(orderStore, publisher, cfg.StoreTimeout)
	sf.fulfillment = services.NewFulfillmentService(orderStore, cfg.StoreTimeout, storeMetrics)
	sf.deps = appDeps{
		Auth:     authService,
		Catalog:  newCatalog(cfg, productRepo),
		Sessions: services.NewSessionRegistry(gateway, cache, authService.RevokeToken, cfg.SessionIdleTTL, storeMetrics),
		Metrics:  storeMetrics,
		Gatherer: reg,
		Checks:   checks,
	}
	return sf, nil
}

// openDatabase opens the relational database for users and the local catalog.
// Orders live here too unless another STORE_DRIVER is chosen.
func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if cfg.StoreDriver == "postgres" {
		dialector = postgres.Open(cfg.DatabaseDSN)
	} else {
		dialector = sqlite.Open(cfg.DatabaseDSN)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.AutoMigrate(&models.Product{}, &models.User{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

func (sf *storefront) openOrderStore(ctx context.Context, cfg *config.Config, db *gorm.DB, checks map[string]handlers.HealthCheck) (repositories.OrderStore, error) {
	switch cfg.StoreDriver {
	case "mongo":
		connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		mdb, err := repositories.ConnectMongoDB(connectCtx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, err
		}
		sf.closers = append(sf.closers, mdb.Client().Disconnect)
		checks["orders"] = func(ctx context.Context) error { return mdb.Client().Ping(ctx, nil) }

		store := repositories.NewMongoOrderStore(mdb)
		if err := store.CreateIndexes(connectCtx); err != nil {
			log.Printf("Failed to create order indexes: %v", err)
		}
		return store, nil
	case "memory":
		return repositories.NewMemoryOrderStore(), nil
	default:
		store := repositories.NewGORMOrderStore(db)
		if err := store.AutoMigrate(); err != nil {
			return nil, fmt.Errorf("failed to migrate order table: %w", err)
		}
		return store, nil
	}
}

// openCartCache connects to Redis when REDIS_ADDR is set. Without it carts
// only live as long as their session.
func (sf *storefront) openCartCache(ctx context.Context, cfg *config.Config, checks map[string]handlers.HealthCheck) (repositories.CartCache, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	sf.closers = append(sf.closers, func(context.Context) error { return client.Close() })
	checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	return repositories.NewRedisCartCache(client, cfg.CartTTL), nil
}

func newCatalog(cfg *config.Config, repo repositories.ProductRepository) services.Catalog {
	if cfg.CatalogSource == "tcg" {
		return services.NewTCGCatalog(cfg.CatalogBaseURL, cfg.CatalogAPIKey, cfg.StoreTimeout)
	}
	return services.NewLocalCatalog(repo)
}

// startFulfillmentConsumer feeds fulfillment updates from RabbitMQ into the
// order store. It returns nil when no broker is configured.
func (sf *storefront) startFulfillmentConsumer(ctx context.Context) <-chan struct{} {
	if sf.mq == nil {
		return nil
	}
	done, err := sf.mq.ConsumeFulfillment(ctx, sf.fulfillment.Apply)
	if err != nil {
		log.Printf("Failed to start fulfillment consumer: %v", err)
		return nil
	}
	return done
}

// close releases resources in reverse order of acquisition.
func (sf *storefront) close(ctx context.Context) {
	for i := len(sf.closers) - 1; i >= 0; i-- {
		if err := sf.closers[i](ctx); err != nil {
			log.Printf("Error releasing resource: %v", err)
		}
	}
	sf.closers = nil
}

func sweepSessions(ctx context.Context, sessions *services.SessionRegistry, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Sweep(); n > 0 {
				log.Printf("Swept %d idle sessions", n)
			}
		}
	}
}

// seedProducts fills an empty local catalog with a few cards.
func seedProducts(repo repositories.ProductRepository) {
	n, err := repo.Count()
	if err != nil {
		log.Printf("Error reading catalog before seeding: %v", err)
		return
	}
	if n > 0 {
		return
	}

	products := []models.Product{
		{ID: "base1-4", Name: "Charizard", UnitPrice: decimal.RequireFromString("349.99"), ImageURL: "https://images.pokemontcg.io/base1/4.png"},
		{ID: "base1-58", Name: "Pikachu", UnitPrice: decimal.RequireFromString("4.50"), ImageURL: "https://images.pokemontcg.io/base1/58.png"},
		{ID: "base1-2", Name: "Blastoise", UnitPrice: decimal.RequireFromString("129.00"), ImageURL: "https://images.pokemontcg.io/base1/2.png"},
		{ID: "base1-15", Name: "Venusaur", UnitPrice: decimal.RequireFromString("89.95"), ImageURL: "https://images.pokemontcg.io/base1/15.png"},
	}
	for i := range products {
		if err := repo.Create(&products[i]); err != nil {
			log.Printf("Error seeding product %s: %v", products[i].Name, err)
			continue
		}
		log.Printf("Seeded product: %s (ID: %s)", products[i].Name, products[i].ID)
	}
}
