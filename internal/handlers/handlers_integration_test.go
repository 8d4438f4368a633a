package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"storefront/internal/handlers"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var errStoreDown = errors.New("store unavailable")

// flakyOrderStore fails every call while down is set.
type flakyOrderStore struct {
	*repositories.MemoryOrderStore
	down atomic.Bool
}

func (s *flakyOrderStore) Insert(ctx context.Context, collection string, doc models.OrderDocument) (string, error) {
	if s.down.Load() {
		return "", errStoreDown
	}
	return s.MemoryOrderStore.Insert(ctx, collection, doc)
}

func (s *flakyOrderStore) Query(ctx context.Context, collection string, filter models.Filter) ([]models.OrderDocument, error) {
	if s.down.Load() {
		return nil, errStoreDown
	}
	return s.MemoryOrderStore.Query(ctx, collection, filter)
}

type testEnv struct {
	app    *fiber.App
	orders *flakyOrderStore
}

// setupApp wires the handlers over an in-memory SQLite database and order store.
func setupApp(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Product{}, &models.User{}))

	productRepo := repositories.NewMemoryProductRepository()
	seedProductsForTest(t, productRepo)
	catalog := services.NewLocalCatalog(productRepo)

	authService := services.NewAuthService(repositories.NewGORMUserRepository(db), "test_jwt_secret", time.Hour)
	orders := &flakyOrderStore{MemoryOrderStore: repositories.NewMemoryOrderStore()}
	gateway := services.NewOrderGateway(orders, nil, time.Second)
	registry := services.NewSessionRegistry(gateway, nil, authService.RevokeToken, time.Hour, nil)

	app := fiber.New()
	handlers.NewHealthHandler(map[string]handlers.HealthCheck{
		"orders": func(ctx context.Context) error {
			if orders.down.Load() {
				return errStoreDown
			}
			return nil
		},
	}).RegisterRoutes(app)

	apiV1 := app.Group("/api/v1")
	for _, prefix := range []string{"/auth/logout", "/cart", "/checkout", "/orders"} {
		apiV1.Use(prefix, middleware.Session(registry))
	}
	apiV1.Use("/cart", middleware.AuthOptional(authService))
	apiV1.Use("/checkout", middleware.AuthOptional(authService))

	handlers.NewAuthHandler(authService).RegisterRoutes(apiV1)
	handlers.NewProductHandler(catalog).RegisterRoutes(apiV1)
	handlers.NewCartHandler(catalog).RegisterRoutes(apiV1)
	handlers.NewCheckoutHandler().RegisterRoutes(apiV1)
	handlers.NewOrderHandler(authService).RegisterRoutes(apiV1)

	return &testEnv{app: app, orders: orders}
}

func seedProductsForTest(t *testing.T, repo repositories.ProductRepository) {
	t.Helper()
	products := []models.Product{
		{ID: "sv1-1", Name: "Pineco", UnitPrice: decimal.RequireFromString("0.25")},
		{ID: "sv1-81", Name: "Miraidon ex", UnitPrice: decimal.RequireFromString("12.40")},
	}
	for i := range products {
		require.NoError(t, repo.Create(&products[i]))
	}
}

// request sends a JSON request and decodes the JSON response into a map.
func (e *testEnv) request(t *testing.T, method, path string, body interface{}, headers map[string]string) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]interface{}
	if len(data) > 0 && data[0] == '{' {
		require.NoError(t, json.Unmarshal(data, &decoded), string(data))
	}
	return resp, decoded
}

func (e *testEnv) registerAndLogin(t *testing.T, username string) string {
	t.Helper()
	resp, _ := e.request(t, http.MethodPost, "/api/v1/auth/register", handlers.RegisterRequest{
		Username: username, Email: username + "@example.com", Password: "password123",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := e.request(t, http.MethodPost, "/api/v1/auth/login", handlers.LoginRequest{
		Username: username, Password: "password123",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func TestAuthRegisterAndLogin(t *testing.T) {
	env := setupApp(t)

	t.Run("Register", func(t *testing.T) {
		resp, body := env.request(t, http.MethodPost, "/api/v1/auth/register", handlers.RegisterRequest{
			Username: "misty", Email: "misty@example.com", Password: "starmie1",
		}, nil)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		user := body["user"].(map[string]interface{})
		assert.Equal(t, "misty", user["username"])
		assert.NotContains(t, user, "password")
	})

	t.Run("RegisterDuplicate", func(t *testing.T) {
		resp, body := env.request(t, http.MethodPost, "/api/v1/auth/register", handlers.RegisterRequest{
			Username: "misty", Email: "other@example.com", Password: "starmie1",
		}, nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "Registration failed", body["message"])
	})

	t.Run("RegisterInvalid", func(t *testing.T) {
		resp, body := env.request(t, http.MethodPost, "/api/v1/auth/register", handlers.RegisterRequest{
			Username: "br", Email: "not-an-email", Password: "123",
		}, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		errs := body["errors"].(map[string]interface{})
		assert.Contains(t, errs, "Username")
		assert.Contains(t, errs, "Email")
		assert.Contains(t, errs, "Password")
	})

	t.Run("LoginWrongPassword", func(t *testing.T) {
		resp, _ := env.request(t, http.MethodPost, "/api/v1/auth/login", handlers.LoginRequest{
			Username: "misty", Password: "psyduck",
		}, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("LoginAndLogout", func(t *testing.T) {
		resp, body := env.request(t, http.MethodPost, "/api/v1/auth/login", handlers.LoginRequest{
			Username: "misty", Password: "starmie1",
		}, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		auth := map[string]string{"Authorization": "Bearer " + body["token"].(string)}

		resp, _ = env.request(t, http.MethodPost, "/api/v1/auth/logout", nil, auth)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp, _ = env.request(t, http.MethodPost, "/api/v1/auth/logout", nil, auth)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestProductEndpoints(t *testing.T) {
	env := setupApp(t)

	resp, body := env.request(t, http.MethodGet, "/api/v1/products/sv1-81", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Miraidon ex", body["name"])
	assert.Equal(t, "12.4", body["unit_price"])

	resp, _ = env.request(t, http.MethodGet, "/api/v1/products/sv1-999", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?q=MIRAI", nil)
	searchResp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	defer searchResp.Body.Close()
	var products []models.Product
	require.NoError(t, json.NewDecoder(searchResp.Body).Decode(&products))
	require.Len(t, products, 1)
	assert.Equal(t, "sv1-81", products[0].ID)
}

func TestCartEndpoints(t *testing.T) {
	env := setupApp(t)

	resp, _ := env.request(t, http.MethodGet, "/api/v1/cart", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	session := map[string]string{middleware.SessionHeader: resp.Header.Get(middleware.SessionHeader)}
	require.NotEmpty(t, session[middleware.SessionHeader])

	t.Run("AddRejectsBadInput", func(t *testing.T) {
		resp, _ := env.request(t, http.MethodPost, "/api/v1/cart/items", fiber.Map{"product_id": "sv1-1", "quantity": 0}, session)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp, _ = env.request(t, http.MethodPost, "/api/v1/cart/items", fiber.Map{"quantity": 1}, session)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp, _ = env.request(t, http.MethodPost, "/api/v1/cart/items", fiber.Map{"product_id": "sv1-999"}, session)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("AddMergesLines", func(t *testing.T) {
		resp, _ := env.request(t, http.MethodPost, "/api/v1/cart/items", fiber.Map{"product_id": "sv1-1"}, session)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		resp, body := env.request(t, http.MethodPost, "/api/v1/cart/items", fiber.Map{"product_id": "sv1-1", "quantity": 3}, session)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Len(t, body["items"], 1)
		assert.EqualValues(t, 4, body["total_quantity"])
		assert.Equal(t, "1", body["total_price"])
	})

	t.Run("UpdateQuantity", func(t *testing.T) {
		resp, body := env.request(t, http.MethodPatch, "/api/v1/cart/items/sv1-1", fiber.Map{"quantity": 2}, session)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.EqualValues(t, 2, body["total_quantity"])

		resp, _ = env.request(t, http.MethodPatch, "/api/v1/cart/items/sv1-1", fiber.Map{"quantity": 0}, session)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp, _ = env.request(t, http.MethodPatch, "/api/v1/cart/items/sv1-81", fiber.Map{"quantity": 2}, session)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("RemoveIsIdempotent", func(t *testing.T) {
		resp, body := env.request(t, http.MethodDelete, "/api/v1/cart/items/sv1-81", nil, session)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.EqualValues(t, 2, body["total_quantity"])

		resp, body = env.request(t, http.MethodDelete, "/api/v1/cart/items/sv1-1", nil, session)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, body["items"])
	})

	t.Run("Clear", func(t *testing.T) {
		env.request(t, http.MethodPost, "/api/v1/cart/items", fiber.Map{"product_id": "sv1-81"}, session)
		resp, body := env.request(t, http.MethodDelete, "/api/v1/cart", nil, session)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.EqualValues(t, 0, body["total_quantity"])
	})
}

func TestCheckoutEndpoints(t *testing.T) {
	env := setupApp(t)
	token := env.registerAndLogin(t, "brock")

	resp, _ := env.request(t, http.MethodPost, "/api/v1/cart/items", fiber.Map{"product_id": "sv1-81", "quantity": 2}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	headers := map[string]string{
		middleware.SessionHeader: resp.Header.Get(middleware.SessionHeader),
		"Authorization":          "Bearer " + token,
	}

	resp, _ = env.request(t, http.MethodPost, "/api/v1/checkout/submit", nil, headers)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "submit before open")

	resp, body := env.request(t, http.MethodPost, "/api/v1/checkout/open", nil, headers)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "authenticated", body["state"])
	cart := body["cart"].(map[string]interface{})
	assert.Equal(t, "24.8", cart["total_price"])

	t.Run("SubmitRejectsMissingDetails", func(t *testing.T) {
		resp, body := env.request(t, http.MethodPost, "/api/v1/checkout/submit", nil, headers)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		errs := body["errors"].(map[string]interface{})
		assert.Equal(t, "is required", errs["name"])
		assert.Equal(t, "is required", errs["address"])
		assert.Equal(t, "is required", errs["phone"])
	})

	resp, _ = env.request(t, http.MethodPut, "/api/v1/checkout/details", handlers.DetailsRequest{
		Name: "Brock", Address: "Pewter City Gym", Phone: "555-0142",
	}, headers)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	t.Run("StoreFailureKeepsCart", func(t *testing.T) {
		env.orders.down.Store(true)
		defer env.orders.down.Store(false)

		resp, body := env.request(t, http.MethodPost, "/api/v1/checkout/submit", nil, headers)
		require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		checkout := body["checkout"].(map[string]interface{})
		assert.Equal(t, "failed", checkout["state"])
		assert.NotEmpty(t, checkout["last_error"])
		assert.EqualValues(t, 2, checkout["cart"].(map[string]interface{})["total_quantity"])
	})

	t.Run("RetrySucceeds", func(t *testing.T) {
		resp, body := env.request(t, http.MethodPost, "/api/v1/checkout/submit", nil, headers)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.NotEmpty(t, body["order_id"])
		assert.Equal(t, 1, env.orders.Count(models.OrdersCollection))

		resp, body = env.request(t, http.MethodGet, "/api/v1/cart", nil, headers)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, body["items"])
	})

	resp, body = env.request(t, http.MethodPost, "/api/v1/checkout/close", nil, headers)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "idle", body["state"])
}

func TestCheckoutEndpoints_GuestCannotEdit(t *testing.T) {
	env := setupApp(t)

	resp, body := env.request(t, http.MethodPost, "/api/v1/checkout/open", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "unauthenticated", body["state"])
	assert.Equal(t, true, body["login_required"])
	session := map[string]string{middleware.SessionHeader: resp.Header.Get(middleware.SessionHeader)}

	resp, _ = env.request(t, http.MethodPut, "/api/v1/checkout/details", handlers.DetailsRequest{Name: "Gary"}, session)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.request(t, http.MethodPost, "/api/v1/checkout/submit", nil, session)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestOrderEndpoints(t *testing.T) {
	env := setupApp(t)
	token := env.registerAndLogin(t, "dawn")
	auth := map[string]string{"Authorization": "Bearer " + token}

	resp, _ := env.request(t, http.MethodGet, "/api/v1/orders", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := env.request(t, http.MethodGet, "/api/v1/orders", nil, auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "empty", body["state"])

	env.orders.Seed(models.OrdersCollection, models.OrderDocument{
		Customer: models.CustomerDocument{Name: "Dawn", Email: "dawn@example.com"},
	})
	resp, body = env.request(t, http.MethodGet, "/api/v1/orders", nil, auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "loaded", body["state"])
	orders := body["orders"].([]interface{})
	require.Len(t, orders, 1)
	assert.Equal(t, models.StatusUnknown, orders[0].(map[string]interface{})["status"])

	env.orders.down.Store(true)
	resp, body = env.request(t, http.MethodGet, "/api/v1/orders", nil, auth)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "failed", body["history"].(map[string]interface{})["state"])
}

func TestHealthEndpoint(t *testing.T) {
	env := setupApp(t)

	resp, body := env.request(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	env.orders.down.Store(true)
	resp, body = env.request(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, errStoreDown.Error(), body["checks"].(map[string]interface{})["orders"])
}
