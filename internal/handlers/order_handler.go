package handlers

import (
	"storefront/internal/middleware"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
)

// OrderHandler serves the signed-in customer's order history.
type OrderHandler struct {
	auth middleware.TokenValidator
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(auth middleware.TokenValidator) *OrderHandler {
	return &OrderHandler{auth: auth}
}

// RegisterRoutes registers the order routes with the Fiber app.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders", middleware.AuthRequired(h.auth))
	orderRoutes.Get("/", h.HandleGetOrders)
}

// HandleGetOrders loads the history and reports it with its state.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	view := middleware.CurrentSession(c).History.Load(c.UserContext())
	if view.State != services.HistoryFailed {
		return c.JSON(view)
	}

	status := fiber.StatusServiceUnavailable
	if view.Reason == services.ReasonNotAuthenticated {
		status = fiber.StatusUnauthorized
	}
	return c.Status(status).JSON(fiber.Map{
		"message": "Could not retrieve orders",
		"history": view,
	})
}
