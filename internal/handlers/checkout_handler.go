package handlers

import (
	"errors"
	"log"

	"storefront/internal/middleware"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
)

// CheckoutHandler drives the session checkout form.
type CheckoutHandler struct{}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler() *CheckoutHandler {
	return &CheckoutHandler{}
}

// RegisterRoutes registers the checkout routes. The router must carry the
// session and optional-auth middleware.
func (h *CheckoutHandler) RegisterRoutes(router fiber.Router) {
	checkoutRoutes := router.Group("/checkout")
	checkoutRoutes.Get("/", h.HandleView)
	checkoutRoutes.Post("/open", h.HandleOpen)
	checkoutRoutes.Put("/details", h.HandleUpdateDetails)
	checkoutRoutes.Post("/submit", h.HandleSubmit)
	checkoutRoutes.Post("/close", h.HandleClose)
}

// DetailsRequest carries the editable customer fields. Email is always taken
// from the signed-in identity.
type DetailsRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

func (h *CheckoutHandler) HandleView(c *fiber.Ctx) error {
	return c.JSON(middleware.CurrentSession(c).Checkout.View())
}

func (h *CheckoutHandler) HandleOpen(c *fiber.Ctx) error {
	view, err := middleware.CurrentSession(c).Checkout.Open()
	if err != nil {
		return checkoutError(c, view, err)
	}
	return c.JSON(view)
}

func (h *CheckoutHandler) HandleUpdateDetails(c *fiber.Ctx) error {
	var req DetailsRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	view, err := middleware.CurrentSession(c).Checkout.UpdateDetails(req.Name, req.Address, req.Phone)
	if err != nil {
		return checkoutError(c, view, err)
	}
	return c.JSON(view)
}

// HandleSubmit places the order and returns its id with the updated checkout.
func (h *CheckoutHandler) HandleSubmit(c *fiber.Ctx) error {
	checkout := middleware.CurrentSession(c).Checkout
	orderID, err := checkout.Submit(c.UserContext())
	view := checkout.View()
	if err != nil {
		return checkoutError(c, view, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "Order placed",
		"order_id": orderID,
		"checkout": view,
	})
}

func (h *CheckoutHandler) HandleClose(c *fiber.Ctx) error {
	return c.JSON(middleware.CurrentSession(c).Checkout.Close())
}

func checkoutError(c *fiber.Ctx, view services.CheckoutView, err error) error {
	var (
		validationErr  *services.ValidationError
		persistenceErr *services.PersistenceError
	)
	switch {
	case errors.As(err, &validationErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message":  "Validation failed",
			"errors":   validationErr.Fields,
			"checkout": view,
		})
	case errors.As(err, &persistenceErr):
		log.Printf("Order submission failed: %v", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"message":  "Could not place order",
			"error":    err.Error(),
			"checkout": view,
		})
	case errors.Is(err, services.ErrNotAuthenticated), errors.Is(err, services.ErrFormDisabled):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message":  "Login required",
			"error":    err.Error(),
			"checkout": view,
		})
	case errors.Is(err, services.ErrSubmitInProgress),
		errors.Is(err, services.ErrCheckoutNotOpen),
		errors.Is(err, services.ErrInvalidTransition):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message":  "Checkout not available",
			"error":    err.Error(),
			"checkout": view,
		})
	default:
		log.Printf("Unexpected checkout error: %v", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Checkout failed", err)
	}
}
