package handlers

import (
	"errors"
	"log"

	"storefront/internal/middleware"
	"storefront/internal/repositories"
	"storefront/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// CartHandler exposes the session cart.
type CartHandler struct {
	catalog  services.Catalog
	validate *validator.Validate
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(catalog services.Catalog) *CartHandler {
	return &CartHandler{
		catalog:  catalog,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the cart routes. The router must carry the session middleware.
func (h *CartHandler) RegisterRoutes(router fiber.Router) {
	cartRoutes := router.Group("/cart")
	cartRoutes.Get("/", h.HandleGetCart)
	cartRoutes.Delete("/", h.HandleClearCart)
	cartRoutes.Post("/items", h.HandleAddItem)
	cartRoutes.Patch("/items/:productId", h.HandleUpdateQuantity)
	cartRoutes.Delete("/items/:productId", h.HandleRemoveItem)
}

// AddItemRequest adds quantity (default 1) of a catalog product.
type AddItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  *int   `json:"quantity"`
}

// UpdateQuantityRequest sets a line's quantity.
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandler) HandleGetCart(c *fiber.Ctx) error {
	return c.JSON(middleware.CurrentSession(c).Cart.Snapshot())
}

// HandleAddItem adds a catalog product to the session cart.
func (h *CartHandler) HandleAddItem(c *fiber.Ctx) error {
	var req AddItemRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationResponse(c, err)
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	if quantity < 1 {
		return errorResponse(c, fiber.StatusBadRequest, "Could not add item", services.ErrInvalidQuantity)
	}

	product, err := h.catalog.GetProduct(c.UserContext(), req.ProductID)
	if err != nil {
		if errors.Is(err, repositories.ErrProductNotFound) {
			return errorResponse(c, fiber.StatusNotFound, "Product not found", err)
		}
		log.Printf("Error loading product %s for cart: %v", req.ProductID, err)
		return errorResponse(c, fiber.StatusBadGateway, "Could not retrieve product", err)
	}

	cart := middleware.CurrentSession(c).Cart
	cart.AddItem(product, quantity)
	return c.Status(fiber.StatusCreated).JSON(cart.Snapshot())
}

// HandleUpdateQuantity sets the quantity of a line already in the cart.
func (h *CartHandler) HandleUpdateQuantity(c *fiber.Ctx) error {
	var req UpdateQuantityRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if req.Quantity < 1 {
		return errorResponse(c, fiber.StatusBadRequest, "Could not update quantity", services.ErrInvalidQuantity)
	}

	cart := middleware.CurrentSession(c).Cart
	if !cart.UpdateQuantity(c.Params("productId"), req.Quantity) {
		return errorResponse(c, fiber.StatusNotFound, "Could not update quantity", services.ErrItemNotInCart)
	}
	return c.JSON(cart.Snapshot())
}

// HandleRemoveItem is idempotent: removing a missing item returns the cart unchanged.
func (h *CartHandler) HandleRemoveItem(c *fiber.Ctx) error {
	cart := middleware.CurrentSession(c).Cart
	cart.RemoveItem(c.Params("productId"))
	return c.JSON(cart.Snapshot())
}

func (h *CartHandler) HandleClearCart(c *fiber.Ctx) error {
	cart := middleware.CurrentSession(c).Cart
	cart.Clear()
	return c.JSON(cart.Snapshot())
}
