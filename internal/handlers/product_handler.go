package handlers

import (
	"errors"
	"log"

	"storefront/internal/repositories"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
)

// ProductHandler serves catalog lookups.
type ProductHandler struct {
	catalog services.Catalog
}

func NewProductHandler(catalog services.Catalog) *ProductHandler {
	return &ProductHandler{catalog: catalog}
}

// RegisterRoutes registers the product routes with the Fiber app.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	productRoutes := router.Group("/products")
	productRoutes.Get("/", h.HandleSearch)
	productRoutes.Get("/:id", h.HandleGetProduct)
}

// HandleGetProduct retrieves a single product by its ID.
func (h *ProductHandler) HandleGetProduct(c *fiber.Ctx) error {
	id := c.Params("id")
	product, err := h.catalog.GetProduct(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, repositories.ErrProductNotFound) {
			return errorResponse(c, fiber.StatusNotFound, "Product not found", err)
		}
		log.Printf("Error getting product %s: %v", id, err)
		return errorResponse(c, fiber.StatusBadGateway, "Could not retrieve product", err)
	}
	return c.JSON(product)
}

// HandleSearch lists products whose name matches ?q=.
func (h *ProductHandler) HandleSearch(c *fiber.Ctx) error {
	products, err := h.catalog.Search(c.UserContext(), c.Query("q"))
	if err != nil {
		log.Printf("Error searching products for %q: %v", c.Query("q"), err)
		return errorResponse(c, fiber.StatusBadGateway, "Could not search products", err)
	}
	return c.JSON(products)
}
