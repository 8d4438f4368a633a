package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// Catalog is the product source the cart copies items from.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (models.Product, error)
	Search(ctx context.Context, term string) ([]models.Product, error)
}

// LocalCatalog serves products from the database.
type LocalCatalog struct {
	repo repositories.ProductRepository
}

func NewLocalCatalog(repo repositories.ProductRepository) *LocalCatalog {
	return &LocalCatalog{repo: repo}
}

func (c *LocalCatalog) GetProduct(_ context.Context, id string) (models.Product, error) {
	product, err := c.repo.GetByID(id)
	if err != nil {
		return models.Product{}, err
	}
	return *product, nil
}

// Search returns products whose name contains term, ignoring case.
func (c *LocalCatalog) Search(_ context.Context, term string) ([]models.Product, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []models.Product{}, nil
	}
	return c.repo.SearchByName(term)
}

// TCGCatalog looks cards up in the Pokémon TCG API.
type TCGCatalog struct {
	baseURL string
	apiKey  string
	timeout time.Duration
}

func NewTCGCatalog(baseURL, apiKey string, timeout time.Duration) *TCGCatalog {
	return &TCGCatalog{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
	}
}

type tcgMarketPrice struct {
	Market *float64 `json:"market"`
}

type tcgCard struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Images struct {
		Small string `json:"small"`
		Large string `json:"large"`
	} `json:"images"`
	TCGPlayer struct {
		Prices struct {
			Normal          *tcgMarketPrice `json:"normal"`
			Holofoil        *tcgMarketPrice `json:"holofoil"`
			ReverseHolofoil *tcgMarketPrice `json:"reverseHolofoil"`
		} `json:"prices"`
	} `json:"tcgplayer"`
}

// product prices a card at its highest market price, or zero when none is listed.
func (c tcgCard) product() models.Product {
	price := decimal.Zero
	prices := c.TCGPlayer.Prices
	for _, p := range []*tcgMarketPrice{prices.Normal, prices.Holofoil, prices.ReverseHolofoil} {
		if p == nil || p.Market == nil {
			continue
		}
		if v := decimal.NewFromFloat(*p.Market); v.GreaterThan(price) {
			price = v
		}
	}
	image := c.Images.Large
	if image == "" {
		image = c.Images.Small
	}
	return models.Product{ID: c.ID, Name: c.Name, UnitPrice: price, ImageURL: image}
}

func (c *TCGCatalog) GetProduct(ctx context.Context, id string) (models.Product, error) {
	var resp struct {
		Data tcgCard `json:"data"`
	}
	code, err := c.get(ctx, "/cards/"+url.PathEscape(id), &resp)
	if code == fiber.StatusNotFound {
		return models.Product{}, fmt.Errorf("%w: %s", repositories.ErrProductNotFound, id)
	}
	if err != nil {
		return models.Product{}, err
	}
	if resp.Data.ID == "" {
		return models.Product{}, fmt.Errorf("%w: %s", repositories.ErrProductNotFound, id)
	}
	return resp.Data.product(), nil
}

func (c *TCGCatalog) Search(ctx context.Context, term string) ([]models.Product, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []models.Product{}, nil
	}
	var resp struct {
		Data []tcgCard `json:"data"`
	}
	query := url.Values{"q": []string{"name:" + term}}
	if _, err := c.get(ctx, "/cards?"+query.Encode(), &resp); err != nil {
		return nil, err
	}
	products := make([]models.Product, 0, len(resp.Data))
	for _, card := range resp.Data {
		products = append(products, card.product())
	}
	return products, nil
}

func (c *TCGCatalog) get(ctx context.Context, path string, out interface{}) (int, error) {
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	agent := fiber.Get(c.baseURL + path)
	agent.Timeout(timeout)
	if c.apiKey != "" {
		agent.Set("X-Api-Key", c.apiKey)
	}
	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return code, fmt.Errorf("catalog request failed: %w", errors.Join(errs...))
	}
	if code != fiber.StatusOK {
		return code, fmt.Errorf("catalog request returned status %d", code)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return code, fmt.Errorf("failed to decode catalog response: %w", err)
	}
	return code, nil
}
