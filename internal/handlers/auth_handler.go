package handlers

import (
	"errors"
	"log"

	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	authService *services.AuthService
	validate    *validator.Validate
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validate:    validator.New(),
	}
}

// RegisterRoutes registers the authentication routes with the Fiber app.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/register", h.HandleRegister)
	authRoutes.Post("/login", h.HandleLogin)
	authRoutes.Post("/logout", middleware.AuthRequired(h.authService), h.HandleLogout)
}

// RegisterRequest represents the request body for registration.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// HandleRegister handles new user registration.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing register request body: %v", err)
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationResponse(c, err)
	}

	user := models.User{Username: req.Username, Email: req.Email, Password: req.Password}
	if err := h.authService.RegisterUser(&user); err != nil {
		log.Printf("Error registering user: %v", err)
		if errors.Is(err, services.ErrUserExists) {
			return errorResponse(c, fiber.StatusConflict, "Registration failed", err)
		}
		return errorResponse(c, fiber.StatusInternalServerError, "Could not register user", err)
	}

	// For security, do not return the password hash
	user.Password = ""
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User registered successfully",
		"user":    user,
	})
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin handles user login and issues a JWT token.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing login request body: %v", err)
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationResponse(c, err)
	}

	token, err := h.authService.LoginUser(req.Username, req.Password)
	if err != nil {
		log.Printf("Error during login for user %s: %v", req.Username, err)
		return errorResponse(c, fiber.StatusUnauthorized, "Authentication failed", err)
	}

	return c.JSON(fiber.Map{
		"message": "Login successful",
		"token":   token,
	})
}

// HandleLogout revokes the caller's token and signs the session out.
func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	identity, _ := middleware.CurrentIdentity(c)

	var err error
	if s := middleware.CurrentSession(c); s != nil {
		err = s.Identity.SignOut()
	} else {
		err = h.authService.RevokeToken(identity)
	}
	if err != nil {
		log.Printf("Error during logout for user %s: %v", identity.Username, err)
		return errorResponse(c, fiber.StatusInternalServerError, "Could not log out", err)
	}

	return c.JSON(fiber.Map{
		"message": "Logged out",
	})
}
