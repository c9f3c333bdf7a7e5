package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/datachat/backend/internal/auth"
	"github.com/datachat/backend/internal/storage/models"
	"github.com/datachat/backend/internal/storage/sqlite"
	"github.com/datachat/backend/pkg/logger"
)

type AuthHandler struct {
	db     *sqlite.Client
	tokens *auth.TokenManager
}

func NewAuthHandler(db *sqlite.Client, tokens *auth.TokenManager) *AuthHandler {
	return &AuthHandler{db: db, tokens: tokens}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" || len(req.Password) < 8 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Username, email and a password of at least 8 characters are required",
		})
	}

	if existing, err := h.db.GetUserByUsername(req.Username); err != nil {
		logger.Error("Failed to look up username", zap.Error(err))
		return internalError(c)
	} else if existing != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Username already taken",
		})
	}
	if existing, err := h.db.GetUserByEmail(req.Email); err != nil {
		logger.Error("Failed to look up email", zap.Error(err))
		return internalError(c)
	} else if existing != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Email already registered",
		})
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		logger.Error("Failed to hash password", zap.Error(err))
		return internalError(c)
	}

	user := &models.User{
		ID:             uuid.New().String(),
		Username:       req.Username,
		Email:          req.Email,
		HashedPassword: hash,
		Tier:           "free",
		IsActive:       true,
		CreatedAt:      time.Now(),
	}
	if err := h.db.CreateUser(user); err != nil {
		logger.Error("Failed to create user", zap.Error(err))
		return internalError(c)
	}

	logger.Info("User registered", zap.String("user_id", user.ID))

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
		"tier":     user.Tier,
	})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	user, err := h.db.GetUserByUsername(strings.TrimSpace(req.Username))
	if err != nil {
		logger.Error("Failed to look up user", zap.Error(err))
		return internalError(c)
	}
	if user == nil || !user.IsActive {
		return unauthorized(c)
	}
	if err := auth.VerifyPassword(user.HashedPassword, req.Password); err != nil {
		logger.Warn("Failed login attempt", zap.String("username", req.Username))
		return unauthorized(c)
	}

	token, err := h.tokens.Issue(user.ID, user.Tier)
	if err != nil {
		logger.Error("Failed to issue token", zap.Error(err))
		return internalError(c)
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user": fiber.Map{
			"id":       user.ID,
			"username": user.Username,
			"tier":     user.Tier,
		},
	})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)

	user, err := h.db.GetUserByID(userID)
	if err != nil {
		logger.Error("Failed to load user", zap.Error(err))
		return internalError(c)
	}
	if user == nil {
		return unauthorized(c)
	}

	return c.JSON(fiber.Map{
		"id":         user.ID,
		"username":   user.Username,
		"email":      user.Email,
		"tier":       user.Tier,
		"created_at": user.CreatedAt,
	})
}

func internalError(c *fiber.Ctx) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Internal server error",
	})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": "Invalid credentials",
	})
}
