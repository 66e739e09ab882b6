package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/studystake/coordinator/internal/middleware"
	"github.com/studystake/coordinator/internal/models"
	"github.com/studystake/coordinator/internal/services"
	"go.uber.org/zap"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	accounts  *services.AccountService
	jwtConfig middleware.JWTConfig
	logger    *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(accounts *services.AccountService, jwtConfig middleware.JWTConfig, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, jwtConfig: jwtConfig, logger: logger}
}

// Register handles user registration
func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.accounts.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.issueToken(c, http.StatusCreated, user)
}

// Login handles user login
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.accounts.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.issueToken(c, http.StatusOK, user)
}

func (h *AuthHandler) issueToken(c *gin.Context, status int, user *models.User) {
	token, err := middleware.GenerateToken(user.ID, user.Email, h.jwtConfig)
	if err != nil {
		h.logger.Error("failed to generate token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(status, services.AuthResponse{
		UserID: user.ID.String(),
		Email:  user.Email,
		Token:  token,
	})
}

// Profile handles getting user profile
func (h *AuthHandler) Profile(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	user, err := h.accounts.GetUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, user)
}
