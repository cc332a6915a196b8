package handler

import (
	"net/http"
	"strconv"

	"github.com/authgate/authgate/internal/middleware"
	"github.com/authgate/authgate/internal/model"
	"github.com/authgate/authgate/internal/pkg/apperrors"
	"github.com/authgate/authgate/internal/service"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authSvc *service.AuthService
	clients *service.ClientRegistry
}

func NewAuthHandler(authSvc *service.AuthService, clients *service.ClientRegistry) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, clients: clients}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewValidation(err.Error()))
		return
	}
	resp, err := h.authSvc.Login(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Refresh relies on the guard having already validated a refresh-type token.
func (h *AuthHandler) Refresh(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		_ = c.Error(apperrors.New(apperrors.ErrInvalidToken, "no caller identity", nil))
		return
	}
	resp, err := h.authSvc.Refresh(c.Request.Context(), identity)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) RegisterClient(c *gin.Context) {
	var req model.RegisterClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewValidation(err.Error()))
		return
	}
	client, err := h.clients.Register(c.Request.Context(), req, c.ClientIP())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, model.RegisterClientResponse{
		ClientUUID: client.ClientUUID,
		ClientType: client.ClientType,
		IsActive:   client.IsActive,
		Message:    "client registered",
	})
}

// Test is a diagnostic endpoint for protected routing.
func (h *AuthHandler) Test(c *gin.Context) {
	identity, _ := middleware.Identity(c)
	resp := gin.H{"status": "authenticated"}
	if identity != nil {
		resp["subject"] = identity.SubjectID
		resp["email"] = identity.Email
		resp["role"] = identity.Role
	}
	if client, ok := middleware.Client(c); ok {
		resp["client_uuid"] = client.ClientUUID
	}
	c.JSON(http.StatusOK, resp)
}

// Public is a diagnostic endpoint for public routing.
func (h *AuthHandler) Public(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "public"})
}

func (h *AuthHandler) ListClients(c *gin.Context) {
	limit := 100
	offset := 0
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			offset = parsed
		}
	}
	clients, err := h.clients.List(c.Request.Context(), limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, clients)
}

func (h *AuthHandler) DeactivateClient(c *gin.Context) {
	clientUUID := c.Param("uuid")
	if clientUUID == "" {
		_ = c.Error(apperrors.NewValidation("uuid required"))
		return
	}
	if err := h.clients.Deactivate(c.Request.Context(), clientUUID); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deactivated", "clientUuid": clientUUID})
}
