package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/wavechat-auth-api/internal/middleware"
	"github.com/noah-isme/wavechat-auth-api/internal/models"
	"github.com/noah-isme/wavechat-auth-api/internal/service"
	appErrors "github.com/noah-isme/wavechat-auth-api/pkg/errors"
	"github.com/noah-isme/wavechat-auth-api/pkg/response"
)

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// SignUp godoc
// @Summary Create account
// @Description Provision a local account; does not open a session
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.SignUpRequest true "Signup payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /auth/signup [post]
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req models.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid signup payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	res, err := h.service.SignUp(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, res)
}

// Login godoc
// @Summary Authenticate user
// @Description Authenticate by email and password and open a session
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res)
}

// OAuthLogin godoc
// @Summary Authenticate via OAuth provider
// @Description Exchange a provider-issued token and open a session
// @Tags Authentication
// @Accept json
// @Produce json
// @Param provider path string true "Provider (google or facebook)"
// @Param payload body models.OAuthLoginRequest true "OAuth payload"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /auth/oauth/{provider} [post]
func (h *AuthHandler) OAuthLogin(c *gin.Context) {
	var req models.OAuthLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid oauth payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	provider := models.AuthProvider(c.Param("provider"))
	res, err := h.service.OAuthLogin(c.Request.Context(), provider, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res)
}

// Refresh godoc
// @Summary Rotate session tokens
// @Description Exchange the current refresh token for a new token pair
// @Tags Authentication
// @Accept json
// @Produce json
// @Param X-Client-ID header string true "Claimed user id"
// @Param X-Session-ID header string true "Session id"
// @Param payload body models.RefreshRequest true "Refresh payload"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req models.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrAuthFailure, ""))
		return
	}
	req.SessionID = c.GetHeader(middleware.HeaderSessionID)
	req.UserID = c.GetHeader(middleware.HeaderClientID)
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	res, err := h.service.Refresh(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res)
}

// Logout godoc
// @Summary Logout current session
// @Description Revoke the session key record; all tokens bound to it become invalid
// @Tags Authentication
// @Produce json
// @Success 204 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	record := sessionFromContext(c)
	if record == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrAuthFailure, ""))
		return
	}

	meta := models.LoginRequest{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
	if err := h.service.Logout(c.Request.Context(), record.SessionID, meta); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Me godoc
// @Summary Get current identity
// @Description Returns the verified subject of the presented access token
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrAuthFailure, ""))
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"user_id": claims.UserID,
		"name":    claims.Name,
	})
}
