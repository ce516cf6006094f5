package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/rvlgh/ragserve/internal/pkg/errcode"
	appErr "github.com/rvlgh/ragserve/internal/pkg/errors"
	"github.com/rvlgh/ragserve/internal/pkg/response"
	"github.com/rvlgh/ragserve/internal/service"
)

type AuthHandler struct {
	auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type authRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string `json:"token"`
	User  struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req authRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	user, token, err := h.auth.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if appErr.IsConflict(err) {
			response.Error(c, errcode.ErrConflict, "email already registered")
			return
		}
		handleError(c, err)
		return
	}
	rsp := authResponse{Token: token}
	rsp.User.ID = user.ID
	rsp.User.Email = user.Email
	response.Success(c, rsp)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req authRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	user, token, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		handleError(c, err)
		return
	}
	rsp := authResponse{Token: token}
	rsp.User.ID = user.ID
	rsp.User.Email = user.Email
	response.Success(c, rsp)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	// Stateless tokens; the client discards its copy.
	response.Success(c, gin.H{})
}
