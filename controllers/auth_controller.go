package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/vnkhanh/coderoom-server/middleware"
	"github.com/vnkhanh/coderoom-server/models"
	"github.com/vnkhanh/coderoom-server/store"
	"github.com/vnkhanh/coderoom-server/utils"
)

// UserAccounts is the identity directory used for sign-up and sign-in.
type UserAccounts interface {
	Create(ctx context.Context, u *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

type AuthController struct {
	users  UserAccounts
	tokens *utils.TokenIssuer
}

func NewAuthController(users UserAccounts, tokens *utils.TokenIssuer) *AuthController {
	return &AuthController{users: users, tokens: tokens}
}

type RegisterReq struct {
	Username string `json:"username" binding:"required,min=1,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginReq struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (a *AuthController) Register(c *gin.Context) {
	var req RegisterReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": err.Error()})
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not hash password"})
		return
	}

	u := models.User{
		Username: strings.TrimSpace(req.Username),
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Password: hash,
	}
	if err := a.users.Create(c.Request.Context(), &u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"message": "Email already registered"})
			return
		}
		respondError(c, err)
		return
	}

	logrus.WithField("user_id", u.ID).Info("User registered")
	c.JSON(http.StatusCreated, gin.H{"user": u.Profile()})
}

func (a *AuthController) Login(c *gin.Context) {
	var req LoginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": err.Error()})
		return
	}

	u, err := a.users.FindByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		respondError(c, err)
		return
	}
	if u == nil || !utils.CheckPassword(u.Password, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid email or password"})
		return
	}

	token, err := a.tokens.GenerateToken(u.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": u.Profile()})
}

// Me returns the authenticated user's profile and room history.
func (a *AuthController) Me(c *gin.Context) {
	u := middleware.CurrentUser(c)
	rooms := u.Rooms.Newest()
	if rooms == nil {
		rooms = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"user": u.Profile(), "rooms": rooms})
}
