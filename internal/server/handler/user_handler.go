package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"tradepilot/internal/common"
	"tradepilot/internal/server/dao"
	"tradepilot/internal/server/middleware"
	"tradepilot/internal/server/model"
)

type UserHandler struct {
	users  dao.UserDAO
	jwt    *middleware.JWT
	logger *zap.Logger
}

func NewUserHandler(users dao.UserDAO, jwt *middleware.JWT, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, jwt: jwt, logger: logger.Named("user_handler")}
}

func (h *UserHandler) Register(c *gin.Context) {
	var req common.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, common.WithMsg(common.RequestInvalid, err.Error()))
		return
	}

	user, err := NewUser(req.Username, req.Password)
	if err != nil {
		common.Error(c, err)
		return
	}
	if err := h.users.Create(c, user); err != nil {
		common.Error(c, err)
		return
	}
	h.logger.Info("user registered", zap.String("username", user.Username), zap.Uint("user_id", user.ID))
	common.Success(c, gin.H{"id": user.ID})
}

func (h *UserHandler) UserLogin(c *gin.Context) {
	var req common.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, common.WithMsg(common.RequestInvalid, err.Error()))
		return
	}

	user, err := h.users.GetByUsername(c, req.Username)
	if err != nil {
		common.Error(c, err)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		common.Error(c, common.NewErrNo(common.PasswordErr))
		return
	}

	token, expiresAt, err := h.jwt.GenerateJWT(user.ID, user.Role)
	if err != nil {
		common.Error(c, err)
		return
	}
	c.Header("Authorization", "Bearer "+token)
	common.Success(c, common.LoginResponse{Token: token, ExpiresAt: expiresAt.Unix()})
}

// NewUser hashes the password of a new account.
func NewUser(username, password string) (*model.User, error) {
	if username == "" || len(password) < 6 {
		return nil, common.WithMsg(common.RequestInvalid, "username required and password must be at least 6 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, common.WithMsg(common.RequestInvalid, err.Error())
		}
		return nil, err
	}
	return &model.User{Username: username, Password: string(hash), Role: "trader"}, nil
}
