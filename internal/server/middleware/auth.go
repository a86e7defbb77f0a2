package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"tradepilot/internal/common"
	"tradepilot/internal/server/model"
)

const (
	UserIDKey   = "userID"
	UserRoleKey = "userRole"
)

type Claims struct {
	UserID uint   `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// UserLookup resolves the user a token was issued to.
type UserLookup interface {
	GetByID(ctx context.Context, id uint) (*model.User, error)
}

type JWT struct {
	key    []byte
	expire time.Duration
	now    func() time.Time
}

func NewJWT(cfg common.Config) *JWT {
	return &JWT{key: []byte(cfg.JWTKey), expire: cfg.JWTExpire, now: time.Now}
}

func (j *JWT) GenerateJWT(userID uint, role string) (string, time.Time, error) {
	expirationTime := j.now().Add(j.expire)
	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(j.now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.key)
	return signed, expirationTime, err
}

// JWTAuthMiddleware 校验 token，临近过期时在响应头中下发新 token
// users 非空时校验用户仍然存在，并以库中的角色为准
func (j *JWT) JWTAuthMiddleware(users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := common.GetAuthorizationToken(c.GetHeader("Authorization"))
		if err != nil {
			common.Abort(c, common.NewErrNo(common.TokenInvalid))
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			return j.key, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(j.now))
		if err != nil || !token.Valid || claims.UserID == 0 {
			common.Abort(c, common.NewErrNo(common.TokenInvalid))
			return
		}

		role := claims.Role
		if users != nil {
			user, err := users.GetByID(c, claims.UserID)
			if err != nil {
				var errNo common.ErrNo
				if errors.As(err, &errNo) && errNo.ErrCode == common.UserNotExists {
					err = common.NewErrNo(common.TokenInvalid)
				}
				common.Abort(c, err)
				return
			}
			role = user.Role
		}

		if claims.ExpiresAt.Time.Before(j.now().Add(j.expire / 4)) {
			newToken, _, err := j.GenerateJWT(claims.UserID, role)
			if err != nil {
				common.Abort(c, common.NewErrNo(common.TokenInvalid))
				return
			}
			c.Header("Authorization", "Bearer "+newToken)
		}
		c.Set(UserIDKey, claims.UserID)
		c.Set(UserRoleKey, role)
		c.Next()
	}
}

// UserID returns the authenticated user set by JWTAuthMiddleware.
func UserID(c *gin.Context) uint {
	return c.GetUint(UserIDKey)
}
