package middleware

import (
	"net/http"
	"strings"

	"filingdesk/internal/app/config"
	"filingdesk/internal/app/ds"
	"filingdesk/internal/app/redis"
	"filingdesk/internal/app/role"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
)

const (
	ContextUserID   = "userID"
	ContextUserRole = "userRole"
)

type AuthMiddleware struct {
	RedisClient *redis.Client
	Config      *config.Config
}

func NewAuthMiddleware(redisClient *redis.Client, cfg *config.Config) *AuthMiddleware {
	return &AuthMiddleware{
		RedisClient: redisClient,
		Config:      cfg,
	}
}

// WithAuthCheck accepts a bearer token and, when roles are given, requires
// one of them.
func (am *AuthMiddleware) WithAuthCheck(assignedRoles ...role.Role) gin.HandlerFunc {
	return func(gCtx *gin.Context) {
		jwtStr := BearerToken(gCtx)
		if jwtStr == "" {
			gCtx.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		if am.RedisClient != nil {
			// nil means the token is in the blacklist
			if err := am.RedisClient.CheckJWTInBlacklist(gCtx.Request.Context(), jwtStr); err == nil {
				gCtx.AbortWithStatus(http.StatusUnauthorized)
				return
			}
		}

		token, err := ParseToken(jwtStr, am.Config.JWT.Token)
		if err != nil {
			gCtx.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		claims, ok := token.Claims.(*ds.JWTClaims)
		if !ok || !token.Valid {
			gCtx.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		if len(assignedRoles) > 0 && !hasRequiredRole(claims.Role, assignedRoles) {
			gCtx.AbortWithStatus(http.StatusForbidden)
			return
		}

		gCtx.Set(ContextUserID, claims.UserID)
		gCtx.Set(ContextUserRole, claims.Role)

		gCtx.Next()
	}
}

// BearerToken strips the "Bearer " prefix from the Authorization header.
func BearerToken(gCtx *gin.Context) string {
	jwtStr := gCtx.GetHeader("Authorization")
	return strings.TrimSpace(strings.TrimPrefix(jwtStr, "Bearer "))
}

func ParseToken(tokenString, secret string) (*jwt.Token, error) {
	return jwt.ParseWithClaims(tokenString, &ds.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
}

func hasRequiredRole(userRole role.Role, requiredRoles []role.Role) bool {
	for _, requiredRole := range requiredRoles {
		if userRole == requiredRole {
			return true
		}
	}
	return false
}
