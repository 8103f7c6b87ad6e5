package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/contentforge/billing-api/config"
	"github.com/contentforge/billing-api/internal/handler"
)

// ContextAccountID is the gin context key carrying the caller's account id.
const ContextAccountID = "accountID"

// AuthMiddleware resolves the bearer token to an account identifier.
// Identity issuance lives in the external identity service; this side
// only verifies the shared-secret signature and reads the account claim.
type AuthMiddleware struct {
	secret []byte
	claims *cache.Cache
}

func NewAuthMiddleware(cfg config.JWTConfig) *AuthMiddleware {
	return &AuthMiddleware{
		secret: []byte(cfg.Secret),
		// Validated tokens are cached briefly so hot callers do not pay
		// the parse cost on every request.
		claims: cache.New(5*time.Minute, 15*time.Minute),
	}
}

// Authenticate verifies the JWT and sets the account id in context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing authorization header"))
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid authorization format"))
			c.Abort()
			return
		}

		accountID, err := m.resolve(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid token"))
			c.Abort()
			return
		}

		c.Set(ContextAccountID, accountID)
		c.Next()
	}
}

func (m *AuthMiddleware) resolve(token string) (uuid.UUID, error) {
	if cached, ok := m.claims.Get(token); ok {
		return cached.(uuid.UUID), nil
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return uuid.Nil, fmt.Errorf("token validation failed: %w", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, fmt.Errorf("unexpected claims type")
	}

	sub, _ := claims["account_id"].(string)
	if sub == "" {
		sub, _ = claims["sub"].(string)
	}
	accountID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, fmt.Errorf("token carries no account id: %w", err)
	}

	m.claims.SetDefault(token, accountID)
	return accountID, nil
}

// AccountID extracts the authenticated account id from the context.
func AccountID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextAccountID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
