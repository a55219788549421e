package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prohmpiriya/class-checkout/pkg/response"
)

const (
	// ContextKeyUserID is the gin context key for the authenticated user id
	ContextKeyUserID = "user_id"
	// ContextKeyToken is the gin context key for the raw bearer token
	ContextKeyToken = "bearer_token"
)

type (
	tokenCtxKey  struct{}
	userIDCtxKey struct{}
)

// AuthConfig holds JWT verification settings
type AuthConfig struct {
	Secret string
	Issuer string
}

// JWTAuth verifies the bearer token, stores the acting user id in the gin
// context and the raw token in the request context for outbound calls.
func JWTAuth(cfg AuthConfig) gin.HandlerFunc {
	var opts []jwt.ParserOption
	opts = append(opts, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	parser := jwt.NewParser(opts...)

	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorBody("UNAUTHORIZED", "missing bearer token"))
			return
		}

		claims := jwt.MapClaims{}
		_, err := parser.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(cfg.Secret), nil
		})
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "token expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorBody("UNAUTHORIZED", msg))
			return
		}

		userID := claimString(claims["user_id"])
		if userID == "" {
			userID = claimString(claims["sub"])
		}
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorBody("UNAUTHORIZED", "token has no subject"))
			return
		}

		c.Set(ContextKeyUserID, userID)
		c.Set(ContextKeyToken, raw)
		ctx := ContextWithToken(c.Request.Context(), raw)
		c.Request = c.Request.WithContext(ContextWithUserID(ctx, userID))
		c.Next()
	}
}

// GetUserID returns the authenticated user id from gin context
func GetUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get(ContextKeyUserID)
	if !exists {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// ContextWithToken attaches a bearer token to ctx
func ContextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenCtxKey{}, token)
}

// TokenFromContext returns the bearer token attached by JWTAuth
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenCtxKey{}).(string)
	return token
}

// ContextWithUserID attaches the acting user id to ctx
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDCtxKey{}, userID)
}

// UserIDFromContext returns the acting user id attached by JWTAuth
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDCtxKey{}).(string)
	return id
}

func bearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// claimString accepts both string and numeric ids; JSON numbers decode as float64.
func claimString(v interface{}) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return ""
	}
}
