package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yungbote/huddle-backend/internal/http/response"
	"github.com/yungbote/huddle-backend/internal/platform/apierr"
	"github.com/yungbote/huddle-backend/internal/platform/ctxutil"
	"github.com/yungbote/huddle-backend/internal/platform/logger"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// AuthMiddleware verifies HS256 bearer tokens issued by the identity
// provider. The subject claim is the user id.
type AuthMiddleware struct {
	log    *logger.Logger
	secret []byte
	issuer string
}

func NewAuthMiddleware(log *logger.Logger, secret, issuer string) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("middleware", "AuthMiddleware"), secret: []byte(secret), issuer: issuer}
}

// ParseToken returns the user id carried by tokenString.
func (am *AuthMiddleware) ParseToken(tokenString string) (uuid.UUID, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if am.issuer != "" {
		opts = append(opts, jwt.WithIssuer(am.issuer))
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return am.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil || userID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return userID, nil
}

func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			c.Abort()
			response.RespondAPIError(c, apierr.Auth(errors.New("missing or invalid token")))
			return
		}
		userID, err := am.ParseToken(tokenString)
		if err != nil {
			am.log.Debug("token rejected", "error", err, "request_id", ctxutil.RequestID(c.Request.Context()))
			c.Abort()
			response.RespondAPIError(c, apierr.Auth(ErrInvalidToken))
			return
		}
		ctx := ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{UserID: userID, TokenString: tokenString})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// extractToken reads the bearer header, falling back to ?token= for
// EventSource clients that cannot set headers.
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return strings.TrimSpace(c.Query("token"))
}
