package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/booking-engine/pkg/jwt"
)

// UserContextKey is the gin context key holding the caller's UserContext
const UserContextKey = "user"

// UserContext is the authenticated caller
type UserContext struct {
	UserID uuid.UUID `json:"user_id"`
	Roles  []string  `json:"roles"`
}

// HasRole reports whether the user has any of roles
func (u UserContext) HasRole(roles ...string) bool {
	for _, want := range roles {
		for _, have := range u.Roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// IsAdmin reports whether the user may act on other users' bookings
func (u UserContext) IsAdmin() bool {
	return u.HasRole(jwt.RoleAdmin)
}

// authFailure is a rejected request; code is stable for clients
type authFailure struct {
	status  int
	kind    string
	code    string
	message string
}

var (
	failMissingHeader = authFailure{http.StatusUnauthorized, "unauthorized", "MISSING_AUTH_HEADER", "Authorization header is required"}
	failBadFormat     = authFailure{http.StatusUnauthorized, "unauthorized", "INVALID_AUTH_FORMAT", "Expected: Authorization: Bearer <token>"}
	failExpired       = authFailure{http.StatusUnauthorized, "token_expired", "TOKEN_EXPIRED", "Access token has expired"}
	failInvalid       = authFailure{http.StatusUnauthorized, "invalid_token", "INVALID_TOKEN", "Invalid access token"}
	failNoUser        = authFailure{http.StatusUnauthorized, "unauthorized", "MISSING_USER_CONTEXT", "Authentication required"}
	failForbidden     = authFailure{http.StatusForbidden, "forbidden", "INSUFFICIENT_PERMISSIONS", "You don't have permission to access this resource"}
)

func abortWith(c *gin.Context, f authFailure) {
	c.AbortWithStatusJSON(f.status, gin.H{
		"error":      f.kind,
		"message":    f.message,
		"code":       f.code,
		"request_id": GetRequestID(c),
	})
}

// bearerToken extracts the token from an "Authorization: Bearer" header
func bearerToken(header string) (string, *authFailure) {
	if header == "" {
		return "", &failMissingHeader
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", &failBadFormat
	}
	if token = strings.TrimSpace(token); token == "" {
		return "", &failBadFormat
	}
	return token, nil
}

// AuthMiddleware verifies the access token issued by the identity service
// and stores the caller's UserContext
func AuthMiddleware(jwtService *jwt.Service, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.WithFields(logrus.Fields{
			"path":       c.Request.URL.Path,
			"ip":         c.ClientIP(),
			"request_id": GetRequestID(c),
		})

		token, failure := bearerToken(c.GetHeader("Authorization"))
		if failure != nil {
			log.WithField("code", failure.code).Warn("Auth failed")
			abortWith(c, *failure)
			return
		}

		claims, err := jwtService.ValidateAccessToken(token)
		if err != nil {
			if jwtService.IsTokenExpired(token) {
				log.WithError(err).Info("Auth failed: token expired")
				abortWith(c, failExpired)
				return
			}
			log.WithError(err).Warn("Auth failed: invalid token")
			abortWith(c, failInvalid)
			return
		}

		c.Set(UserContextKey, UserContext{UserID: claims.UserID, Roles: claims.Roles})
		c.Next()
	}
}

// RequireRole lets the request through when the caller holds any of roles
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userCtx, ok := GetUserContext(c)
		switch {
		case !ok:
			abortWith(c, failNoUser)
		case !userCtx.HasRole(roles...):
			abortWith(c, failForbidden)
		default:
			c.Next()
		}
	}
}

// GetUserContext returns the caller set by AuthMiddleware
func GetUserContext(c *gin.Context) (UserContext, bool) {
	value, exists := c.Get(UserContextKey)
	if !exists {
		return UserContext{}, false
	}
	userCtx, ok := value.(UserContext)
	return userCtx, ok
}
