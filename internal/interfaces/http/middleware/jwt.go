package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/synchub/backend/internal/infrastructure/auth"
	"github.com/synchub/backend/internal/infrastructure/logger"
)

// Context keys and header conventions for authenticated requests.
const (
	JWTClaimsKey   = "jwt_claims"
	JWTUserIDKey   = "jwt_user_id"
	JWTTenantIDKey = "jwt_tenant_id"
	JWTUsernameKey = "jwt_username"
	JWTPermissions = "jwt_permissions"
	AuthHeaderKey  = "Authorization"
	BearerPrefix   = "Bearer "
)

// JWTMiddlewareConfig holds configuration for the authentication middleware.
type JWTMiddlewareConfig struct {
	// JWTService is required for token validation
	JWTService *auth.JWTService
	// TokenBlacklist is optional for checking revoked tokens
	TokenBlacklist auth.TokenBlacklist
	// SkipPaths are exact paths that don't require authentication
	SkipPaths []string
	// SkipPathPrefixes are path prefixes that don't require authentication
	SkipPathPrefixes []string
	// OnError overrides the default 401 response
	OnError func(c *gin.Context, err error)
	// Logger for middleware logging
	Logger *zap.Logger
}

// DefaultJWTConfig returns a config that leaves health probes and the API
// docs open. Inbound webhook ingestion is added by the server wiring; it
// authenticates by channel signature, not bearer token.
func DefaultJWTConfig(jwtService *auth.JWTService) JWTMiddlewareConfig {
	return JWTMiddlewareConfig{
		JWTService: jwtService,
		SkipPaths: []string{
			"/health",
			"/healthz",
			"/ready",
			"/api/v1/ping",
		},
		SkipPathPrefixes: []string{
			"/swagger",
			"/api-docs",
		},
	}
}

// JWTAuthMiddleware creates authentication middleware with the defaults.
func JWTAuthMiddleware(jwtService *auth.JWTService) gin.HandlerFunc {
	return JWTAuthMiddlewareWithConfig(DefaultJWTConfig(jwtService))
}

// JWTAuthMiddlewareWithConfig validates the bearer token on every request
// outside the skip lists and exposes the caller's tenant scope to the
// handlers downstream.
func JWTAuthMiddlewareWithConfig(cfg JWTMiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.shouldSkip(c.Request.URL.Path) {
			c.Next()
			return
		}

		tokenString, err := bearerToken(c)
		if err != nil {
			handleAuthError(c, cfg, auth.ErrInvalidToken, err.Error())
			return
		}

		claims, err := cfg.JWTService.ValidateAccessToken(tokenString)
		if err != nil {
			handleAuthError(c, cfg, err, "Token validation failed")
			return
		}

		if revoked := cfg.checkRevocation(c, claims); revoked {
			return
		}

		setClaimsContext(c, claims)

		ctx := c.Request.Context()
		log := logger.FromContext(ctx)
		ctx, _ = logger.WithUserID(ctx, log, claims.UserID)
		ctx, _ = logger.WithTenantID(ctx, log, claims.TenantID)
		c.Request = c.Request.WithContext(ctx)

		if cfg.Logger != nil {
			cfg.Logger.Debug("JWT authentication successful",
				zap.String("user_id", claims.UserID),
				zap.String("tenant_id", claims.TenantID),
				zap.String("username", claims.Username),
			)
		}

		c.Next()
	}
}

func (cfg JWTMiddlewareConfig) shouldSkip(path string) bool {
	for _, skipPath := range cfg.SkipPaths {
		if path == skipPath {
			return true
		}
	}
	for _, prefix := range cfg.SkipPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// bearerToken pulls the raw token out of the Authorization header.
func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader(AuthHeaderKey)
	switch {
	case header == "":
		return "", errMissingAuthHeader
	case !strings.HasPrefix(header, BearerPrefix):
		return "", errMalformedAuthHeader
	}
	token := strings.TrimPrefix(header, BearerPrefix)
	if token == "" {
		return "", errEmptyBearerToken
	}
	return token, nil
}

var (
	errMissingAuthHeader   = authMessage("Missing authorization header")
	errMalformedAuthHeader = authMessage("Invalid authorization header format")
	errEmptyBearerToken    = authMessage("Missing token")
)

type authMessage string

func (m authMessage) Error() string { return string(m) }

// checkRevocation consults the blacklist and aborts the request when the
// token or the whole user session has been revoked. Blacklist lookup errors
// fail open so an unavailable Redis does not take the API down.
func (cfg JWTMiddlewareConfig) checkRevocation(c *gin.Context, claims *auth.Claims) bool {
	if cfg.TokenBlacklist == nil {
		return false
	}
	ctx := c.Request.Context()

	// Individual logout revokes the token's JTI.
	if claims.ID != "" {
		blacklisted, err := cfg.TokenBlacklist.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			if cfg.Logger != nil {
				cfg.Logger.Error("Failed to check token blacklist",
					zap.String("jti", claims.ID),
					zap.Error(err))
			}
		} else if blacklisted {
			handleAuthError(c, cfg, auth.ErrTokenBlacklisted, "Token has been revoked")
			return true
		}
	}

	// Force logout or credential rotation invalidates every token issued
	// before the cutoff.
	if claims.UserID != "" {
		invalidated, err := cfg.TokenBlacklist.IsUserTokenInvalidated(ctx, claims.UserID, claims.GetIssuedAtTime())
		if err != nil {
			if cfg.Logger != nil {
				cfg.Logger.Error("Failed to check user token invalidation",
					zap.String("user_id", claims.UserID),
					zap.Error(err))
			}
		} else if invalidated {
			handleAuthError(c, cfg, auth.ErrTokenBlacklisted, "User session has been invalidated")
			return true
		}
	}
	return false
}

// setClaimsContext stores validated claims under the context keys.
func setClaimsContext(c *gin.Context, claims *auth.Claims) {
	c.Set(JWTClaimsKey, claims)
	c.Set(JWTUserIDKey, claims.UserID)
	c.Set(JWTTenantIDKey, claims.TenantID)
	c.Set(JWTUsernameKey, claims.Username)
	c.Set(JWTPermissions, claims.Permissions)
}

// handleAuthError aborts the request with a 401 whose code reflects the
// specific validation failure.
func handleAuthError(c *gin.Context, cfg JWTMiddlewareConfig, err error, message string) {
	if cfg.OnError != nil {
		cfg.OnError(c, err)
		return
	}

	if cfg.Logger != nil {
		cfg.Logger.Warn("JWT authentication failed",
			zap.Error(err),
			zap.String("message", message),
			zap.String("path", c.Request.URL.Path),
		)
	}

	errorCode, errorMessage := "UNAUTHORIZED", "Authentication required"
	switch err {
	case auth.ErrExpiredToken:
		errorCode, errorMessage = "TOKEN_EXPIRED", "Token has expired"
	case auth.ErrInvalidToken, errMissingAuthHeader, errMalformedAuthHeader, errEmptyBearerToken:
		errorCode, errorMessage = "INVALID_TOKEN", "Invalid token"
	case auth.ErrInvalidTokenType:
		errorCode, errorMessage = "INVALID_TOKEN_TYPE", "Invalid token type"
	case auth.ErrTokenNotYetValid:
		errorCode, errorMessage = "TOKEN_NOT_VALID", "Token is not yet valid"
	case auth.ErrTokenBlacklisted:
		errorCode, errorMessage = "TOKEN_REVOKED", "Token has been revoked"
	}

	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    errorCode,
			"message": errorMessage,
		},
	})
}

// GetJWTClaims retrieves JWT claims from gin.Context.
func GetJWTClaims(c *gin.Context) *auth.Claims {
	if v, exists := c.Get(JWTClaimsKey); exists {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}

// MustGetJWTClaims retrieves JWT claims from gin.Context or panics.
func MustGetJWTClaims(c *gin.Context) *auth.Claims {
	claims := GetJWTClaims(c)
	if claims == nil {
		panic("jwt claims not found in context")
	}
	return claims
}

func contextString(c *gin.Context, key string) string {
	if v, exists := c.Get(key); exists {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetJWTUserID retrieves the user ID from JWT claims in context.
func GetJWTUserID(c *gin.Context) string { return contextString(c, JWTUserIDKey) }

// GetJWTTenantID retrieves the tenant ID from JWT claims in context.
func GetJWTTenantID(c *gin.Context) string { return contextString(c, JWTTenantIDKey) }

// GetJWTUsername retrieves the username from JWT claims in context.
func GetJWTUsername(c *gin.Context) string { return contextString(c, JWTUsernameKey) }

// GetJWTPermissions retrieves the permissions from JWT claims in context.
func GetJWTPermissions(c *gin.Context) []string {
	if v, exists := c.Get(JWTPermissions); exists {
		if perms, ok := v.([]string); ok {
			return perms
		}
	}
	return nil
}

// OptionalJWTAuthMiddleware extracts claims when a valid token is present
// but never rejects the request.
func OptionalJWTAuthMiddleware(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := bearerToken(c)
		if err != nil {
			c.Next()
			return
		}

		if claims, err := jwtService.ValidateAccessToken(tokenString); err == nil {
			setClaimsContext(c, claims)
		}
		c.Next()
	}
}
