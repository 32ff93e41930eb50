package core

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const claimsContextKey = "auth_claims"

// CORSMiddleware validates the Origin header against the allowed list and
// sets CORS headers. An empty list reflects any origin (development mode).
func CORSMiddleware(cfg Config) gin.HandlerFunc {
	allowed := map[string]struct{}{}
	for _, o := range cfg.AllowedOrigins {
		allowed[strings.ToLower(o)] = struct{}{}
	}

	isAllowed := func(origin string) bool {
		if origin == "" {
			// Same-origin navigation (no Origin header) is allowed.
			return true
		}
		if len(allowed) == 0 {
			return true
		}
		_, ok := allowed[strings.ToLower(origin)]
		return ok
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		if c.Request.Method == http.MethodOptions && origin != "" {
			if !isAllowed(origin) {
				respondError(c, http.StatusForbidden, "FORBIDDEN", "origin not allowed")
				c.Abort()
				return
			}
			setCORSHeaders(c, origin)
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}

		if !isAllowed(origin) {
			respondError(c, http.StatusForbidden, "FORBIDDEN", "origin not allowed")
			c.Abort()
			return
		}
		if origin != "" {
			setCORSHeaders(c, origin)
		}
		c.Next()
	}
}

func setCORSHeaders(c *gin.Context, origin string) {
	c.Header("Access-Control-Allow-Origin", origin)
	c.Header("Vary", "Origin")
	c.Header("Access-Control-Allow-Credentials", "true")
	c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
	c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
}

// authenticate extracts and verifies the bearer token, storing the claims
// in the context. On failure it writes the error response and aborts.
func authenticate(c *gin.Context, tokens *TokenIssuer) (*Claims, bool) {
	raw, ok := bearerToken(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "TOKEN_MISSING", "Unauthorized: Token missing")
		c.Abort()
		return nil, false
	}
	claims, err := tokens.Verify(raw)
	if err != nil {
		respondError(c, http.StatusForbidden, "TOKEN_INVALID", "Forbidden: Invalid token")
		c.Abort()
		return nil, false
	}
	c.Set(claimsContextKey, claims)
	return claims, true
}

// AuthRequired verifies the bearer token: 401 when absent, 403 when it
// fails verification. Decoded claims go into the request context.
func AuthRequired(tokens *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := authenticate(c, tokens); !ok {
			return
		}
		c.Next()
	}
}

// AdminRequired is AuthRequired plus the admin claim.
func AdminRequired(tokens *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := authenticate(c, tokens)
		if !ok {
			return
		}
		if claims.AdminID == "" {
			respondError(c, http.StatusForbidden, "FORBIDDEN", "Admin access required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// UserRequired is AuthRequired plus the user claim, for purchase routes.
func UserRequired(tokens *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := authenticate(c, tokens)
		if !ok {
			return
		}
		if claims.UserID == "" {
			respondError(c, http.StatusForbidden, "FORBIDDEN", "User access required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentClaims returns the claims stored by AuthRequired, or nil.
func CurrentClaims(c *gin.Context) *Claims {
	v, _ := c.Get(claimsContextKey)
	claims, _ := v.(*Claims)
	return claims
}

// bearerToken extracts the credential from "Authorization: Bearer <token>".
// A malformed header counts as missing.
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
