package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/PixelPet-dev/xlayerslot/types"
)

// Context keys for the authenticated session.
const (
	AddressKey = "wallet_address"
	ClaimsKey  = "claims"
)

// Claims binds a session token to a wallet address and chain. A token
// minted for one chain is invalid after a network switch.
type Claims struct {
	Address string `json:"address"`
	ChainID uint64 `json:"chain_id"`
	jwt.RegisteredClaims
}

// Config holds JWT middleware configuration.
type Config struct {
	Secret      string
	TokenPrefix string
	SkipPaths   []string
}

// DefaultConfig returns the default JWT configuration.
func DefaultConfig(secret string) Config {
	return Config{
		Secret:      secret,
		TokenPrefix: "Bearer",
		SkipPaths:   []string{"/health", "/api/health"},
	}
}

// Middleware authenticates requests with the default configuration.
func Middleware(secret string, logger zerolog.Logger) gin.HandlerFunc {
	return MiddlewareWithConfig(DefaultConfig(secret), logger)
}

// MiddlewareWithConfig authenticates requests against a session token.
func MiddlewareWithConfig(config Config, logger zerolog.Logger) gin.HandlerFunc {
	skip := make(map[string]bool, len(config.SkipPaths))
	for _, path := range config.SkipPaths {
		skip[path] = true
	}

	reject := func(c *gin.Context, message string) {
		c.AbortWithStatusJSON(http.StatusUnauthorized,
			types.NewError(http.StatusUnauthorized, c.Request.URL.Path, 0, message))
	}

	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			reject(c, "missing Authorization header")
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != config.TokenPrefix {
			reject(c, "expected Authorization: Bearer <token>")
			return
		}

		token, err := jwt.ParseWithClaims(parts[1], &Claims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(config.Secret), nil
		})
		if err != nil {
			logger.Warn().Err(err).Msg("session token rejected")
			reject(c, "invalid or expired token")
			return
		}

		claims, ok := token.Claims.(*Claims)
		if !ok || !token.Valid {
			reject(c, "invalid token claims")
			return
		}

		c.Set(AddressKey, claims.Address)
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// GetAddress extracts the authenticated wallet address from context.
func GetAddress(c *gin.Context) (string, bool) {
	v, exists := c.Get(AddressKey)
	if !exists {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetClaims extracts the full claims from context.
func GetClaims(c *gin.Context) (*Claims, bool) {
	v, exists := c.Get(ClaimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}

// GenerateToken mints a session token for a connected wallet.
func GenerateToken(secret, address string, chainID uint64, expiration time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Address: address,
		ChainID: chainID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
